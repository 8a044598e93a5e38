package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete resources",
}

var deleteProjectCmd = &cobra.Command{
	Use:   "project NAME",
	Short: "Delete a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := mustClient().Delete("/api/v1/projects/" + args[0]); err != nil {
			return err
		}
		fmt.Printf("Project %q deleted\n", args[0])
		return nil
	},
}

var deleteScanCmd = &cobra.Command{
	Use:   "scan SCAN_ID",
	Short: "Delete a scan and its findings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := mustClient().Delete("/api/v1/scans/" + args[0]); err != nil {
			return err
		}
		fmt.Printf("Scan %s deleted\n", args[0])
		return nil
	},
}

var deleteFindingCmd = &cobra.Command{
	Use:   "finding FINDING_ID",
	Short: "Delete a finding",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := mustClient().Delete("/api/v1/findings/" + args[0]); err != nil {
			return err
		}
		fmt.Printf("Finding %s deleted\n", args[0])
		return nil
	},
}

func init() {
	deleteCmd.AddCommand(deleteProjectCmd)
	deleteCmd.AddCommand(deleteScanCmd)
	deleteCmd.AddCommand(deleteFindingCmd)
}
