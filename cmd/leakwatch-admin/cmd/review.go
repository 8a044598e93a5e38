package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Record review decisions on findings",
}

var reviewConfirmCmd = &cobra.Command{
	Use:   "confirm FINDING_ID...",
	Short: "Confirm findings as real secrets",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReview(cmd, args, "Confirmed")
	},
}

var reviewRefuteCmd = &cobra.Command{
	Use:   "refute FINDING_ID...",
	Short: "Refute findings as false positives",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReview(cmd, args, "Refuted")
	},
}

var reviewClearCmd = &cobra.Command{
	Use:   "clear FINDING_ID...",
	Short: "Clear review decisions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReview(cmd, args, "No status")
	},
}

func init() {
	for _, c := range []*cobra.Command{reviewConfirmCmd, reviewRefuteCmd, reviewClearCmd} {
		c.Flags().String("comment", "", "Review comment")
		c.Flags().String("reviewer", "", "Reviewer identity (required)")
		_ = c.MarkFlagRequired("reviewer")
	}

	reviewCmd.AddCommand(reviewConfirmCmd)
	reviewCmd.AddCommand(reviewRefuteCmd)
	reviewCmd.AddCommand(reviewClearCmd)
}

func runReview(cmd *cobra.Command, ids []string, status string) error {
	client := mustClient()

	comment, _ := cmd.Flags().GetString("comment")
	reviewer, _ := cmd.Flags().GetString("reviewer")

	if len(ids) == 1 {
		data, err := client.Put("/api/v1/findings/"+ids[0]+"/status", map[string]any{
			"status":   status,
			"comment":  comment,
			"reviewer": reviewer,
		})
		if err != nil {
			return err
		}
		var f FindingResponse
		if err := decode(data, &f); err != nil {
			return err
		}
		fmt.Printf("Finding %s marked %q\n", f.ID, f.Status)
		return nil
	}

	data, err := client.Put("/api/v1/findings/status", map[string]any{
		"finding_ids": ids,
		"status":      status,
		"comment":     comment,
		"reviewer":    reviewer,
	})
	if err != nil {
		return err
	}
	var resp struct {
		Updated int `json:"updated"`
	}
	if err := decode(data, &resp); err != nil {
		return err
	}
	fmt.Printf("%d findings marked %q\n", resp.Updated, status)
	return nil
}
