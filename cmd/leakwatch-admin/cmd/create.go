package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create resources",
}

var createProjectCmd = &cobra.Command{
	Use:   "project NAME",
	Short: "Register a new project",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreateProject,
}

var createScanCmd = &cobra.Command{
	Use:   "scan PROJECT_NAME",
	Short: "Dispatch a scan for a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreateScan,
}

var createMultiScanCmd = &cobra.Command{
	Use:   "multi-scan NAME",
	Short: "Dispatch a batched scan across projects",
	Long: `Dispatch a batched scan across up to ten project refs in one engine call.

Each --item is PROJECT:REF_TYPE:REF, for example:
  leakwatch-admin create multi-scan nightly --item payments:branch:main --item billing:tag:v2.1.0`,
	Args: cobra.ExactArgs(1),
	RunE: runCreateMultiScan,
}

func init() {
	createProjectCmd.Flags().String("repo-url", "", "Git repository URL (required)")
	createProjectCmd.Flags().String("created-by", "", "Creator identity")
	_ = createProjectCmd.MarkFlagRequired("repo-url")

	createScanCmd.Flags().String("ref-type", "branch", "Reference type: commit, branch, tag")
	createScanCmd.Flags().String("ref", "", "Reference to scan (required)")
	createScanCmd.Flags().String("initiator", "", "Initiator identity")
	_ = createScanCmd.MarkFlagRequired("ref")

	createMultiScanCmd.Flags().StringArray("item", nil, "Batch item PROJECT:REF_TYPE:REF (repeatable, 1-10)")
	createMultiScanCmd.Flags().String("initiator", "", "Initiator identity")
	_ = createMultiScanCmd.MarkFlagRequired("item")

	createCmd.AddCommand(createProjectCmd)
	createCmd.AddCommand(createScanCmd)
	createCmd.AddCommand(createMultiScanCmd)
}

func runCreateProject(cmd *cobra.Command, args []string) error {
	client := mustClient()

	repoURL, _ := cmd.Flags().GetString("repo-url")
	createdBy, _ := cmd.Flags().GetString("created-by")

	data, err := client.Post("/api/v1/projects", map[string]any{
		"name":       args[0],
		"repo_url":   repoURL,
		"created_by": createdBy,
	})
	if err != nil {
		return err
	}

	var p ProjectResponse
	if err := decode(data, &p); err != nil {
		return err
	}
	if structured(p) {
		return nil
	}
	fmt.Printf("Project %q created (id: %s)\n", p.Name, p.ID)
	return nil
}

func runCreateScan(cmd *cobra.Command, args []string) error {
	client := mustClient()

	refType, _ := cmd.Flags().GetString("ref-type")
	ref, _ := cmd.Flags().GetString("ref")
	initiator, _ := cmd.Flags().GetString("initiator")

	data, err := client.Post("/api/v1/scans", map[string]any{
		"project_name": args[0],
		"ref_type":     refType,
		"ref":          ref,
		"initiator":    initiator,
	})
	if err != nil {
		return err
	}

	var s ScanResponse
	if err := decode(data, &s); err != nil {
		return err
	}
	if structured(s) {
		return nil
	}
	fmt.Printf("Scan %s dispatched for %s@%s (status: %s)\n", s.ID, s.ProjectName, s.Ref, s.Status)
	return nil
}

func runCreateMultiScan(cmd *cobra.Command, args []string) error {
	client := mustClient()

	rawItems, _ := cmd.Flags().GetStringArray("item")
	initiator, _ := cmd.Flags().GetString("initiator")

	items := make([]map[string]string, 0, len(rawItems))
	for _, raw := range rawItems {
		parts := strings.SplitN(raw, ":", 3)
		if len(parts) != 3 {
			return fmt.Errorf("invalid --item %q, expected PROJECT:REF_TYPE:REF", raw)
		}
		items = append(items, map[string]string{
			"project_name": parts[0],
			"ref_type":     parts[1],
			"ref":          parts[2],
		})
	}

	data, err := client.Post("/api/v1/multi_scans", map[string]any{
		"name":      args[0],
		"items":     items,
		"initiator": initiator,
	})
	if err != nil {
		return err
	}

	var resp MultiScanCreateResponse
	if err := decode(data, &resp); err != nil {
		return err
	}
	if structured(resp) {
		return nil
	}

	fmt.Printf("Multi-scan %q dispatched (id: %s)\n\n", resp.MultiScan.Name, resp.MultiScan.ID)
	t := startTable("SCAN ID", "PROJECT", "REF", "STATUS")
	for _, s := range resp.Scans {
		t.row(s.ID, s.ProjectName, s.Ref, s.Status)
	}
	t.flush()
	return nil
}
