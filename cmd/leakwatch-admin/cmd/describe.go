package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Show details of a resource",
}

var describeScanCmd = &cobra.Command{
	Use:   "scan SCAN_ID",
	Short: "Show scan details",
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribeScan,
}

var describeProjectCmd = &cobra.Command{
	Use:   "project NAME",
	Short: "Show project details",
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribeProject,
}

var describeFindingCmd = &cobra.Command{
	Use:   "finding FINDING_ID",
	Short: "Show finding details",
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribeFinding,
}

func init() {
	describeCmd.AddCommand(describeScanCmd)
	describeCmd.AddCommand(describeProjectCmd)
	describeCmd.AddCommand(describeFindingCmd)
}

func runDescribeScan(cmd *cobra.Command, args []string) error {
	client := mustClient()

	data, err := client.Get("/api/v1/scans/" + args[0])
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

	fmt.Fprintf(os.Stdout, "Scan:         %s\n", s.ID)
	fmt.Fprintf(os.Stdout, "Project:      %s\n", s.ProjectName)
	fmt.Fprintf(os.Stdout, "Ref:          %s (%s)\n", s.Ref, s.RefType)
	fmt.Fprintf(os.Stdout, "Commit:       %s\n", s.RepoCommit)
	fmt.Fprintf(os.Stdout, "Status:       %s\n", s.Status)
	if s.ErrorMessage != "" {
		fmt.Fprintf(os.Stdout, "Error:        %s\n", s.ErrorMessage)
	}
	fmt.Fprintf(os.Stdout, "Started:      %s\n", optTimestamp(s.StartedAt))
	fmt.Fprintf(os.Stdout, "Completed:    %s\n", optTimestamp(s.CompletedAt))
	fmt.Fprintf(os.Stdout, "Files:        %d scanned, %d excluded\n", s.FilesScanned, s.ExcludedFilesCount)
	if len(s.DetectedLanguages) > 0 {
		fmt.Fprintf(os.Stdout, "Languages:    %s\n", strings.Join(s.DetectedLanguages, ", "))
	}
	if len(s.DetectedFrameworks) > 0 {
		fmt.Fprintf(os.Stdout, "Frameworks:   %s\n", strings.Join(s.DetectedFrameworks, ", "))
	}
	fmt.Fprintf(os.Stdout, "\nSecrets:\n")
	fmt.Fprintf(os.Stdout, "  High:       %d\n", s.HighCount)
	fmt.Fprintf(os.Stdout, "  Potential:  %d\n", s.PotentialCount)
	return nil
}

func runDescribeProject(cmd *cobra.Command, args []string) error {
	client := mustClient()

	data, err := client.Get("/api/v1/projects/" + args[0])
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

	fmt.Fprintf(os.Stdout, "Project:    %s\n", p.Name)
	fmt.Fprintf(os.Stdout, "ID:         %s\n", p.ID)
	fmt.Fprintf(os.Stdout, "Repo URL:   %s\n", p.RepoURL)
	fmt.Fprintf(os.Stdout, "Created by: %s\n", p.CreatedBy)
	fmt.Fprintf(os.Stdout, "Created:    %s\n", timestamp(p.CreatedAt))
	return nil
}

func runDescribeFinding(cmd *cobra.Command, args []string) error {
	client := mustClient()

	data, err := client.Get("/api/v1/findings/" + args[0])
	if err != nil {
		return err
	}

	var f FindingResponse
	if err := decode(data, &f); err != nil {
		return err
	}
	if structured(f) {
		return nil
	}

	fmt.Fprintf(os.Stdout, "Finding:    %s\n", f.ID)
	fmt.Fprintf(os.Stdout, "Scan:       %s\n", f.ScanID)
	fmt.Fprintf(os.Stdout, "Location:   %s:%d\n", f.FilePath, f.LineNumber)
	fmt.Fprintf(os.Stdout, "Type:       %s\n", f.Type)
	fmt.Fprintf(os.Stdout, "Severity:   %s\n", f.Severity)
	fmt.Fprintf(os.Stdout, "Confidence: %.2f\n", f.Confidence)
	fmt.Fprintf(os.Stdout, "Status:     %s\n", f.Status)
	if f.IsException {
		fmt.Fprintf(os.Stdout, "Exception:  true\n")
		fmt.Fprintf(os.Stdout, "Comment:    %s\n", f.ExceptionComment)
		fmt.Fprintf(os.Stdout, "Refuted at: %s\n", optTimestamp(f.RefutedAt))
	}
	if f.ReviewedBy != "" {
		fmt.Fprintf(os.Stdout, "Reviewer:   %s\n", f.ReviewedBy)
	}
	return nil
}
