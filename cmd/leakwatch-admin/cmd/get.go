package cmd

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "List resources",
}

var getProjectsCmd = &cobra.Command{
	Use:     "projects",
	Aliases: []string{"project"},
	Short:   "List projects",
	RunE:    runGetProjects,
}

var getScansCmd = &cobra.Command{
	Use:     "scans",
	Aliases: []string{"scan"},
	Short:   "List scans",
	RunE:    runGetScans,
}

var getMultiScansCmd = &cobra.Command{
	Use:     "multi-scans",
	Aliases: []string{"multi-scan", "ms"},
	Short:   "List multi-scan batches",
	RunE:    runGetMultiScans,
}

var getFindingsCmd = &cobra.Command{
	Use:     "findings SCAN_ID",
	Aliases: []string{"finding"},
	Short:   "List findings of a scan",
	Args:    cobra.ExactArgs(1),
	RunE:    runGetFindings,
}

func init() {
	getProjectsCmd.Flags().Int("page", 1, "Page number")
	getProjectsCmd.Flags().Int("per-page", 20, "Items per page")

	getScansCmd.Flags().String("project", "", "Filter by project name")
	getScansCmd.Flags().String("status", "", "Filter by status (pending, running, completed, failed, timeout)")
	getScansCmd.Flags().String("initiator", "", "Filter by initiator")
	getScansCmd.Flags().Int("page", 1, "Page number")
	getScansCmd.Flags().Int("per-page", 20, "Items per page")

	getMultiScansCmd.Flags().Int("page", 1, "Page number")
	getMultiScansCmd.Flags().Int("per-page", 20, "Items per page")

	getFindingsCmd.Flags().Int("page", 1, "Page number")
	getFindingsCmd.Flags().Int("per-page", 20, "Items per page")

	getCmd.AddCommand(getProjectsCmd)
	getCmd.AddCommand(getScansCmd)
	getCmd.AddCommand(getMultiScansCmd)
	getCmd.AddCommand(getFindingsCmd)
}

func pageParams(cmd *cobra.Command, params url.Values) {
	if v, _ := cmd.Flags().GetInt("page"); v > 0 {
		params.Set("page", strconv.Itoa(v))
	}
	if v, _ := cmd.Flags().GetInt("per-page"); v > 0 {
		params.Set("per_page", strconv.Itoa(v))
	}
}

func runGetProjects(cmd *cobra.Command, args []string) error {
	client := mustClient()

	params := url.Values{}
	pageParams(cmd, params)

	path := "/api/v1/projects"
	if q := params.Encode(); q != "" {
		path += "?" + q
	}

	data, err := client.Get(path)
	if err != nil {
		return err
	}

	var resp ProjectListResponse
	if err := decode(data, &resp); err != nil {
		return err
	}
	if structured(resp) {
		return nil
	}

	t := startTable("NAME", "REPO URL", "CREATED BY", "CREATED")
	for _, p := range resp.Data {
		t.row(p.Name, p.RepoURL, p.CreatedBy, timestamp(p.CreatedAt))
	}
	t.flush()
	pageFooter("projects", resp.Total, resp.Page, resp.TotalPages)
	return nil
}

func runGetScans(cmd *cobra.Command, args []string) error {
	client := mustClient()

	params := url.Values{}
	if v, _ := cmd.Flags().GetString("project"); v != "" {
		params.Set("project", v)
	}
	if v, _ := cmd.Flags().GetString("status"); v != "" {
		params.Set("status", v)
	}
	if v, _ := cmd.Flags().GetString("initiator"); v != "" {
		params.Set("initiator", v)
	}
	pageParams(cmd, params)

	path := "/api/v1/scans"
	if q := params.Encode(); q != "" {
		path += "?" + q
	}

	data, err := client.Get(path)
	if err != nil {
		return err
	}

	var resp ScanListResponse
	if err := decode(data, &resp); err != nil {
		return err
	}
	if structured(resp) {
		return nil
	}

	if flagOutput == outputWide {
		t := startTable("ID", "PROJECT", "REF", "COMMIT", "STATUS", "HIGH", "POTENTIAL", "FILES", "CREATED")
		for _, s := range resp.Data {
			t.row(s.ID, s.ProjectName, s.Ref, clip(s.RepoCommit, 12), s.Status,
				s.HighCount, s.PotentialCount, s.FilesScanned, timestamp(s.CreatedAt))
		}
		t.flush()
	} else {
		t := startTable("ID", "PROJECT", "REF", "STATUS", "HIGH", "POTENTIAL")
		for _, s := range resp.Data {
			t.row(clip(s.ID, 12), s.ProjectName, s.Ref, s.Status, s.HighCount, s.PotentialCount)
		}
		t.flush()
	}
	pageFooter("scans", resp.Total, resp.Page, resp.TotalPages)
	return nil
}

func runGetMultiScans(cmd *cobra.Command, args []string) error {
	client := mustClient()

	params := url.Values{}
	pageParams(cmd, params)

	path := "/api/v1/multi_scans"
	if q := params.Encode(); q != "" {
		path += "?" + q
	}

	data, err := client.Get(path)
	if err != nil {
		return err
	}

	var resp MultiScanListResponse
	if err := decode(data, &resp); err != nil {
		return err
	}
	if structured(resp) {
		return nil
	}

	t := startTable("ID", "NAME", "SCANS", "INITIATOR", "CREATED")
	for _, m := range resp.Data {
		t.row(clip(m.ID, 12), m.Name, len(m.ScanIDs), m.Initiator, timestamp(m.CreatedAt))
	}
	t.flush()
	pageFooter("multi-scans", resp.Total, resp.Page, resp.TotalPages)
	return nil
}

func runGetFindings(cmd *cobra.Command, args []string) error {
	client := mustClient()

	params := url.Values{}
	pageParams(cmd, params)

	path := fmt.Sprintf("/api/v1/scans/%s/findings", args[0])
	if q := params.Encode(); q != "" {
		path += "?" + q
	}

	data, err := client.Get(path)
	if err != nil {
		return err
	}

	var resp FindingListResponse
	if err := decode(data, &resp); err != nil {
		return err
	}
	if structured(resp) {
		return nil
	}

	if flagOutput == outputWide {
		t := startTable("ID", "FILE", "LINE", "TYPE", "SEVERITY", "STATUS", "EXCEPTION", "REVIEWED BY")
		for _, f := range resp.Data {
			t.row(f.ID, f.FilePath, f.LineNumber, f.Type, f.Severity,
				f.Status, f.IsException, f.ReviewedBy)
		}
		t.flush()
	} else {
		t := startTable("ID", "FILE", "LINE", "SEVERITY", "STATUS")
		for _, f := range resp.Data {
			t.row(clip(f.ID, 12), clip(f.FilePath, 48), f.LineNumber, f.Severity, f.Status)
		}
		t.flush()
	}
	pageFooter("findings", resp.Total, resp.Page, resp.TotalPages)
	return nil
}
