package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"
)

// Values accepted by the global --output flag. The default (empty) renders
// compact tables; wide adds the columns that only matter during triage.
const (
	outputJSON = "json"
	outputYAML = "yaml"
	outputWide = "wide"
)

// structured prints v as JSON or YAML when --output asks for a machine
// format. It reports whether it handled the value, so callers can fall
// through to their table rendering.
func structured(v any) bool {
	switch flagOutput {
	case outputJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: encode JSON: %v\n", err)
			return true
		}
		fmt.Println(string(data))
	case outputYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: encode YAML: %v\n", err)
			return true
		}
		fmt.Print(string(data))
	default:
		return false
	}
	return true
}

func decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// table collects rows for tab-aligned output. Cells take the types that show
// up in scan and finding listings, so call sites stay free of conversion
// noise: line numbers and secret counters as int, exception flags as bool.
type table struct {
	tw *tabwriter.Writer
}

func startTable(headers ...string) *table {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	return &table{tw: tw}
}

func (t *table) row(cells ...any) {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = cell(c)
	}
	fmt.Fprintln(t.tw, strings.Join(parts, "\t"))
}

func (t *table) flush() {
	t.tw.Flush()
}

func cell(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case *string:
		if x == nil {
			return "-"
		}
		return *x
	default:
		return fmt.Sprint(x)
	}
}

// pageFooter summarizes a paginated listing, e.g. "34 scans, page 2 of 2".
func pageFooter(noun string, total int64, page, totalPages int) {
	if total == 0 {
		fmt.Printf("No %s found.\n", noun)
		return
	}
	fmt.Printf("\n%d %s, page %d of %d\n", total, noun, page, totalPages)
}

// clip shortens long cells (IDs, commit hashes, file paths) so a row stays
// on one line.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// timestamp reformats an RFC 3339 time to minute precision for display.
// Anything the server sends that does not parse is shown as-is.
func timestamp(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.Format("2006-01-02 15:04")
}

// optTimestamp handles the nullable timestamps on scans and findings, such
// as started_at on a scan that is still pending.
func optTimestamp(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return timestamp(*s)
}
