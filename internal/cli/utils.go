// Package cli renders search results, build reports and index status for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/utsushi/internal/models"
	"github.com/hyperjump/utsushi/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one tab-separated line per item, for shell pipelines.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const (
	identifierWidth = 96
	errorWidth      = 120
	rule            = "─────────────────────────────────────────────────────────"
)

// ParseOutputFormat validates a format name.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", OutputText:
		return OutputText, nil
	case OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, compact or json)", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		for _, r := range response.Results {
			fmt.Fprintf(w, "%d\t%.3f\t%s\n", r.Rank, r.Similarity, r.Identifier)
		}
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	if response.Build != nil {
		writeBuildReportText(w, response.Build)
		fmt.Fprintln(w)
	}
	if response.Empty {
		fmt.Fprintf(w, "No results: %s\n", response.Message)
		return
	}
	fmt.Fprintf(w, "\nFound %d results in %dms (index size %d)\n\n", response.Total, response.QueryTime, response.IndexSize)
	for _, r := range response.Results {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "Rank: %d | Similarity: %.3f | Distance: %.4f\n", r.Rank, r.Similarity, r.Distance)
		fmt.Fprintf(w, "%s\n", utils.TruncateMiddle(r.Identifier, identifierWidth))
	}
	if len(response.Results) > 0 {
		fmt.Fprintln(w)
	}
}

// WriteBuildReport writes a build report to w in the given format.
func WriteBuildReport(w io.Writer, report *models.BuildReport, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, report)
	case OutputCompact:
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\n",
			report.RunID, report.Status, report.Candidates, report.Indexed, report.Failed, report.IndexSize)
		return nil
	default:
		writeBuildReportText(w, report)
		return nil
	}
}

func writeBuildReportText(w io.Writer, report *models.BuildReport) {
	fmt.Fprintf(w, "Build %s (%s, %s)\n", report.Status, report.Mode, report.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  source:     %s\n", utils.TruncateMiddle(report.Source, identifierWidth))
	fmt.Fprintf(w, "  candidates: %d\n", report.Candidates)
	fmt.Fprintf(w, "  indexed:    %d\n", report.Indexed)
	fmt.Fprintf(w, "  failed:     %d\n", report.Failed)
	fmt.Fprintf(w, "  index size: %d\n", report.IndexSize)
	for _, f := range report.Failures {
		fmt.Fprintf(w, "    [%s] %s: %s\n", f.Stage, utils.TruncateMiddle(f.Identifier, identifierWidth), utils.Truncate(f.Err, errorWidth))
	}
}

// WriteStatus writes the index status to w in the given format.
func WriteStatus(w io.Writer, status *models.IndexStatus, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, status)
	case OutputCompact:
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", status.IndexType, status.Dimensions, status.Size, status.DiskUsageBytes)
		return nil
	default:
		fmt.Fprintf(w, "Index:      %s\n", status.IndexPath)
		fmt.Fprintf(w, "Type:       %s\n", status.IndexType)
		fmt.Fprintf(w, "Dimensions: %d\n", status.Dimensions)
		fmt.Fprintf(w, "Images:     %d\n", status.Size)
		fmt.Fprintf(w, "Disk usage: %s (index %s, metadata %s)\n", FormatBytes(status.DiskUsageBytes),
			FormatBytes(status.IndexBytes), FormatBytes(status.MetadataBytes))
		if len(status.RecentRuns) > 0 {
			fmt.Fprintln(w, "Recent builds:")
			for _, r := range status.RecentRuns {
				fmt.Fprintf(w, "  %s  %-6s  %-15s  +%d  !%d  %s\n",
					r.StartedAt, r.Mode, r.Status, r.Indexed, r.Failed, utils.Truncate(r.Source, 48))
			}
		}
		return nil
	}
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
