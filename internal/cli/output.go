// Package cli provides output formatting for the QueryTube CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/querytube/querytube/internal/models"
	"github.com/querytube/querytube/pkg/utils"
)

// OutputFormat is the format for CLI output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputCompact is one result per line.
	OutputCompact OutputFormat = "compact"
)

// ParseFormat returns the OutputFormat for s, or an error for unknown values.
func ParseFormat(s string) (OutputFormat, error) {
	switch s {
	case "", "text":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	case "compact":
		return OutputCompact, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	case OutputCompact:
		for _, r := range response.Results {
			fmt.Fprintf(w, "%d\t%.4f\t%s\t%s\n", r.Rank, r.Score, r.VideoID, utils.Truncate(r.Title, 60))
		}
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d results in %dms\n\n", response.Total, response.TookMS)
	for _, r := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", r.Rank, r.Score)
		fmt.Fprintf(w, "Video: %s\n", r.VideoID)
		fmt.Fprintf(w, "Title: %s\n", r.Title)
		if r.Channel != "" {
			fmt.Fprintf(w, "Channel: %s\n", r.Channel)
		}
		if !r.PublishedAt.IsZero() {
			fmt.Fprintf(w, "Published: %s\n", r.PublishedAt.Format("2006-01-02"))
		}
		if r.Snippet != "" {
			fmt.Fprintf(w, "\n%s\n", r.Snippet)
		}
		fmt.Fprintln(w)
	}
}

// WriteStatus writes the system status to w.
func WriteStatus(w io.Writer, status *models.SystemStatus, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}
	fmt.Fprintf(w, "status:         %s\n", status.Status)
	fmt.Fprintf(w, "version:        %s\n", status.Version)
	fmt.Fprintf(w, "uptime:         %.0fs\n", status.UptimeSeconds)
	fmt.Fprintf(w, "index_loaded:   %t\n", status.IndexLoaded)
	fmt.Fprintf(w, "index_size:     %d\n", status.IndexSize)
	fmt.Fprintf(w, "total_videos:   %d\n", status.TotalVideos)
	if len(status.StageCounts) > 0 {
		fmt.Fprintln(w, "stages:")
		for _, stage := range []string{
			models.StatusNew, models.StatusCollected, models.StatusTranscribed,
			models.StatusTranscriptFailed, models.StatusEmbedded,
		} {
			if n, ok := status.StageCounts[stage]; ok {
				fmt.Fprintf(w, "  %-18s %d\n", strings.ToLower(stage)+":", n)
			}
		}
	}
	return nil
}
