// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package review

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/review-engine/pkg/types"
)

// Export formats.
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
)

// Export writes the review result to w in the requested format.
func Export(w io.Writer, result types.SystematicReviewResult, format string) error {
	switch format {
	case FormatJSON:
		return exportJSON(w, result)
	case FormatMarkdown:
		return exportMarkdown(w, result)
	case FormatCSV:
		return exportCSV(w, result)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

func exportJSON(w io.Writer, result types.SystematicReviewResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// exportMarkdown renders the human-readable report: ranked papers, per-paper
// dimension breakdowns, disposition of every candidate, and run statistics.
func exportMarkdown(w io.Writer, result types.SystematicReviewResult) error {
	var b strings.Builder

	b.WriteString("# Systematic Review Report\n\n")
	fmt.Fprintf(&b, "**Question:** %s\n\n", result.Question)
	fmt.Fprintf(&b, "**Run:** `%s` (%s)\n\n", result.RunID, result.State)

	stats := result.Statistics
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "| Candidates | Filtered | Included | Excluded | Uncertain | Ranked | Passed gate |\n")
	fmt.Fprintf(&b, "|---|---|---|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d | %d | %d |\n\n",
		stats.Candidates, stats.Filtered, stats.Included, stats.Excluded,
		stats.Uncertain, stats.Ranked, stats.GatePassed)

	if len(result.Papers) > 0 {
		b.WriteString("## Ranked papers\n\n")
		for _, ap := range result.Papers {
			gate := "passed gate"
			if !ap.PassedGate {
				gate = "below gate"
			}
			fmt.Fprintf(&b, "### %d. %s\n\n", ap.Rank, ap.Paper.Title)
			fmt.Fprintf(&b, "- Composite: %.3f (%s)\n", ap.Composite, gate)
			for _, dim := range sortedDims(ap.Dimensions) {
				fmt.Fprintf(&b, "- %s: %.3f\n", dim, ap.Dimensions[dim])
			}
			fmt.Fprintf(&b, "- Source: %s\n", ap.Paper.Source)
			if !ap.Paper.Date.IsZero() {
				fmt.Fprintf(&b, "- Date: %s\n", ap.Paper.Date.Format("2006-01-02"))
			}
			b.WriteString("\n")
		}
	}

	uncertain := decisionsWith(result.Decisions, types.StatusUncertain)
	if len(uncertain) > 0 {
		b.WriteString("## Uncertain (needs review)\n\n")
		for _, d := range uncertain {
			fmt.Fprintf(&b, "- `%s`: %s\n", d.PaperID, d.Rationale)
		}
		b.WriteString("\n")
	}

	excluded := decisionsWith(result.Decisions, types.StatusExcluded)
	if len(excluded) > 0 {
		b.WriteString("## Excluded\n\n")
		for _, d := range excluded {
			fmt.Fprintf(&b, "- `%s` (%s): %s\n", d.PaperID, d.Stage, d.Rationale)
		}
		b.WriteString("\n")
	}

	if len(stats.Timings) > 0 {
		b.WriteString("## Stage timings\n\n")
		for _, t := range stats.Timings {
			fmt.Fprintf(&b, "- %s: %s\n", t.Stage, t.Duration.Round(1e6))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Cache: %d hits, %d misses (%.0f%% hit rate). Audit steps: %d.\n",
		stats.CacheHits, stats.CacheMisses, stats.CacheHitRate*100, result.Steps)

	_, err := io.WriteString(w, b.String())
	return err
}

// exportCSV writes the ranked table, one row per assessed paper.
func exportCSV(w io.Writer, result types.SystematicReviewResult) error {
	cw := csv.NewWriter(w)

	dims := dimensionColumns(result.Papers)
	header := append([]string{"rank", "paper_id", "title", "composite", "passed_gate"}, dims...)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, ap := range result.Papers {
		row := []string{
			strconv.Itoa(ap.Rank),
			ap.Paper.ID,
			ap.Paper.Title,
			strconv.FormatFloat(ap.Composite, 'f', 3, 64),
			strconv.FormatBool(ap.PassedGate),
		}
		for _, dim := range dims {
			row = append(row, strconv.FormatFloat(ap.Dimensions[dim], 'f', 3, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func decisionsWith(decisions []types.InclusionDecision, status types.InclusionStatus) []types.InclusionDecision {
	var out []types.InclusionDecision
	for _, d := range decisions {
		if d.Status == status {
			out = append(out, d)
		}
	}
	return out
}

func sortedDims(dims map[string]float64) []string {
	names := make([]string, 0, len(dims))
	for name := range dims {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func dimensionColumns(papers []types.AssessedPaper) []string {
	seen := map[string]bool{}
	var dims []string
	for _, ap := range papers {
		for dim := range ap.Dimensions {
			if !seen[dim] {
				seen[dim] = true
				dims = append(dims, dim)
			}
		}
	}
	sort.Strings(dims)
	return dims
}
