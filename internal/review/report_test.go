// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package review

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/review-engine/pkg/types"
)

func fixtureResult() types.SystematicReviewResult {
	return types.SystematicReviewResult{
		RunID:    "run-42",
		Question: "Does metformin reduce cardiovascular events?",
		State:    types.StageReported,
		Statistics: types.ReviewStatistics{
			Candidates: 3,
			Filtered:   1,
			Included:   1,
			Uncertain:  1,
			Ranked:     1,
			GatePassed: 1,
			Timings: []types.StageTiming{
				{Stage: types.StageSearched, Duration: 120 * time.Millisecond},
			},
			CacheHits:    2,
			CacheMisses:  4,
			CacheHitRate: 2.0 / 6.0,
		},
		Papers: []types.AssessedPaper{
			{
				Paper: types.PaperData{
					ID:     "paper-a",
					Title:  "Metformin and cardiovascular outcomes",
					Date:   time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC),
					Source: "pubmed",
				},
				Dimensions: map[string]float64{"relevance": 0.9, "quality": 0.8},
				Composite:  0.86,
				Rank:       1,
				PassedGate: true,
			},
		},
		Decisions: []types.InclusionDecision{
			{PaperID: "paper-b", Status: types.StatusExcluded, Stage: "initial-filter", Rationale: "initial filter: date-out-of-range"},
			{PaperID: "paper-a", Status: types.StatusIncluded, Confidence: 0.9, Quality: 0.8},
			{PaperID: "paper-c", Status: types.StatusUncertain, Stage: "evaluation", Rationale: "Cannot tell from the abstract.", NeedsReview: true},
		},
		FilterResults: []types.FilterResult{
			{PaperID: "paper-a", Pass: true},
			{PaperID: "paper-b", Pass: false, Reasons: []types.FilterReason{types.ReasonDateOutOfRange}},
			{PaperID: "paper-c", Pass: true},
		},
		Steps: 12,
	}
}

func TestExportJSONRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, fixtureResult(), FormatJSON))

	var got types.SystematicReviewResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "run-42", got.RunID)
	require.Len(t, got.Papers, 1)
	assert.Equal(t, 1, got.Papers[0].Rank)
	assert.Len(t, got.Decisions, 3)
}

func TestExportMarkdownSections(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, fixtureResult(), FormatMarkdown))
	md := buf.String()

	assert.Contains(t, md, "# Systematic Review Report")
	assert.Contains(t, md, "Does metformin reduce cardiovascular events?")
	assert.Contains(t, md, "run-42")
	assert.Contains(t, md, "### 1. Metformin and cardiovascular outcomes")
	assert.Contains(t, md, "Composite: 0.860 (passed gate)")
	assert.Contains(t, md, "## Uncertain (needs review)")
	assert.Contains(t, md, "paper-c")
	assert.Contains(t, md, "## Excluded")
	assert.Contains(t, md, "date-out-of-range")
	assert.Contains(t, md, "Audit steps: 12")
}

func TestExportCSVRankedTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, fixtureResult(), FormatCSV))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2, "header plus one ranked paper")

	header := records[0]
	assert.Equal(t, []string{"rank", "paper_id", "title", "composite", "passed_gate", "quality", "relevance"}, header)

	row := records[1]
	assert.Equal(t, "1", row[0])
	assert.Equal(t, "paper-a", row[1])
	assert.Equal(t, "0.860", row[3])
	assert.Equal(t, "true", row[4])
}

func TestExportUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := Export(&buf, fixtureResult(), "xml")
	assert.Error(t, err)
	assert.Zero(t, buf.Len())
}
