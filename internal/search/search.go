// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search executes a search plan against the retrieval collaborator
// and aggregates the hits into a unique candidate set.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pdiddy/review-engine/pkg/types"
)

// ErrAllQueriesFailed reports a plan whose every query errored. Partial
// failure is not fatal: a single failing query is recorded and skipped.
var ErrAllQueriesFailed = errors.New("all planned queries failed")

// Filters narrows a retrieval call. Fields mirror the criteria the
// collaborator can apply server-side; everything else is filtered locally.
type Filters struct {
	DateFrom   time.Time
	DateTo     time.Time
	MaxResults int
}

// Searcher is the retrieval collaborator contract. Implementations must be
// safe to call concurrently and idempotent for identical inputs.
type Searcher interface {
	Search(ctx context.Context, query string, f Filters) ([]types.PaperData, error)
}

// Execute runs every planned query in order, merges the hits, and
// deduplicates by document ID with first-seen wins. Duplicate hits merge
// missing fields into the kept record. Per-query counts and latency are
// recorded for audit; failures are reported on w and skipped. When every
// query fails Execute returns ErrAllQueriesFailed.
func Execute(ctx context.Context, plan types.SearchPlan, searcher Searcher, criteria types.SearchCriteria, cfg types.RetrievalConfig, w io.Writer) (types.AggregatedResults, error) {
	if len(plan.Queries) == 0 {
		return types.AggregatedResults{}, fmt.Errorf("executing plan: no queries")
	}

	filters := Filters{
		DateFrom:   criteria.DateFrom,
		DateTo:     criteria.DateTo,
		MaxResults: cfg.MaxResults,
	}

	var agg types.AggregatedResults
	seen := make(map[string]int) // document ID → index in agg.Papers

	for _, q := range plan.Queries {
		start := time.Now()
		hits, err := searcher.Search(ctx, q.Text, filters)
		executed := types.ExecutedQuery{
			Query:    q,
			Hits:     len(hits),
			Duration: time.Since(start),
		}

		if err != nil {
			executed.Error = err.Error()
			agg.FailedQueries++
			fmt.Fprintf(w, "warning: query %q failed: %v\n", q.Text, err)
			agg.Executed = append(agg.Executed, executed)
			continue
		}

		for _, hit := range hits {
			if hit.ID == "" {
				continue
			}
			if idx, ok := seen[hit.ID]; ok {
				mergeInto(&agg.Papers[idx], hit)
				agg.DupsRemoved++
				continue
			}
			hit.Seq = len(agg.Papers)
			seen[hit.ID] = hit.Seq
			agg.Papers = append(agg.Papers, hit)
		}

		agg.Executed = append(agg.Executed, executed)
	}

	if agg.FailedQueries == len(plan.Queries) {
		return types.AggregatedResults{}, fmt.Errorf("executing plan: %w", ErrAllQueriesFailed)
	}

	fmt.Fprintf(w, "search: %d queries, %d unique candidates (%d duplicates removed, %d queries failed)\n",
		len(plan.Queries), len(agg.Papers), agg.DupsRemoved, agg.FailedQueries)

	return agg, nil
}

// mergeInto fills empty fields of the kept record from a duplicate hit.
// First-seen wins for every populated field.
func mergeInto(dst *types.PaperData, src types.PaperData) {
	if dst.Title == "" && src.Title != "" {
		dst.Title = src.Title
	}
	if dst.Abstract == "" && src.Abstract != "" {
		dst.Abstract = src.Abstract
	}
	if dst.Date.IsZero() && !src.Date.IsZero() {
		dst.Date = src.Date
	}
	if dst.StudyType == "" && src.StudyType != "" {
		dst.StudyType = src.StudyType
	}
	if dst.Source == "" {
		dst.Source = src.Source
	} else if src.Source != "" && !strings.Contains(dst.Source, src.Source) {
		dst.Source = dst.Source + "," + src.Source
	}
}
