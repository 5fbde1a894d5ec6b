// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the review-engine pipeline.
package types

import "time"

// QueryType tags the retrieval strategy a planned query targets. Plans span
// multiple types to reduce single-strategy retrieval bias.
type QueryType string

const (
	QuerySemantic QueryType = "semantic"
	QueryKeyword  QueryType = "keyword"
	QueryHybrid   QueryType = "hybrid"
)

// PICO holds the structured components of a clinical research question:
// Population, Intervention, Comparison, Outcome.
type PICO struct {
	Population   string `json:"population,omitempty" yaml:"population,omitempty"`
	Intervention string `json:"intervention,omitempty" yaml:"intervention,omitempty"`
	Comparison   string `json:"comparison,omitempty" yaml:"comparison,omitempty"`
	Outcome      string `json:"outcome,omitempty" yaml:"outcome,omitempty"`
}

// IsEmpty reports whether no PICO component was extracted.
func (p PICO) IsEmpty() bool {
	return p.Population == "" && p.Intervention == "" && p.Comparison == "" && p.Outcome == ""
}

// PlannedQuery is one generated search query with its strategy tag and the
// planner's rationale for generating it.
type PlannedQuery struct {
	// Text is the query string. Never empty in a valid plan.
	Text string `json:"text" yaml:"text"`

	// Type tags the retrieval strategy the query targets.
	Type QueryType `json:"type" yaml:"type"`

	// Rationale explains why the planner generated this query.
	Rationale string `json:"rationale,omitempty" yaml:"rationale,omitempty"`
}

// SearchPlan is the full diversified query set generated from the criteria.
type SearchPlan struct {
	// Question is the research question the plan was generated from.
	Question string `json:"question" yaml:"question"`

	// PICO holds the extracted question components the queries build on.
	PICO PICO `json:"pico" yaml:"pico"`

	// Queries lists the deduplicated queries, at least one per query type.
	Queries []PlannedQuery `json:"queries" yaml:"queries"`
}

// ExecutedQuery records the outcome of running one planned query.
type ExecutedQuery struct {
	Query PlannedQuery `json:"query" yaml:"query"`

	// Hits is the raw result count before deduplication.
	Hits int `json:"hits" yaml:"hits"`

	// Duration is the retrieval latency for this query.
	Duration time.Duration `json:"duration" yaml:"duration"`

	// Error records a per-query failure. Empty on success.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// AggregatedResults is the merged, deduplicated outcome of running a plan.
// The paper set has unique document IDs; first-seen wins.
type AggregatedResults struct {
	// Papers is the deduplicated candidate set in first-seen order.
	Papers []PaperData `json:"papers" yaml:"papers"`

	// Executed records per-query hit counts and latency for audit.
	Executed []ExecutedQuery `json:"executed" yaml:"executed"`

	// DupsRemoved counts hits merged into an already-seen paper.
	DupsRemoved int `json:"dups_removed" yaml:"dups_removed"`

	// FailedQueries counts queries that errored and were skipped.
	FailedQueries int `json:"failed_queries" yaml:"failed_queries"`
}
