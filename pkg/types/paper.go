// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// PaperData is a candidate paper flowing through the pipeline. The document
// ID is the join key for every downstream record (filter results, decisions,
// scores, assessments).
type PaperData struct {
	// ID is the canonical document identifier from the retrieval source
	// (arXiv ID, DOI, PMID, or URL).
	ID string `json:"id" yaml:"id"`

	// Title is the paper title as returned by the source.
	Title string `json:"title" yaml:"title"`

	// Abstract is the paper abstract or summary.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Date is the publication or preprint date.
	Date time.Time `json:"date" yaml:"date"`

	// Source identifies which retrieval backend found this paper.
	Source string `json:"source" yaml:"source"`

	// StudyType is the study design as reported by the source
	// (e.g. "rct", "cohort"). Empty when unknown.
	StudyType string `json:"study_type,omitempty" yaml:"study_type,omitempty"`

	// Seq is the ingestion sequence assigned during search aggregation
	// (first-seen order). It is the stable tie-break key for ranking.
	Seq int `json:"seq" yaml:"seq"`
}

// FilterReason is a machine-readable code explaining an initial-filter rejection.
type FilterReason string

const (
	ReasonDateOutOfRange      FilterReason = "date-out-of-range"
	ReasonExclusionKeyword    FilterReason = "exclusion-keyword"
	ReasonStudyTypeMismatch   FilterReason = "study-type-mismatch"
	ReasonInsufficientContent FilterReason = "insufficient-content"
)

// FilterResult records the initial-filter outcome for one paper. Every
// candidate yields exactly one FilterResult; rejected papers carry at least
// one reason code.
type FilterResult struct {
	PaperID string         `json:"paper_id" yaml:"paper_id"`
	Pass    bool           `json:"pass" yaml:"pass"`
	Reasons []FilterReason `json:"reasons,omitempty" yaml:"reasons,omitempty"`
}

// BatchFilterResult holds the outcome of filtering one candidate batch.
type BatchFilterResult struct {
	// Results has one entry per input paper, in input order.
	Results []FilterResult `json:"results" yaml:"results"`

	// Passed lists the papers that survived, in input order.
	Passed []PaperData `json:"passed" yaml:"passed"`

	// Rejected counts the papers removed.
	Rejected int `json:"rejected" yaml:"rejected"`
}

// InclusionStatus is the outcome of the LLM-backed criteria judgment.
type InclusionStatus string

const (
	StatusIncluded  InclusionStatus = "included"
	StatusExcluded  InclusionStatus = "excluded"
	StatusUncertain InclusionStatus = "uncertain"
)

// InclusionDecision is the criteria judgment for one paper. Status is
// uncertain only when the evaluator output could not be parsed confidently;
// uncertain papers are flagged for human review, never silently dropped.
type InclusionDecision struct {
	PaperID string          `json:"paper_id" yaml:"paper_id"`
	Status  InclusionStatus `json:"status" yaml:"status"`

	// Stage names the pipeline step at which the paper was excluded
	// (e.g. "initial-filter", "evaluation"). Empty for included papers.
	Stage string `json:"stage,omitempty" yaml:"stage,omitempty"`

	// Confidence is the evaluator's self-reported confidence in [0,1].
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Quality is the evaluator's methodological-quality appraisal in [0,1].
	// It feeds the "quality" dimension of the composite score.
	Quality float64 `json:"quality" yaml:"quality"`

	// Rationale is the evaluator's free-text justification.
	Rationale string `json:"rationale,omitempty" yaml:"rationale,omitempty"`

	// NeedsReview marks decisions that require a human pass (unparsable or
	// low-confidence evaluator output, per-paper timeouts).
	NeedsReview bool `json:"needs_review,omitempty" yaml:"needs_review,omitempty"`
}

// Relevance score bounds. Scorer output outside these bounds is clamped and
// flagged, never propagated.
const (
	MinRelevanceScore = 0.0
	MaxRelevanceScore = 1.0
)

// ScoringResult is the relevance score for one paper.
type ScoringResult struct {
	PaperID string `json:"paper_id" yaml:"paper_id"`

	// Score is the relevance score, always within
	// [MinRelevanceScore, MaxRelevanceScore].
	Score float64 `json:"score" yaml:"score"`

	// Reasoning is the scorer's explanation.
	Reasoning string `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`

	// Clamped marks scores that arrived out of bounds and were clamped.
	Clamped bool `json:"clamped,omitempty" yaml:"clamped,omitempty"`

	// Failed marks papers whose scoring call failed; the score is zero.
	Failed bool `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// BatchScoringResult holds relevance scores for one batch.
type BatchScoringResult struct {
	Results []ScoringResult `json:"results" yaml:"results"`
	Clamped int             `json:"clamped" yaml:"clamped"`
	Failed  int             `json:"failed" yaml:"failed"`
}

// AssessedPaper is a paper with its composite score and quality-gate outcome.
// Rank is a total order over the assessed set; ties are broken by ingestion
// sequence so ranking is reproducible across runs.
type AssessedPaper struct {
	Paper PaperData `json:"paper" yaml:"paper"`

	// Dimensions holds the normalized per-dimension scores in [0,1].
	Dimensions map[string]float64 `json:"dimensions" yaml:"dimensions"`

	// Composite is the weighted sum of the normalized dimensions.
	Composite float64 `json:"composite" yaml:"composite"`

	// Rank is the 1-based position in the composite ordering.
	Rank int `json:"rank" yaml:"rank"`

	// PassedGate reports whether the composite score met the quality-gate
	// threshold. Papers failing the gate stay in the result set.
	PassedGate bool `json:"passed_gate" yaml:"passed_gate"`
}
