// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"time"
)

// ReviewStage names a state of the review pipeline. Stages advance linearly;
// StageFailed and StageReported are terminal.
type ReviewStage string

const (
	StageCriteriaValidated ReviewStage = "criteria_validated"
	StagePlanned           ReviewStage = "planned"
	StageSearched          ReviewStage = "searched"
	StageFiltered          ReviewStage = "filtered"
	StageEvaluated         ReviewStage = "evaluated"
	StageScored            ReviewStage = "scored"
	StageRanked            ReviewStage = "ranked"
	StageReported          ReviewStage = "reported"
	StageFailed            ReviewStage = "failed"
)

// ReviewMode selects how stage transitions fire.
type ReviewMode string

const (
	// ModeAuto advances through all stages without pausing.
	ModeAuto ReviewMode = "auto"

	// ModeCheckpointed pauses at each checkpoint until an external resume
	// signal arrives.
	ModeCheckpointed ReviewMode = "checkpointed"
)

// ProcessStep is one logged pipeline action in the append-only audit trail.
type ProcessStep struct {
	// ID is a ULID; IDs sort lexically in append order.
	ID string `json:"id" yaml:"id"`

	// Seq is the monotonically increasing sequence number within the run.
	Seq int `json:"seq" yaml:"seq"`

	// RunID identifies the review run.
	RunID string `json:"run_id" yaml:"run_id"`

	// Action names the pipeline action (e.g. "plan.built", "search.executed").
	Action string `json:"action" yaml:"action"`

	// Timestamp is when the step was recorded.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	// Payload is a JSON summary of the action's inputs or outputs.
	Payload json.RawMessage `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// Checkpoint is a durable snapshot of pipeline state taken at a stage
// boundary. Checkpoints are strictly ordered by Seq; resuming from one never
// skips a stage.
type Checkpoint struct {
	// ID is a ULID; IDs sort lexically in append order.
	ID string `json:"id" yaml:"id"`

	// Seq is the checkpoint's position within the run.
	Seq int `json:"seq" yaml:"seq"`

	// RunID identifies the review run.
	RunID string `json:"run_id" yaml:"run_id"`

	// Stage is the last completed stage.
	Stage ReviewStage `json:"stage" yaml:"stage"`

	// CreatedAt is when the checkpoint was written.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// State is the serialized partial pipeline state.
	State json.RawMessage `json:"state" yaml:"state"`
}

// CacheEntry is a memoized stage output. (Stage, Version, Fingerprint)
// uniquely identifies an entry.
type CacheEntry struct {
	Stage       string          `json:"stage" yaml:"stage"`
	Version     string          `json:"version" yaml:"version"`
	Fingerprint string          `json:"fingerprint" yaml:"fingerprint"`
	Payload     json.RawMessage `json:"payload" yaml:"payload"`
	CreatedAt   time.Time       `json:"created_at" yaml:"created_at"`
}

// StageTiming records how long one stage took.
type StageTiming struct {
	Stage    ReviewStage   `json:"stage" yaml:"stage"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// ReviewStatistics summarizes a run for observability and the final report.
type ReviewStatistics struct {
	// Candidates is the unique paper count after search aggregation.
	Candidates int `json:"candidates" yaml:"candidates"`

	// Filtered counts papers rejected by the initial filter.
	Filtered int `json:"filtered" yaml:"filtered"`

	// Included, Excluded, and Uncertain count evaluation outcomes.
	Included  int `json:"included" yaml:"included"`
	Excluded  int `json:"excluded" yaml:"excluded"`
	Uncertain int `json:"uncertain" yaml:"uncertain"`

	// Ranked counts papers that received a composite score.
	Ranked int `json:"ranked" yaml:"ranked"`

	// GatePassed counts ranked papers that met the quality gate.
	GatePassed int `json:"gate_passed" yaml:"gate_passed"`

	// ScoresClamped counts relevance scores clamped into bounds.
	ScoresClamped int `json:"scores_clamped" yaml:"scores_clamped"`

	// Timings records per-stage durations in execution order.
	Timings []StageTiming `json:"timings" yaml:"timings"`

	// CacheHits, CacheMisses, and CacheHitRate describe cache behavior.
	CacheHits    int     `json:"cache_hits" yaml:"cache_hits"`
	CacheMisses  int     `json:"cache_misses" yaml:"cache_misses"`
	CacheHitRate float64 `json:"cache_hit_rate" yaml:"cache_hit_rate"`
}

// SystematicReviewResult is the boundary surface returned to CLI/GUI
// collaborators after a run.
type SystematicReviewResult struct {
	// RunID identifies the run; exports and resume address runs by it.
	RunID string `json:"run_id" yaml:"run_id"`

	// Question is the research question the run answered.
	Question string `json:"question" yaml:"question"`

	// State is the terminal stage: reported, or failed.
	State ReviewStage `json:"state" yaml:"state"`

	// Statistics summarizes counts, timings, and cache behavior.
	Statistics ReviewStatistics `json:"statistics" yaml:"statistics"`

	// Papers is the ranked assessed set, best first.
	Papers []AssessedPaper `json:"papers" yaml:"papers"`

	// Decisions lists every inclusion decision, including uncertain ones.
	Decisions []InclusionDecision `json:"decisions" yaml:"decisions"`

	// FilterResults lists every initial-filter outcome, so the report can
	// explain every candidate's disposition.
	FilterResults []FilterResult `json:"filter_results" yaml:"filter_results"`

	// Steps is the number of audit-log entries the run produced.
	Steps int `json:"steps" yaml:"steps"`

	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
}
