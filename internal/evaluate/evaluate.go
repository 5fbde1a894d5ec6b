// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package evaluate judges candidate papers against the review criteria
// through the inference collaborator. Judgments the model cannot support
// confidently become uncertain decisions flagged for human review. An
// unparsable response is a disposition to record, never an error to raise.
package evaluate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/review-engine/internal/llm"
	"github.com/pdiddy/review-engine/pkg/types"
)

// ExclusionStage is recorded on decisions made at this pipeline step, so the
// audit trail shows where a paper was removed.
const ExclusionStage = "evaluation"

// defaultMinConfidence is the parse-confidence floor below which a judgment
// is downgraded to uncertain.
const defaultMinConfidence = 0.5

// Evaluator produces inclusion decisions for surviving candidates.
type Evaluator struct {
	LLM llm.Client

	// MinConfidence overrides the confidence floor. Zero uses the default.
	MinConfidence float64
}

// judgment is the structured response expected from the model.
type judgment struct {
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence"`
	Quality    float64 `json:"quality"`
	Rationale  string  `json:"rationale"`
}

// validStatuses maps accepted judgment statuses to decision statuses.
var validStatuses = map[string]types.InclusionStatus{
	"included":  types.StatusIncluded,
	"excluded":  types.StatusExcluded,
	"uncertain": types.StatusUncertain,
}

// Evaluate judges one paper against the criteria. It never returns an
// error: collaborator failures, timeouts, and unparsable output all map to
// an uncertain decision flagged NeedsReview.
func (e *Evaluator) Evaluate(ctx context.Context, paper types.PaperData, criteria types.SearchCriteria) types.InclusionDecision {
	raw, err := e.LLM.Complete(ctx, renderJudgmentPrompt(paper, criteria))
	if err != nil {
		reason := "evaluator call failed"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "evaluator call timed out"
		}
		return uncertain(paper.ID, fmt.Sprintf("%s: %v", reason, err))
	}

	var j judgment
	if err := llm.ExtractJSON(raw, &j); err != nil {
		return uncertain(paper.ID, fmt.Sprintf("unparsable evaluator output: %v", err))
	}

	status, ok := validStatuses[strings.ToLower(strings.TrimSpace(j.Status))]
	if !ok {
		return uncertain(paper.ID, fmt.Sprintf("evaluator returned unknown status %q", j.Status))
	}

	confidence := clamp01(j.Confidence)
	quality := clamp01(j.Quality)

	minConfidence := e.MinConfidence
	if minConfidence <= 0 {
		minConfidence = defaultMinConfidence
	}

	decision := types.InclusionDecision{
		PaperID:    paper.ID,
		Status:     status,
		Confidence: confidence,
		Quality:    quality,
		Rationale:  strings.TrimSpace(j.Rationale),
	}

	if status != types.StatusUncertain && confidence < minConfidence {
		decision.Status = types.StatusUncertain
		decision.NeedsReview = true
		decision.Rationale = fmt.Sprintf("confidence %.2f below floor %.2f: %s",
			confidence, minConfidence, decision.Rationale)
	}

	switch decision.Status {
	case types.StatusExcluded:
		decision.Stage = ExclusionStage
	case types.StatusUncertain:
		decision.Stage = ExclusionStage
		decision.NeedsReview = true
	}

	return decision
}

// uncertain builds the recovery decision for output the pipeline could not
// use. The paper stays in the audit trail and is surfaced for human review.
func uncertain(paperID, rationale string) types.InclusionDecision {
	return types.InclusionDecision{
		PaperID:     paperID,
		Status:      types.StatusUncertain,
		Stage:       ExclusionStage,
		Rationale:   rationale,
		NeedsReview: true,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
