// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package score produces the numeric dimensions of the review: per-paper
// relevance scores and the composite ranking that combines them.
package score

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/pdiddy/review-engine/internal/llm"
	"github.com/pdiddy/review-engine/pkg/types"
)

// RelevanceSource is the relevance-scoring collaborator. Implementations
// may return out-of-range values; callers never see them unbounded.
type RelevanceSource interface {
	ScoreRelevance(ctx context.Context, paper types.PaperData, question string) (float64, string, error)
}

// ScoreBatch scores every paper against the question and bounds the results
// to [MinRelevanceScore, MaxRelevanceScore]. Out-of-range scores are clamped
// and flagged; a source failure yields a zero-score flagged result rather
// than failing the batch.
func ScoreBatch(ctx context.Context, src RelevanceSource, papers []types.PaperData, question string) types.BatchScoringResult {
	out := types.BatchScoringResult{
		Results: make([]types.ScoringResult, 0, len(papers)),
	}

	for _, p := range papers {
		result := ScoreOne(ctx, src, p, question)
		if result.Clamped {
			out.Clamped++
		}
		if result.Failed {
			out.Failed++
		}
		out.Results = append(out.Results, result)
	}

	return out
}

// ScoreOne scores a single paper, applying the bounds policy.
func ScoreOne(ctx context.Context, src RelevanceSource, paper types.PaperData, question string) types.ScoringResult {
	score, reasoning, err := src.ScoreRelevance(ctx, paper, question)
	if err != nil {
		return types.ScoringResult{
			PaperID:   paper.ID,
			Score:     types.MinRelevanceScore,
			Reasoning: fmt.Sprintf("scoring failed: %v", err),
			Failed:    true,
		}
	}

	result := types.ScoringResult{
		PaperID:   paper.ID,
		Score:     score,
		Reasoning: reasoning,
	}
	if score < types.MinRelevanceScore {
		result.Score = types.MinRelevanceScore
		result.Clamped = true
	}
	if score > types.MaxRelevanceScore {
		result.Score = types.MaxRelevanceScore
		result.Clamped = true
	}
	return result
}

// relevancePromptTmpl asks the model to rate a paper's relevance to the
// research question.
var relevancePromptTmpl = template.Must(template.New("relevance").Parse(`You are a systematic-review relevance rater. Rate how relevant the following paper is to the research question.

Respond with a JSON object containing:
- score: a float between 0.0 (unrelated) and 1.0 (directly answers the question)
- reasoning: one sentence naming what the paper does or does not address

Do not include any text outside the JSON object.

Example response:
{"score": 0.7, "reasoning": "Studies the same intervention but in a narrower population."}

Research question:
{{.Question}}

Paper title:
{{.Title}}

Paper abstract:
{{.Abstract}}
`))

// LLMRelevance scores relevance through the inference collaborator.
type LLMRelevance struct {
	LLM llm.Client
}

// relevanceResponse is the structured rating expected from the model.
type relevanceResponse struct {
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

// ScoreRelevance prompts the model for a relevance rating. Scores are
// returned as-is; bounding is the caller's policy.
func (r *LLMRelevance) ScoreRelevance(ctx context.Context, paper types.PaperData, question string) (float64, string, error) {
	var buf bytes.Buffer
	data := struct{ Question, Title, Abstract string }{question, paper.Title, paper.Abstract}
	if err := relevancePromptTmpl.Execute(&buf, data); err != nil {
		return 0, "", fmt.Errorf("rendering prompt: %w", err)
	}

	raw, err := r.LLM.Complete(ctx, buf.String())
	if err != nil {
		return 0, "", err
	}

	var resp relevanceResponse
	if err := llm.ExtractJSON(raw, &resp); err != nil {
		return 0, "", fmt.Errorf("parsing relevance response: %w", err)
	}
	return resp.Score, resp.Reasoning, nil
}
