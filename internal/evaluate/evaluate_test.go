// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evaluate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/review-engine/pkg/types"
)

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Complete(_ context.Context, _ string) (string, error) {
	return f.response, f.err
}

var paper = types.PaperData{ID: "doc1", Title: "Metformin RCT", Abstract: "abstract"}
var criteria = types.SearchCriteria{Question: "Does metformin reduce cardiovascular events?"}

func TestEvaluateIncluded(t *testing.T) {
	e := &Evaluator{LLM: &fakeLLM{
		response: `{"status":"included","confidence":0.9,"quality":0.8,"rationale":"Meets all criteria."}`,
	}}

	d := e.Evaluate(context.Background(), paper, criteria)

	assert.Equal(t, types.StatusIncluded, d.Status)
	assert.Equal(t, 0.9, d.Confidence)
	assert.Equal(t, 0.8, d.Quality)
	assert.Empty(t, d.Stage)
	assert.False(t, d.NeedsReview)
}

func TestEvaluateExcludedRecordsStage(t *testing.T) {
	e := &Evaluator{LLM: &fakeLLM{
		response: `{"status":"excluded","confidence":0.85,"quality":0.3,"rationale":"Animal study."}`,
	}}

	d := e.Evaluate(context.Background(), paper, criteria)

	assert.Equal(t, types.StatusExcluded, d.Status)
	assert.Equal(t, ExclusionStage, d.Stage)
}

func TestEvaluateUnparsableOutputIsUncertain(t *testing.T) {
	e := &Evaluator{LLM: &fakeLLM{response: "I think this paper is probably relevant."}}

	d := e.Evaluate(context.Background(), paper, criteria)

	assert.Equal(t, types.StatusUncertain, d.Status)
	assert.True(t, d.NeedsReview)
	assert.Contains(t, d.Rationale, "unparsable")
}

func TestEvaluateUnknownStatusIsUncertain(t *testing.T) {
	e := &Evaluator{LLM: &fakeLLM{
		response: `{"status":"maybe","confidence":0.9,"quality":0.5,"rationale":"?"}`,
	}}

	d := e.Evaluate(context.Background(), paper, criteria)

	assert.Equal(t, types.StatusUncertain, d.Status)
	assert.True(t, d.NeedsReview)
	assert.Contains(t, d.Rationale, "maybe")
}

func TestEvaluateCallFailureIsUncertain(t *testing.T) {
	e := &Evaluator{LLM: &fakeLLM{err: errors.New("connection refused")}}

	d := e.Evaluate(context.Background(), paper, criteria)

	assert.Equal(t, types.StatusUncertain, d.Status)
	assert.True(t, d.NeedsReview)
	assert.Equal(t, "doc1", d.PaperID)
}

func TestEvaluateTimeoutIsUncertain(t *testing.T) {
	e := &Evaluator{LLM: &fakeLLM{err: context.DeadlineExceeded}}

	d := e.Evaluate(context.Background(), paper, criteria)

	assert.Equal(t, types.StatusUncertain, d.Status)
	assert.Contains(t, d.Rationale, "timed out")
}

func TestEvaluateLowConfidenceDowngraded(t *testing.T) {
	e := &Evaluator{LLM: &fakeLLM{
		response: `{"status":"included","confidence":0.3,"quality":0.7,"rationale":"Weak signal."}`,
	}}

	d := e.Evaluate(context.Background(), paper, criteria)

	assert.Equal(t, types.StatusUncertain, d.Status)
	assert.True(t, d.NeedsReview)
	assert.True(t, strings.Contains(d.Rationale, "below floor"), "rationale: %s", d.Rationale)
}

func TestEvaluateClampsOutOfRangeValues(t *testing.T) {
	e := &Evaluator{LLM: &fakeLLM{
		response: `{"status":"included","confidence":1.4,"quality":-0.2,"rationale":"r"}`,
	}}

	d := e.Evaluate(context.Background(), paper, criteria)

	assert.Equal(t, 1.0, d.Confidence)
	assert.Equal(t, 0.0, d.Quality)
}

func TestEvaluateCustomConfidenceFloor(t *testing.T) {
	e := &Evaluator{
		LLM:           &fakeLLM{response: `{"status":"included","confidence":0.6,"quality":0.5,"rationale":"r"}`},
		MinConfidence: 0.8,
	}

	d := e.Evaluate(context.Background(), paper, criteria)
	assert.Equal(t, types.StatusUncertain, d.Status)
}
