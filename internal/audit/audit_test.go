// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package audit

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/review-engine/internal/store"
	"github.com/pdiddy/review-engine/pkg/types"
)

func TestLogStepAppendOnlyOrdering(t *testing.T) {
	kv := store.NewMemory()
	d := NewDocumenter(kv, "run1", nil)
	ctx := context.Background()

	d.LogStep(ctx, "criteria.validated", map[string]string{"q": "question"})
	d.LogStep(ctx, "plan.built", map[string]int{"queries": 4})
	d.LogStep(ctx, "search.executed", nil)

	steps, err := d.Steps(ctx)
	require.NoError(t, err)
	require.Len(t, steps, 3)

	for i, step := range steps {
		assert.Equal(t, i, step.Seq)
		assert.Equal(t, "run1", step.RunID)
		assert.NotEmpty(t, step.ID)
	}
	assert.Equal(t, "criteria.validated", steps[0].Action)
	assert.Equal(t, "plan.built", steps[1].Action)
	assert.Equal(t, "search.executed", steps[2].Action)
}

func TestStepIDsSortInAppendOrder(t *testing.T) {
	kv := store.NewMemory()
	d := NewDocumenter(kv, "run1", nil)
	ctx := context.Background()

	// Tight loop so many steps land in the same millisecond.
	for i := 0; i < 500; i++ {
		d.LogStep(ctx, "tick", nil)
	}

	steps, err := d.Steps(ctx)
	require.NoError(t, err)
	require.Len(t, steps, 500)
	for i := 1; i < len(steps); i++ {
		assert.Less(t, steps[i-1].ID, steps[i].ID,
			"step %d ID must sort before step %d", i-1, i)
	}
}

func TestLogStepFailureIsNotFatal(t *testing.T) {
	kv := store.NewMemory()
	kv.FailPut = true
	var warn bytes.Buffer
	d := NewDocumenter(kv, "run1", &warn)

	d.LogStep(context.Background(), "plan.built", nil)

	assert.Contains(t, warn.String(), "not written")
	assert.Equal(t, 1, d.StepCount(), "sequence advances even when the write fails")
}

func TestWriteCheckpointFailureIsFatal(t *testing.T) {
	kv := store.NewMemory()
	kv.FailPut = true
	d := NewDocumenter(kv, "run1", nil)

	_, err := d.WriteCheckpoint(context.Background(), types.StagePlanned, map[string]string{"k": "v"})
	require.Error(t, err)

	var cpErr *CheckpointError
	require.ErrorAs(t, err, &cpErr)
	assert.Equal(t, types.StagePlanned, cpErr.Stage)
}

func TestLatestCheckpoint(t *testing.T) {
	kv := store.NewMemory()
	d := NewDocumenter(kv, "run1", nil)
	ctx := context.Background()

	_, ok, err := LatestCheckpoint(ctx, kv, "run1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = d.WriteCheckpoint(ctx, types.StagePlanned, "first")
	require.NoError(t, err)
	_, err = d.WriteCheckpoint(ctx, types.StageSearched, "second")
	require.NoError(t, err)

	cp, ok, err := LatestCheckpoint(ctx, kv, "run1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.StageSearched, cp.Stage)
	assert.Equal(t, 1, cp.Seq)
}

func TestLatestCheckpointMissingEntry(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()

	d := NewDocumenter(kv, "run1", nil)
	_, err := d.WriteCheckpoint(ctx, types.StagePlanned, "state")
	require.NoError(t, err)

	// Simulate a listed key whose value read comes back absent.
	kv.MissGet = true

	_, ok, err := LatestCheckpoint(ctx, kv, "run1")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "listed but missing")
	assert.NotContains(t, err.Error(), "%!w", "error must not format a nil cause")
}

func TestOpenContinuesSequences(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()

	first := NewDocumenter(kv, "run1", nil)
	first.LogStep(ctx, "a", nil)
	first.LogStep(ctx, "b", nil)
	_, err := first.WriteCheckpoint(ctx, types.StagePlanned, "state")
	require.NoError(t, err)

	resumed, err := Open(ctx, kv, "run1", nil)
	require.NoError(t, err)
	resumed.LogStep(ctx, "c", nil)
	cp, err := resumed.WriteCheckpoint(ctx, types.StageSearched, "state2")
	require.NoError(t, err)

	steps, err := ReadSteps(ctx, kv, "run1")
	require.NoError(t, err)
	require.Len(t, steps, 3, "resume must append, not overwrite")
	assert.Equal(t, 2, steps[2].Seq)
	assert.Equal(t, "c", steps[2].Action)
	assert.Equal(t, 1, cp.Seq)
}

func TestRunsAreIsolated(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()

	NewDocumenter(kv, "run1", nil).LogStep(ctx, "a", nil)
	NewDocumenter(kv, "run2", nil).LogStep(ctx, "b", nil)

	steps, err := ReadSteps(ctx, kv, "run1")
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "a", steps[0].Action)
}
