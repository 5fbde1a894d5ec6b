// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package audit keeps the tamper-evident record of a review run: an
// append-only process log plus ordered checkpoints at stage boundaries.
// Step and checkpoint keys embed the sequence number, so history is never
// rewritten in place; a resumed run continues the sequence where it stopped.
//
// Checkpoint writes are the one place failure is fatal. If a checkpoint
// cannot be durably written the run must halt rather than proceed with an
// unrecorded state transition.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pdiddy/review-engine/internal/store"
	"github.com/pdiddy/review-engine/pkg/types"
)

// CheckpointError reports a checkpoint that could not be durably written.
// It is fatal to the run.
type CheckpointError struct {
	Stage types.ReviewStage
	Err   error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint at stage %s: %v", e.Stage, e.Err)
}

func (e *CheckpointError) Unwrap() error { return e.Err }

// Documenter records process steps and checkpoints for one review run.
type Documenter struct {
	kv    store.KV
	runID string
	warn  io.Writer

	mu      sync.Mutex
	stepSeq int
	cpSeq   int
	entropy *ulid.MonotonicEntropy
}

// NewDocumenter returns a Documenter for runID. Step-log write failures are
// reported on warn but do not halt the run; checkpoint failures do.
func NewDocumenter(kv store.KV, runID string, warn io.Writer) *Documenter {
	if warn == nil {
		warn = io.Discard
	}
	return &Documenter{
		kv:      kv,
		runID:   runID,
		warn:    warn,
		// Monotonic entropy keeps IDs minted in the same millisecond in
		// append order, so the trail sorts lexically by ID alone.
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// Open returns a Documenter whose sequences continue after the steps and
// checkpoints already stored for runID. Used when resuming a run.
func Open(ctx context.Context, kv store.KV, runID string, warn io.Writer) (*Documenter, error) {
	d := NewDocumenter(kv, runID, warn)

	steps, err := kv.List(ctx, stepPrefix(runID))
	if err != nil {
		return nil, fmt.Errorf("listing steps for run %s: %w", runID, err)
	}
	cps, err := kv.List(ctx, checkpointPrefix(runID))
	if err != nil {
		return nil, fmt.Errorf("listing checkpoints for run %s: %w", runID, err)
	}

	d.stepSeq = len(steps)
	d.cpSeq = len(cps)
	return d, nil
}

// RunID returns the run this Documenter records.
func (d *Documenter) RunID() string { return d.runID }

// StepCount returns the number of steps logged so far.
func (d *Documenter) StepCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stepSeq
}

// LogStep appends a ProcessStep with the next sequence number. The payload
// is marshaled to JSON; a marshal or store failure is reported on the
// warning writer and otherwise ignored.
func (d *Documenter) LogStep(ctx context.Context, action string, payload any) {
	d.mu.Lock()
	seq := d.stepSeq
	d.stepSeq++
	id := ulid.MustNew(ulid.Timestamp(time.Now()), d.entropy).String()
	d.mu.Unlock()

	raw, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintf(d.warn, "warning: audit payload for %s not serializable: %v\n", action, err)
		raw = nil
	}

	step := types.ProcessStep{
		ID:        id,
		Seq:       seq,
		RunID:     d.runID,
		Action:    action,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}

	data, err := json.Marshal(step)
	if err != nil {
		fmt.Fprintf(d.warn, "warning: audit step %s not serializable: %v\n", action, err)
		return
	}
	key := fmt.Sprintf("%s%08d", stepPrefix(d.runID), seq)
	if err := d.kv.Put(ctx, key, data); err != nil {
		fmt.Fprintf(d.warn, "warning: audit step %s not written: %v\n", action, err)
	}
}

// WriteCheckpoint persists a Checkpoint for the just-completed stage. On
// store failure it returns a *CheckpointError; the caller must treat that as
// fatal.
func (d *Documenter) WriteCheckpoint(ctx context.Context, stage types.ReviewStage, state any) (types.Checkpoint, error) {
	d.mu.Lock()
	seq := d.cpSeq
	d.cpSeq++
	id := ulid.MustNew(ulid.Timestamp(time.Now()), d.entropy).String()
	d.mu.Unlock()

	raw, err := json.Marshal(state)
	if err != nil {
		return types.Checkpoint{}, &CheckpointError{Stage: stage, Err: fmt.Errorf("serializing state: %w", err)}
	}

	cp := types.Checkpoint{
		ID:        id,
		Seq:       seq,
		RunID:     d.runID,
		Stage:     stage,
		CreatedAt: time.Now().UTC(),
		State:     raw,
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return types.Checkpoint{}, &CheckpointError{Stage: stage, Err: fmt.Errorf("serializing checkpoint: %w", err)}
	}
	key := fmt.Sprintf("%s%08d", checkpointPrefix(d.runID), seq)
	if err := d.kv.Put(ctx, key, data); err != nil {
		return types.Checkpoint{}, &CheckpointError{Stage: stage, Err: err}
	}
	return cp, nil
}

// Steps returns all logged steps for the run in sequence order.
func (d *Documenter) Steps(ctx context.Context) ([]types.ProcessStep, error) {
	return ReadSteps(ctx, d.kv, d.runID)
}

// ReadSteps returns all logged steps for runID in sequence order.
func ReadSteps(ctx context.Context, kv store.KV, runID string) ([]types.ProcessStep, error) {
	keys, err := kv.List(ctx, stepPrefix(runID))
	if err != nil {
		return nil, fmt.Errorf("listing steps for run %s: %w", runID, err)
	}

	steps := make([]types.ProcessStep, 0, len(keys))
	for _, key := range keys {
		data, ok, err := kv.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("reading step %s: %w", key, err)
		}
		if !ok {
			continue
		}
		var step types.ProcessStep
		if err := json.Unmarshal(data, &step); err != nil {
			return nil, fmt.Errorf("parsing step %s: %w", key, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// LatestCheckpoint returns the most recent checkpoint for runID. The second
// return reports whether any checkpoint exists.
func LatestCheckpoint(ctx context.Context, kv store.KV, runID string) (types.Checkpoint, bool, error) {
	keys, err := kv.List(ctx, checkpointPrefix(runID))
	if err != nil {
		return types.Checkpoint{}, false, fmt.Errorf("listing checkpoints for run %s: %w", runID, err)
	}
	if len(keys) == 0 {
		return types.Checkpoint{}, false, nil
	}

	data, ok, err := kv.Get(ctx, keys[len(keys)-1])
	if err != nil {
		return types.Checkpoint{}, false, fmt.Errorf("reading checkpoint %s: %w", keys[len(keys)-1], err)
	}
	if !ok {
		return types.Checkpoint{}, false, fmt.Errorf("checkpoint %s listed but missing", keys[len(keys)-1])
	}

	var cp types.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return types.Checkpoint{}, false, fmt.Errorf("parsing checkpoint %s: %w", keys[len(keys)-1], err)
	}
	return cp, true, nil
}

func stepPrefix(runID string) string       { return "audit/" + runID + "/step/" }
func checkpointPrefix(runID string) string { return "audit/" + runID + "/checkpoint/" }
