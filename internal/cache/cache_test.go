// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/review-engine/internal/store"
)

func TestGetOrComputeComputesOnceThenHits(t *testing.T) {
	m := NewManager(store.NewMemory(), nil)
	var computes int32
	compute := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&computes, 1)
		return []byte("payload"), nil
	}

	for range 3 {
		got, err := m.GetOrCompute(context.Background(), "plan", "fp", false, compute)
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), got)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&computes))
	stats := m.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestGetOrComputeForceBypassesCache(t *testing.T) {
	m := NewManager(store.NewMemory(), nil)
	var computes int32
	compute := func(context.Context) ([]byte, error) {
		n := atomic.AddInt32(&computes, 1)
		return []byte{byte(n)}, nil
	}

	_, err := m.GetOrCompute(context.Background(), "plan", "fp", false, compute)
	require.NoError(t, err)

	got, err := m.GetOrCompute(context.Background(), "plan", "fp", true, compute)
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, got, "force must recompute")

	// The forced result replaced the stored entry.
	got, err = m.GetOrCompute(context.Background(), "plan", "fp", false, compute)
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, got)
	assert.Equal(t, int32(2), atomic.LoadInt32(&computes))
}

func TestVersionBumpInvalidatesStage(t *testing.T) {
	m := NewManager(store.NewMemory(), nil)
	m.RegisterVersion("evaluate", "v1")

	var computes int32
	compute := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&computes, 1)
		return []byte("x"), nil
	}

	_, err := m.GetOrCompute(context.Background(), "evaluate", "fp", false, compute)
	require.NoError(t, err)

	m.RegisterVersion("evaluate", "v2")
	_, err = m.GetOrCompute(context.Background(), "evaluate", "fp", false, compute)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&computes), "new version must not see old entries")
}

func TestVersionDefaultsToV0(t *testing.T) {
	m := NewManager(store.NewMemory(), nil)
	assert.Equal(t, "v0", m.Version("unregistered"))
}

func TestReadFailureFallsBackToCompute(t *testing.T) {
	kv := store.NewMemory()
	kv.FailGet = true
	var warn bytes.Buffer
	m := NewManager(kv, &warn)

	got, err := m.GetOrCompute(context.Background(), "plan", "fp", false, func(context.Context) ([]byte, error) {
		return []byte("fresh"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), got)
	assert.Contains(t, warn.String(), "cache read failed")
	assert.Equal(t, int64(1), m.Stats().StoreErrors)
}

func TestWriteFailureIsNotFatal(t *testing.T) {
	kv := store.NewMemory()
	kv.FailPut = true
	var warn bytes.Buffer
	m := NewManager(kv, &warn)

	got, err := m.GetOrCompute(context.Background(), "plan", "fp", false, func(context.Context) ([]byte, error) {
		return []byte("computed"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("computed"), got)
	assert.Contains(t, warn.String(), "cache write failed")
}

func TestComputeErrorPropagates(t *testing.T) {
	m := NewManager(store.NewMemory(), nil)
	wantErr := errors.New("stage blew up")

	_, err := m.GetOrCompute(context.Background(), "plan", "fp", false, func(context.Context) ([]byte, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

func TestConcurrentRequestsShareOneComputation(t *testing.T) {
	m := NewManager(store.NewMemory(), nil)

	var computes int32
	release := make(chan struct{})
	compute := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&computes, 1)
		<-release
		return []byte("shared"), nil
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make([][]byte, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := m.GetOrCompute(context.Background(), "evaluate", "same-fp", false, compute)
			assert.NoError(t, err)
			results[i] = got
		}()
	}

	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&computes), "in-flight computation must be shared")
	for _, r := range results {
		assert.Equal(t, []byte("shared"), r)
	}
}

func TestFingerprintLengthFraming(t *testing.T) {
	assert.NotEqual(t, Fingerprint("ab", "c"), Fingerprint("a", "bc"))
	assert.Equal(t, Fingerprint("a", "b"), Fingerprint("a", "b"))
	assert.Len(t, Fingerprint("anything"), 16)
}

func TestFingerprintSensitiveToEveryPart(t *testing.T) {
	base := Fingerprint("doc1", "criteria", "model-a")
	assert.NotEqual(t, base, Fingerprint("doc2", "criteria", "model-a"))
	assert.NotEqual(t, base, Fingerprint("doc1", "criteria2", "model-a"))
	assert.NotEqual(t, base, Fingerprint("doc1", "criteria", "model-b"))
}
