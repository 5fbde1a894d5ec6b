// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache memoizes the output of expensive, versioned pipeline stages.
// Entries are addressed by (stage, version, fingerprint): the fingerprint is
// derived from the stage's semantically relevant inputs, and bumping a
// stage's registered version orphans everything cached under the old one.
//
// A cache outage never fails a pipeline run. Store read and write failures
// are logged and the manager falls back to direct computation.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/review-engine/internal/store"
)

// ComputeFunc produces a stage output when no cached entry is usable.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// Stats holds cache counters for observability.
type Stats struct {
	Hits        int64
	Misses      int64
	StoreErrors int64
}

// HitRate returns hits / (hits + misses), or 0 when nothing was requested.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Manager is the results cache. Concurrent requests for the same
// (stage, version, fingerprint) are collapsed into a single computation;
// later requesters wait for and share the in-flight result.
type Manager struct {
	kv   store.KV
	warn io.Writer

	mu       sync.RWMutex
	versions map[string]string

	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
	errs   atomic.Int64
}

// NewManager returns a Manager backed by kv. Store failures are reported on
// warn and recovered by direct computation.
func NewManager(kv store.KV, warn io.Writer) *Manager {
	if warn == nil {
		warn = io.Discard
	}
	return &Manager{
		kv:       kv,
		warn:     warn,
		versions: make(map[string]string),
	}
}

// RegisterVersion declares the current computation semantics for a stage.
// Changing the version invalidates previously cached entries for that stage:
// old entries remain in the store but are never addressed again.
func (m *Manager) RegisterVersion(stage, version string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[stage] = version
}

// Version returns the registered version for stage, or "v0" if none was set.
func (m *Manager) Version(stage string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.versions[stage]; ok {
		return v
	}
	return "v0"
}

// GetOrCompute returns the cached payload for (stage, current version,
// fingerprint) if one exists and force is false. Otherwise it invokes
// compute, stores the result, and returns it. At most one computation runs
// per key at a time.
func (m *Manager) GetOrCompute(ctx context.Context, stage, fingerprint string, force bool, compute ComputeFunc) ([]byte, error) {
	key := m.entryKey(stage, fingerprint)

	v, err, _ := m.group.Do(key, func() (any, error) {
		if !force {
			payload, ok, err := m.kv.Get(ctx, key)
			if err != nil {
				m.errs.Add(1)
				fmt.Fprintf(m.warn, "warning: cache read failed for %s, recomputing: %v\n", stage, err)
			} else if ok {
				m.hits.Add(1)
				return payload, nil
			}
		}

		m.misses.Add(1)
		payload, err := compute(ctx)
		if err != nil {
			return nil, err
		}

		if err := m.kv.Put(ctx, key, payload); err != nil {
			m.errs.Add(1)
			fmt.Fprintf(m.warn, "warning: cache write failed for %s: %v\n", stage, err)
		}
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Stats returns the hit/miss/error counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Hits:        m.hits.Load(),
		Misses:      m.misses.Load(),
		StoreErrors: m.errs.Load(),
	}
}

func (m *Manager) entryKey(stage, fingerprint string) string {
	return fmt.Sprintf("cache/%s/%s/%s", stage, m.Version(stage), fingerprint)
}

// Fingerprint derives a stable cache key from the given input parts. Parts
// must cover the stage's semantically relevant inputs (paper ID, criteria,
// model identifier) and nothing incidental: no timestamps, no addresses.
// The key is the first 16 hex characters of SHA-256 over the length-framed
// parts, so ("ab","c") and ("a","bc") fingerprint differently.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:", len(p))
		h.Write([]byte(p))
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}
