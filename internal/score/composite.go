// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package score

import (
	"sort"

	"github.com/pdiddy/review-engine/pkg/types"
)

// Scale declares a dimension's native bounds. Values are normalized to
// [0,1] as (v - Min) / (Max - Min) before weighting. Fixed-bounds scaling
// keeps a paper's composite score independent of the rest of the batch, so
// re-runs and resumed runs rank identically.
type Scale struct {
	Min float64
	Max float64
}

// Unit is the scale for dimensions already expressed in [0,1].
var Unit = Scale{Min: 0, Max: 1}

// Dimensions maps a paper ID to its raw per-dimension values.
type Dimensions map[string]map[string]float64

// Combine normalizes each dimension to [0,1], computes the weighted sum per
// paper, and ranks descending by composite score. Ties break by ascending
// ingestion sequence, keeping the ranking deterministic across runs. Papers
// below the gate threshold stay in the result set marked PassedGate=false.
//
// A paper missing a dimension contributes that dimension's minimum; absent
// evidence never boosts a score.
func Combine(papers []types.PaperData, dims Dimensions, scales map[string]Scale, weights types.ScoringWeights, gateThreshold float64) []types.AssessedPaper {
	assessed := make([]types.AssessedPaper, 0, len(papers))

	// Sum in sorted dimension order. Float addition is not associative, so
	// map iteration order would let identical inputs produce composites
	// differing in the last ulp.
	names := make([]string, 0, len(weights))
	for dim := range weights {
		names = append(names, dim)
	}
	sort.Strings(names)

	for _, p := range papers {
		raw := dims[p.ID]
		normalized := make(map[string]float64, len(weights))
		composite := 0.0

		for _, dim := range names {
			v := normalize(raw[dim], scales[dim])
			normalized[dim] = v
			composite += weights[dim] * v
		}

		assessed = append(assessed, types.AssessedPaper{
			Paper:      p,
			Dimensions: normalized,
			Composite:  composite,
			PassedGate: composite >= gateThreshold,
		})
	}

	sort.SliceStable(assessed, func(i, j int) bool {
		if assessed[i].Composite != assessed[j].Composite {
			return assessed[i].Composite > assessed[j].Composite
		}
		return assessed[i].Paper.Seq < assessed[j].Paper.Seq
	})

	for i := range assessed {
		assessed[i].Rank = i + 1
	}

	return assessed
}

func normalize(v float64, s Scale) float64 {
	if s.Max <= s.Min {
		s = Unit
	}
	n := (v - s.Min) / (s.Max - s.Min)
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}
