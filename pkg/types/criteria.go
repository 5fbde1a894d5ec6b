// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// WeightEpsilon is the tolerance when checking that scoring weights sum to 1.
const WeightEpsilon = 1e-6

// SearchCriteria defines what the review is looking for and the explicit
// inclusion and exclusion rules candidates are judged against.
type SearchCriteria struct {
	// Question is the research question driving the review.
	Question string `json:"question" yaml:"question"`
	// Purpose gives optional context on why the review is being run.
	Purpose string `json:"purpose,omitempty" yaml:"purpose,omitempty"`
	// Include lists criteria a paper must meet to be included.
	Include []string `json:"include,omitempty" yaml:"include,omitempty"`
	// Exclude lists criteria that disqualify a paper.
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	// DateFrom bounds publication dates from below. Zero means unbounded.
	DateFrom time.Time `json:"date_from,omitempty" yaml:"date_from,omitempty"`
	// DateTo bounds publication dates from above. Zero means unbounded.
	DateTo time.Time `json:"date_to,omitempty" yaml:"date_to,omitempty"`
	// StudyTypes restricts candidates to the named study designs.
	// Empty accepts all designs.
	StudyTypes []string `json:"study_types,omitempty" yaml:"study_types,omitempty"`
}

// Validate checks the criteria for internal consistency: a non-empty
// question, disjoint include and exclude lists, and an ordered date range.
func (c SearchCriteria) Validate() error {
	if strings.TrimSpace(c.Question) == "" {
		return errors.New("criteria: question must not be empty")
	}

	excluded := make(map[string]bool, len(c.Exclude))
	for _, e := range c.Exclude {
		excluded[strings.ToLower(strings.TrimSpace(e))] = true
	}
	for _, inc := range c.Include {
		if excluded[strings.ToLower(strings.TrimSpace(inc))] {
			return fmt.Errorf("criteria: %q appears in both include and exclude", inc)
		}
	}

	if !c.DateFrom.IsZero() && !c.DateTo.IsZero() && c.DateTo.Before(c.DateFrom) {
		return fmt.Errorf("criteria: date_to %s precedes date_from %s",
			c.DateTo.Format("2006-01-02"), c.DateFrom.Format("2006-01-02"))
	}
	return nil
}

// ScoringWeights maps a scoring dimension name to its weight in the
// composite score.
type ScoringWeights map[string]float64

// Validate checks that the weights are usable: at least one dimension,
// no negative weights, and a total of 1.0 within WeightEpsilon.
func (w ScoringWeights) Validate() error {
	if len(w) == 0 {
		return errors.New("weights: at least one dimension is required")
	}

	sum := 0.0
	for dim, weight := range w {
		if weight < 0 {
			return fmt.Errorf("weights: %s is negative (%g)", dim, weight)
		}
		sum += weight
	}
	if math.Abs(sum-1.0) > WeightEpsilon {
		return fmt.Errorf("weights: sum is %g, want 1.0", sum)
	}
	return nil
}
