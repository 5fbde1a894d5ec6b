// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package filter applies cheap, deterministic heuristics to the candidate
// set before any expensive stage runs. No LLM calls: every rejection is
// explained by a reason code so the audit trail can account for each paper.
package filter

import (
	"strings"
	"time"

	"github.com/pdiddy/review-engine/pkg/types"
)

// Options tunes the heuristic thresholds.
type Options struct {
	// MinAbstractChars is the minimum abstract length accepted. Zero
	// disables the content check.
	MinAbstractChars int
}

// Apply filters the batch against the criteria. Every input paper yields
// exactly one FilterResult; rejected papers carry every reason that applied,
// not just the first.
func Apply(papers []types.PaperData, criteria types.SearchCriteria, opts Options) types.BatchFilterResult {
	out := types.BatchFilterResult{
		Results: make([]types.FilterResult, 0, len(papers)),
	}

	for _, p := range papers {
		reasons := evaluate(p, criteria, opts)
		result := types.FilterResult{
			PaperID: p.ID,
			Pass:    len(reasons) == 0,
			Reasons: reasons,
		}
		out.Results = append(out.Results, result)
		if result.Pass {
			out.Passed = append(out.Passed, p)
		} else {
			out.Rejected++
		}
	}

	return out
}

func evaluate(p types.PaperData, criteria types.SearchCriteria, opts Options) []types.FilterReason {
	var reasons []types.FilterReason

	if !dateInRange(p.Date, criteria.DateFrom, criteria.DateTo) {
		reasons = append(reasons, types.ReasonDateOutOfRange)
	}

	if matchesExclusion(p, criteria.Exclude) {
		reasons = append(reasons, types.ReasonExclusionKeyword)
	}

	if !studyTypeAccepted(p.StudyType, criteria.StudyTypes) {
		reasons = append(reasons, types.ReasonStudyTypeMismatch)
	}

	if opts.MinAbstractChars > 0 && len(strings.TrimSpace(p.Abstract)) < opts.MinAbstractChars {
		reasons = append(reasons, types.ReasonInsufficientContent)
	}

	return reasons
}

// dateInRange accepts papers with unknown dates only when no range was
// requested: once the reviewer bounds the range, an undated paper cannot be
// shown to satisfy it.
func dateInRange(date, from, to time.Time) bool {
	if from.IsZero() && to.IsZero() {
		return true
	}
	if date.IsZero() {
		return false
	}
	if !from.IsZero() && date.Before(from) {
		return false
	}
	if !to.IsZero() && date.After(to) {
		return false
	}
	return true
}

// matchesExclusion reports whether the title or abstract contains any
// exclusion keyword, case-insensitively.
func matchesExclusion(p types.PaperData, exclude []string) bool {
	if len(exclude) == 0 {
		return false
	}
	text := strings.ToLower(p.Title + " " + p.Abstract)
	for _, kw := range exclude {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// studyTypeAccepted reports whether the paper's study design matches the
// requested filter. Papers with an unknown study type pass: the evaluator
// judges them later rather than dropping them on missing metadata.
func studyTypeAccepted(studyType string, wanted []string) bool {
	if len(wanted) == 0 || studyType == "" {
		return true
	}
	st := strings.ToLower(strings.TrimSpace(studyType))
	for _, w := range wanted {
		if st == strings.ToLower(strings.TrimSpace(w)) {
			return true
		}
	}
	return false
}
