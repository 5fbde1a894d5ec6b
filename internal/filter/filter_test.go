// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package filter

import (
	"testing"
	"time"

	"github.com/pdiddy/review-engine/pkg/types"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("bad date %q: %v", s, err)
	}
	return d
}

func TestApplyReasonCodes(t *testing.T) {
	criteria := types.SearchCriteria{
		Question:   "q",
		Exclude:    []string{"animal model"},
		DateFrom:   time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC),
		DateTo:     time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		StudyTypes: []string{"rct"},
	}
	opts := Options{MinAbstractChars: 20}

	longAbstract := "A sufficiently long abstract describing the trial in detail."

	tests := []struct {
		name        string
		paper       types.PaperData
		wantPass    bool
		wantReasons []types.FilterReason
	}{
		{
			name: "clean pass",
			paper: types.PaperData{
				ID: "a", Title: "Metformin RCT", Abstract: longAbstract,
				Date: date(t, "2020-06-01"), StudyType: "rct",
			},
			wantPass: true,
		},
		{
			name: "date before range",
			paper: types.PaperData{
				ID: "b", Title: "Old trial", Abstract: longAbstract,
				Date: date(t, "2010-01-01"), StudyType: "rct",
			},
			wantReasons: []types.FilterReason{types.ReasonDateOutOfRange},
		},
		{
			name: "undated paper fails bounded range",
			paper: types.PaperData{
				ID: "c", Title: "Undated", Abstract: longAbstract, StudyType: "rct",
			},
			wantReasons: []types.FilterReason{types.ReasonDateOutOfRange},
		},
		{
			name: "exclusion keyword in abstract",
			paper: types.PaperData{
				ID: "d", Title: "Mouse study", Abstract: "Results from an Animal Model of diabetes were analyzed.",
				Date: date(t, "2020-01-01"), StudyType: "rct",
			},
			wantReasons: []types.FilterReason{types.ReasonExclusionKeyword},
		},
		{
			name: "study type mismatch",
			paper: types.PaperData{
				ID: "e", Title: "Cohort", Abstract: longAbstract,
				Date: date(t, "2020-01-01"), StudyType: "cohort",
			},
			wantReasons: []types.FilterReason{types.ReasonStudyTypeMismatch},
		},
		{
			name: "unknown study type passes",
			paper: types.PaperData{
				ID: "f", Title: "No metadata", Abstract: longAbstract,
				Date: date(t, "2020-01-01"),
			},
			wantPass: true,
		},
		{
			name: "abstract too short",
			paper: types.PaperData{
				ID: "g", Title: "Stub", Abstract: "Too short.",
				Date: date(t, "2020-01-01"), StudyType: "rct",
			},
			wantReasons: []types.FilterReason{types.ReasonInsufficientContent},
		},
		{
			name: "multiple reasons all recorded",
			paper: types.PaperData{
				ID: "h", Title: "animal model pilot", Abstract: "short",
				Date: date(t, "2001-01-01"), StudyType: "case report",
			},
			wantReasons: []types.FilterReason{
				types.ReasonDateOutOfRange,
				types.ReasonExclusionKeyword,
				types.ReasonStudyTypeMismatch,
				types.ReasonInsufficientContent,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := Apply([]types.PaperData{tt.paper}, criteria, opts)
			if len(batch.Results) != 1 {
				t.Fatalf("got %d results, want 1", len(batch.Results))
			}
			r := batch.Results[0]
			if r.Pass != tt.wantPass {
				t.Fatalf("Pass = %v, want %v (reasons %v)", r.Pass, tt.wantPass, r.Reasons)
			}
			if len(r.Reasons) != len(tt.wantReasons) {
				t.Fatalf("Reasons = %v, want %v", r.Reasons, tt.wantReasons)
			}
			for i, want := range tt.wantReasons {
				if r.Reasons[i] != want {
					t.Errorf("Reasons[%d] = %s, want %s", i, r.Reasons[i], want)
				}
			}
		})
	}
}

func TestApplyAccountsForEveryPaper(t *testing.T) {
	papers := []types.PaperData{
		{ID: "a", Abstract: "fine", Date: date(t, "2020-01-01")},
		{ID: "b", Abstract: "fine", Date: date(t, "1990-01-01")},
		{ID: "c", Abstract: "fine", Date: date(t, "2021-01-01")},
	}
	criteria := types.SearchCriteria{
		Question: "q",
		DateFrom: date(t, "2015-01-01"),
	}

	batch := Apply(papers, criteria, Options{})

	if len(batch.Results) != len(papers) {
		t.Fatalf("got %d results, want one per paper (%d)", len(batch.Results), len(papers))
	}
	if len(batch.Passed) != 2 || batch.Rejected != 1 {
		t.Fatalf("passed %d rejected %d, want 2/1", len(batch.Passed), batch.Rejected)
	}
	for _, r := range batch.Results {
		if !r.Pass && len(r.Reasons) == 0 {
			t.Errorf("rejected paper %s has no reason codes", r.PaperID)
		}
	}
}

func TestNoDateRangeAcceptsUndated(t *testing.T) {
	batch := Apply(
		[]types.PaperData{{ID: "a", Abstract: "fine"}},
		types.SearchCriteria{Question: "q"},
		Options{},
	)
	if !batch.Results[0].Pass {
		t.Fatalf("undated paper rejected with no date range requested: %v", batch.Results[0].Reasons)
	}
}
