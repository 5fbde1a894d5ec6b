// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package review orchestrates the systematic-review pipeline: planning,
// search, filtering, evaluation, scoring, ranking, and reporting, as a
// linear state machine with a checkpoint at every stage boundary.
//
// Stage transitions are cache-checked and logged before execution. In auto
// mode transitions fire automatically; in checkpointed mode the machine
// pauses at each checkpoint until a resume signal arrives through the Gate.
package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/review-engine/internal/audit"
	"github.com/pdiddy/review-engine/internal/cache"
	"github.com/pdiddy/review-engine/internal/evaluate"
	"github.com/pdiddy/review-engine/internal/filter"
	"github.com/pdiddy/review-engine/internal/llm"
	"github.com/pdiddy/review-engine/internal/plan"
	"github.com/pdiddy/review-engine/internal/score"
	"github.com/pdiddy/review-engine/internal/search"
	"github.com/pdiddy/review-engine/internal/store"
	"github.com/pdiddy/review-engine/pkg/types"
)

// filterStage is recorded on decisions for papers the initial filter removed.
const filterStage = "initial-filter"

// Stage computation versions. Bumping one invalidates the cache entries for
// that stage only.
const (
	planVersion      = "v1"
	filterVersion    = "v1"
	evaluateVersion  = "v1"
	relevanceVersion = "v1"
	compositeVersion = "v1"
)

// Gate blocks a checkpointed-mode run until an external resume signal
// arrives. Returning an error aborts the run at the checkpoint boundary.
type Gate interface {
	Wait(ctx context.Context, cp types.Checkpoint) error
}

// Agent owns the run-scoped lifecycle of a systematic review.
type Agent struct {
	Config    types.PipelineConfig
	Planner   *plan.Planner
	Searcher  search.Searcher
	Evaluator *evaluate.Evaluator
	Relevance score.RelevanceSource
	Cache     *cache.Manager
	KV        store.KV
	Observer  Observer
	Gate      Gate
	Log       io.Writer
}

// New wires an Agent from the pipeline config and the three collaborators:
// the persistence store, the inference client, and the retrieval searcher.
func New(cfg types.PipelineConfig, kv store.KV, client llm.Client, searcher search.Searcher, logW io.Writer) *Agent {
	cfg.Defaults()

	m := cache.NewManager(kv, logW)
	m.RegisterVersion("plan", planVersion)
	m.RegisterVersion("filter", filterVersion)
	m.RegisterVersion("evaluate", evaluateVersion)
	m.RegisterVersion("relevance", relevanceVersion)
	m.RegisterVersion("composite", compositeVersion)

	return &Agent{
		Config:    cfg,
		Planner:   &plan.Planner{LLM: client},
		Searcher:  searcher,
		Evaluator: &evaluate.Evaluator{LLM: client},
		Relevance: &score.LLMRelevance{LLM: client},
		Cache:     m,
		KV:        kv,
		Observer:  NopObserver{},
		Log:       logW,
	}
}

// pipelineState is the serialized partial state carried between stages and
// persisted in every checkpoint.
type pipelineState struct {
	RunID     string                    `json:"run_id"`
	Criteria  types.SearchCriteria      `json:"criteria"`
	Weights   types.ScoringWeights      `json:"weights"`
	Mode      types.ReviewMode          `json:"mode"`
	Stage     types.ReviewStage         `json:"stage"`
	StartedAt time.Time                 `json:"started_at"`
	Timings   []types.StageTiming       `json:"timings,omitempty"`
	Plan      *types.SearchPlan         `json:"plan,omitempty"`
	Searched  *types.AggregatedResults  `json:"searched,omitempty"`
	Filtered  *types.BatchFilterResult  `json:"filtered,omitempty"`
	Decisions []types.InclusionDecision `json:"decisions,omitempty"`
	Scores    *types.BatchScoringResult `json:"scores,omitempty"`
	Assessed  []types.AssessedPaper     `json:"assessed,omitempty"`

	Result *types.SystematicReviewResult `json:"result,omitempty"`
}

// stageOrder is the linear stage sequence. StageFailed is reached only
// through errors.
var stageOrder = []types.ReviewStage{
	types.StageCriteriaValidated,
	types.StagePlanned,
	types.StageSearched,
	types.StageFiltered,
	types.StageEvaluated,
	types.StageScored,
	types.StageRanked,
	types.StageReported,
}

func nextStage(s types.ReviewStage) (types.ReviewStage, bool) {
	for i, stage := range stageOrder {
		if stage == s && i+1 < len(stageOrder) {
			return stageOrder[i+1], true
		}
	}
	return "", false
}

// Run executes a review from validated criteria to the final report. In
// checkpointed mode without a Gate, Run stops after the next checkpoint and
// returns the partial result; Resume continues it.
func (a *Agent) Run(ctx context.Context, criteria types.SearchCriteria, weights types.ScoringWeights, mode types.ReviewMode) (types.SystematicReviewResult, error) {
	if err := criteria.Validate(); err != nil {
		return types.SystematicReviewResult{}, err
	}
	if err := weights.Validate(); err != nil {
		return types.SystematicReviewResult{}, err
	}
	if mode == "" {
		mode = types.ModeAuto
	}

	st := &pipelineState{
		RunID:     uuid.NewString(),
		Criteria:  criteria,
		Weights:   weights,
		Mode:      mode,
		StartedAt: time.Now().UTC(),
	}

	doc := audit.NewDocumenter(a.KV, st.RunID, a.log())
	doc.LogStep(ctx, "criteria.validated", criteria)

	st.Stage = types.StageCriteriaValidated
	cp, err := doc.WriteCheckpoint(ctx, st.Stage, st)
	if err != nil {
		return a.partialResult(st, doc, types.StageFailed), err
	}
	a.observer().OnCheckpoint(cp)

	if paused, res, err := a.gateAfter(ctx, st, doc, cp); paused || err != nil {
		return res, err
	}

	return a.advance(ctx, st, doc)
}

// Resume continues a partially completed run from its latest checkpoint.
// Completed stages are never re-executed.
func (a *Agent) Resume(ctx context.Context, runID string) (types.SystematicReviewResult, error) {
	cp, ok, err := audit.LatestCheckpoint(ctx, a.KV, runID)
	if err != nil {
		return types.SystematicReviewResult{}, err
	}
	if !ok {
		return types.SystematicReviewResult{}, fmt.Errorf("run %s has no checkpoint to resume from", runID)
	}

	var st pipelineState
	if err := json.Unmarshal(cp.State, &st); err != nil {
		return types.SystematicReviewResult{}, fmt.Errorf("parsing checkpoint state for run %s: %w", runID, err)
	}

	doc, err := audit.Open(ctx, a.KV, runID, a.log())
	if err != nil {
		return types.SystematicReviewResult{}, err
	}
	doc.LogStep(ctx, "run.resumed", map[string]string{"stage": string(st.Stage)})

	if st.Stage == types.StageReported && st.Result != nil {
		return *st.Result, nil
	}

	return a.advance(ctx, &st, doc)
}

// advance drives the state machine from the last completed stage to the
// terminal report, sealing each stage with a checkpoint.
func (a *Agent) advance(ctx context.Context, st *pipelineState, doc *audit.Documenter) (types.SystematicReviewResult, error) {
	for st.Stage != types.StageReported {
		stage, ok := nextStage(st.Stage)
		if !ok {
			return a.partialResult(st, doc, types.StageFailed), fmt.Errorf("no stage after %s", st.Stage)
		}

		a.observer().OnStageStart(stage)
		start := time.Now()

		if err := a.execute(ctx, stage, st, doc); err != nil {
			doc.LogStep(ctx, "run.failed", map[string]string{
				"stage": string(stage),
				"error": err.Error(),
			})
			return a.partialResult(st, doc, types.StageFailed), err
		}

		st.Timings = append(st.Timings, types.StageTiming{Stage: stage, Duration: time.Since(start)})
		st.Stage = stage
		doc.LogStep(ctx, "stage.completed", map[string]string{"stage": string(stage)})

		cp, err := doc.WriteCheckpoint(ctx, stage, st)
		if err != nil {
			// Checkpoint failure is fatal: proceeding would leave an
			// unrecorded state transition in the audit trail.
			return a.partialResult(st, doc, types.StageFailed), err
		}
		a.observer().OnCheckpoint(cp)

		if paused, res, err := a.gateAfter(ctx, st, doc, cp); paused || err != nil {
			return res, err
		}
	}

	if st.Result == nil {
		return a.partialResult(st, doc, types.StageFailed), errors.New("report stage produced no result")
	}
	return *st.Result, nil
}

// gateAfter applies the checkpointed-mode pause policy after a checkpoint.
// With no Gate configured the run stops and must be resumed explicitly.
func (a *Agent) gateAfter(ctx context.Context, st *pipelineState, doc *audit.Documenter, cp types.Checkpoint) (bool, types.SystematicReviewResult, error) {
	if st.Mode != types.ModeCheckpointed || st.Stage == types.StageReported {
		return false, types.SystematicReviewResult{}, nil
	}
	if a.Gate == nil {
		doc.LogStep(ctx, "run.paused", map[string]string{"stage": string(st.Stage)})
		return true, a.partialResult(st, doc, st.Stage), nil
	}
	if err := a.Gate.Wait(ctx, cp); err != nil {
		doc.LogStep(ctx, "run.aborted", map[string]string{"stage": string(st.Stage)})
		return false, a.partialResult(st, doc, st.Stage), err
	}
	return false, types.SystematicReviewResult{}, nil
}

// execute runs one stage, populating the corresponding pipelineState field.
func (a *Agent) execute(ctx context.Context, stage types.ReviewStage, st *pipelineState, doc *audit.Documenter) error {
	switch stage {
	case types.StagePlanned:
		return a.executePlan(ctx, st, doc)
	case types.StageSearched:
		return a.executeSearch(ctx, st, doc)
	case types.StageFiltered:
		return a.executeFilter(ctx, st, doc)
	case types.StageEvaluated:
		return a.executeEvaluate(ctx, st, doc)
	case types.StageScored:
		return a.executeScore(ctx, st, doc)
	case types.StageRanked:
		return a.executeRank(ctx, st, doc)
	case types.StageReported:
		return a.executeReport(ctx, st, doc)
	default:
		return fmt.Errorf("unknown stage %s", stage)
	}
}

func (a *Agent) executePlan(ctx context.Context, st *pipelineState, doc *audit.Documenter) error {
	criteriaJSON, _ := json.Marshal(st.Criteria)
	fp := cache.Fingerprint(string(criteriaJSON), a.Config.Inference.Model)

	var p types.SearchPlan
	err := a.throughCache(ctx, "plan", fp, &p, func(ctx context.Context) (any, error) {
		return a.Planner.BuildPlan(ctx, st.Criteria)
	})
	if err != nil {
		return err
	}

	st.Plan = &p
	doc.LogStep(ctx, "plan.built", map[string]any{"queries": len(p.Queries), "pico": p.PICO})
	fmt.Fprintf(a.log(), "plan: %d queries\n", len(p.Queries))
	return nil
}

func (a *Agent) executeSearch(ctx context.Context, st *pipelineState, doc *audit.Documenter) error {
	agg, err := search.Execute(ctx, *st.Plan, a.Searcher, st.Criteria, a.Config.Retrieval, a.log())
	if err != nil {
		return err
	}

	st.Searched = &agg
	doc.LogStep(ctx, "search.executed", map[string]int{
		"candidates":     len(agg.Papers),
		"dups_removed":   agg.DupsRemoved,
		"failed_queries": agg.FailedQueries,
	})
	return nil
}

func (a *Agent) executeFilter(ctx context.Context, st *pipelineState, doc *audit.Documenter) error {
	criteriaJSON, _ := json.Marshal(st.Criteria)
	papersJSON, _ := json.Marshal(st.Searched.Papers)
	fp := cache.Fingerprint(string(criteriaJSON), string(papersJSON),
		fmt.Sprintf("%d", a.Config.Review.MinAbstractChars))

	var batch types.BatchFilterResult
	err := a.throughCache(ctx, "filter", fp, &batch, func(ctx context.Context) (any, error) {
		opts := filter.Options{MinAbstractChars: a.Config.Review.MinAbstractChars}
		return filter.Apply(st.Searched.Papers, st.Criteria, opts), nil
	})
	if err != nil {
		return err
	}

	st.Filtered = &batch

	// Filter rejections become excluded decisions so the report can
	// explain every candidate's disposition.
	st.Decisions = nil
	for _, r := range batch.Results {
		if r.Pass {
			continue
		}
		st.Decisions = append(st.Decisions, types.InclusionDecision{
			PaperID:   r.PaperID,
			Status:    types.StatusExcluded,
			Stage:     filterStage,
			Rationale: reasonText(r.Reasons),
		})
	}

	doc.LogStep(ctx, "filter.applied", map[string]int{
		"passed":   len(batch.Passed),
		"rejected": batch.Rejected,
	})
	fmt.Fprintf(a.log(), "filter: %d passed, %d rejected\n", len(batch.Passed), batch.Rejected)
	return nil
}

func (a *Agent) executeEvaluate(ctx context.Context, st *pipelineState, doc *audit.Documenter) error {
	papers := st.Filtered.Passed
	decisions := make([]types.InclusionDecision, len(papers))
	criteriaJSON, _ := json.Marshal(st.Criteria)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.Config.Review.MaxWorkers)

	for i, p := range papers {
		g.Go(func() error {
			fp := cache.Fingerprint(p.ID, string(criteriaJSON), a.Config.Inference.Model)
			var d types.InclusionDecision
			err := a.throughCache(gctx, "evaluate", fp, &d, func(cctx context.Context) (any, error) {
				pctx, cancel := context.WithTimeout(cctx, a.Config.Review.PaperTimeout)
				defer cancel()
				return a.Evaluator.Evaluate(pctx, p, st.Criteria), nil
			})
			if err != nil {
				return err
			}
			decisions[i] = d
			a.observer().OnPaperProcessed(p.ID, "evaluated")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	st.Decisions = append(st.Decisions, decisions...)

	counts := map[types.InclusionStatus]int{}
	for _, d := range decisions {
		counts[d.Status]++
	}
	doc.LogStep(ctx, "evaluation.completed", counts)
	fmt.Fprintf(a.log(), "evaluate: %d included, %d excluded, %d uncertain\n",
		counts[types.StatusIncluded], counts[types.StatusExcluded], counts[types.StatusUncertain])
	return nil
}

func (a *Agent) executeScore(ctx context.Context, st *pipelineState, doc *audit.Documenter) error {
	papers := a.includedPapers(st)
	results := make([]types.ScoringResult, len(papers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.Config.Review.MaxWorkers)

	for i, p := range papers {
		g.Go(func() error {
			fp := cache.Fingerprint(p.ID, st.Criteria.Question, a.Config.Inference.Model)
			var r types.ScoringResult
			err := a.throughCache(gctx, "relevance", fp, &r, func(cctx context.Context) (any, error) {
				pctx, cancel := context.WithTimeout(cctx, a.Config.Review.PaperTimeout)
				defer cancel()
				return score.ScoreOne(pctx, a.Relevance, p, st.Criteria.Question), nil
			})
			if err != nil {
				return err
			}
			results[i] = r
			a.observer().OnPaperProcessed(p.ID, "scored")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	batch := types.BatchScoringResult{Results: results}
	for _, r := range results {
		if r.Clamped {
			batch.Clamped++
		}
		if r.Failed {
			batch.Failed++
		}
	}
	st.Scores = &batch

	doc.LogStep(ctx, "relevance.scored", map[string]int{
		"scored":  len(results),
		"clamped": batch.Clamped,
		"failed":  batch.Failed,
	})
	return nil
}

func (a *Agent) executeRank(ctx context.Context, st *pipelineState, doc *audit.Documenter) error {
	papers := a.includedPapers(st)

	scoreByID := make(map[string]types.ScoringResult, len(st.Scores.Results))
	for _, r := range st.Scores.Results {
		scoreByID[r.PaperID] = r
	}
	decisionByID := make(map[string]types.InclusionDecision, len(st.Decisions))
	for _, d := range st.Decisions {
		decisionByID[d.PaperID] = d
	}

	dims := score.Dimensions{}
	for _, p := range papers {
		dims[p.ID] = map[string]float64{
			"relevance": scoreByID[p.ID].Score,
			"quality":   decisionByID[p.ID].Quality,
		}
	}
	scales := map[string]score.Scale{
		"relevance": {Min: types.MinRelevanceScore, Max: types.MaxRelevanceScore},
		"quality":   score.Unit,
	}

	weightsJSON, _ := json.Marshal(st.Weights)
	dimsJSON, _ := json.Marshal(dims)
	fp := cache.Fingerprint(string(weightsJSON), string(dimsJSON),
		fmt.Sprintf("%g", a.Config.Review.GateThreshold))

	var assessed []types.AssessedPaper
	err := a.throughCache(ctx, "composite", fp, &assessed, func(ctx context.Context) (any, error) {
		return score.Combine(papers, dims, scales, st.Weights, a.Config.Review.GateThreshold), nil
	})
	if err != nil {
		return err
	}

	st.Assessed = assessed

	gatePassed := 0
	for _, ap := range assessed {
		if ap.PassedGate {
			gatePassed++
		}
	}
	doc.LogStep(ctx, "ranking.completed", map[string]int{
		"ranked":      len(assessed),
		"gate_passed": gatePassed,
	})
	fmt.Fprintf(a.log(), "rank: %d papers, %d passed gate\n", len(assessed), gatePassed)
	return nil
}

func (a *Agent) executeReport(ctx context.Context, st *pipelineState, doc *audit.Documenter) error {
	result := a.buildResult(st, doc, types.StageReported)
	st.Result = &result

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("serializing result: %w", err)
	}
	if err := a.KV.Put(ctx, resultKey(st.RunID), data); err != nil {
		return fmt.Errorf("storing result: %w", err)
	}

	doc.LogStep(ctx, "report.generated", map[string]any{
		"ranked": len(result.Papers),
		"state":  result.State,
	})
	return nil
}

// includedPapers returns the evaluated papers whose decision is included,
// in ingestion order.
func (a *Agent) includedPapers(st *pipelineState) []types.PaperData {
	included := make(map[string]bool)
	for _, d := range st.Decisions {
		if d.Status == types.StatusIncluded {
			included[d.PaperID] = true
		}
	}
	var papers []types.PaperData
	for _, p := range st.Filtered.Passed {
		if included[p.ID] {
			papers = append(papers, p)
		}
	}
	return papers
}

// throughCache memoizes a stage computation as a JSON payload. With caching
// disabled the computation runs directly.
func (a *Agent) throughCache(ctx context.Context, stage, fingerprint string, out any, compute func(ctx context.Context) (any, error)) error {
	marshal := func(cctx context.Context) ([]byte, error) {
		v, err := compute(cctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	}

	var payload []byte
	var err error
	if a.Cache == nil || !a.Config.Cache.Enabled {
		payload, err = marshal(ctx)
	} else {
		payload, err = a.Cache.GetOrCompute(ctx, stage, fingerprint, a.Config.Cache.ForceRecompute, marshal)
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, out)
}

// buildResult assembles the boundary result from the current state.
func (a *Agent) buildResult(st *pipelineState, doc *audit.Documenter, state types.ReviewStage) types.SystematicReviewResult {
	stats := types.ReviewStatistics{
		Timings: st.Timings,
	}
	if st.Searched != nil {
		stats.Candidates = len(st.Searched.Papers)
	}
	if st.Filtered != nil {
		stats.Filtered = st.Filtered.Rejected
	}
	for _, d := range st.Decisions {
		if d.Stage == filterStage {
			continue
		}
		switch d.Status {
		case types.StatusIncluded:
			stats.Included++
		case types.StatusExcluded:
			stats.Excluded++
		case types.StatusUncertain:
			stats.Uncertain++
		}
	}
	if st.Scores != nil {
		stats.ScoresClamped = st.Scores.Clamped
	}
	stats.Ranked = len(st.Assessed)
	for _, ap := range st.Assessed {
		if ap.PassedGate {
			stats.GatePassed++
		}
	}
	if a.Cache != nil {
		cs := a.Cache.Stats()
		stats.CacheHits = int(cs.Hits)
		stats.CacheMisses = int(cs.Misses)
		stats.CacheHitRate = cs.HitRate()
	}

	result := types.SystematicReviewResult{
		RunID:      st.RunID,
		Question:   st.Criteria.Question,
		State:      state,
		Statistics: stats,
		Papers:     st.Assessed,
		Decisions:  st.Decisions,
		Steps:      doc.StepCount(),
		StartedAt:  st.StartedAt,
		FinishedAt: time.Now().UTC(),
	}
	if st.Filtered != nil {
		result.FilterResults = st.Filtered.Results
	}
	return result
}

func (a *Agent) partialResult(st *pipelineState, doc *audit.Documenter, state types.ReviewStage) types.SystematicReviewResult {
	return a.buildResult(st, doc, state)
}

func (a *Agent) log() io.Writer {
	if a.Log == nil {
		return io.Discard
	}
	return a.Log
}

func (a *Agent) observer() Observer {
	if a.Observer == nil {
		return NopObserver{}
	}
	return a.Observer
}

func reasonText(reasons []types.FilterReason) string {
	parts := make([]string, len(reasons))
	for i, r := range reasons {
		parts[i] = string(r)
	}
	return "initial filter: " + strings.Join(parts, ", ")
}

func resultKey(runID string) string { return "result/" + runID }

// LoadResult reads the stored result for a completed run.
func LoadResult(ctx context.Context, kv store.KV, runID string) (types.SystematicReviewResult, error) {
	data, ok, err := kv.Get(ctx, resultKey(runID))
	if err != nil {
		return types.SystematicReviewResult{}, fmt.Errorf("reading result for run %s: %w", runID, err)
	}
	if !ok {
		return types.SystematicReviewResult{}, fmt.Errorf("run %s has no stored result", runID)
	}
	var result types.SystematicReviewResult
	if err := json.Unmarshal(data, &result); err != nil {
		return types.SystematicReviewResult{}, fmt.Errorf("parsing result for run %s: %w", runID, err)
	}
	return result, nil
}

// Steps exposes the audit trail for a run, for the stats command.
func Steps(ctx context.Context, kv store.KV, runID string) ([]types.ProcessStep, error) {
	return audit.ReadSteps(ctx, kv, runID)
}
