// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/review-engine/internal/llm"
	"github.com/pdiddy/review-engine/internal/review"
	"github.com/pdiddy/review-engine/internal/search"
	"github.com/pdiddy/review-engine/internal/store"
	"github.com/pdiddy/review-engine/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a systematic review from a research question",
	Long: `Run executes the full review pipeline: query planning, search, initial
filtering, inclusion evaluation, relevance scoring, composite ranking, and
report generation. Progress is checkpointed after every stage; in
checkpointed mode the run stops at the first checkpoint and waits for an
explicit resume.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		criteria, err := criteriaFromFlags(cmd)
		if err != nil {
			return err
		}
		weights, err := parseWeights(mustString(cmd, "weights"))
		if err != nil {
			return err
		}
		mode := types.ReviewMode(mustString(cmd, "mode"))
		if mode != types.ModeAuto && mode != types.ModeCheckpointed {
			return fmt.Errorf("unknown mode %q (want auto or checkpointed)", mode)
		}

		cfg, err := pipelineConfig(cmd)
		if err != nil {
			return err
		}

		kv, err := store.OpenSQLite(cfg.Review.DataDir)
		if err != nil {
			return err
		}
		defer kv.Close()

		agent := newAgent(cfg, kv)
		asJSON := mustBool(cmd, "json")
		if !asJSON {
			agent.Observer = review.WriterObserver{W: os.Stderr}
		}

		result, err := agent.Run(cmd.Context(), criteria, weights, mode)
		if err != nil {
			fmt.Fprintf(os.Stderr, "run %s failed at %s: %v\n", result.RunID, result.State, err)
			return err
		}

		if asJSON {
			return review.Export(os.Stdout, result, review.FormatJSON)
		}
		printSummary(result)
		return nil
	},
}

func init() {
	runCmd.Flags().String("criteria-file", "", "YAML file with the search criteria (flags override its fields)")
	runCmd.Flags().String("question", "", "research question driving the review")
	runCmd.Flags().String("purpose", "", "context on why the review is being run")
	runCmd.Flags().StringSlice("include", nil, "inclusion criteria (repeatable)")
	runCmd.Flags().StringSlice("exclude", nil, "exclusion criteria (repeatable)")
	runCmd.Flags().String("from", "", "publication date range start (YYYY-MM-DD)")
	runCmd.Flags().String("to", "", "publication date range end (YYYY-MM-DD)")
	runCmd.Flags().StringSlice("study-type", nil, "accepted study designs (repeatable)")
	runCmd.Flags().String("weights", "relevance=0.6,quality=0.4", "scoring dimension weights, summing to 1.0")
	runCmd.Flags().String("mode", string(types.ModeAuto), "execution mode: auto or checkpointed")
	runCmd.Flags().Bool("json", false, "output the full result as JSON")
	runCmd.Flags().Bool("force-recompute", false, "bypass cached stage results")
	runCmd.Flags().Int("max-workers", 0, "concurrent per-paper workers (default from config)")
	runCmd.Flags().Float64("gate-threshold", -1, "minimum composite score to pass the quality gate")

	rootCmd.AddCommand(runCmd)
}

// criteriaFromFlags builds the validated search criteria from the optional
// criteria file plus run flags. Flags override file fields.
func criteriaFromFlags(cmd *cobra.Command) (types.SearchCriteria, error) {
	var criteria types.SearchCriteria
	if path := mustString(cmd, "criteria-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return criteria, fmt.Errorf("reading criteria file: %w", err)
		}
		if err := yaml.Unmarshal(data, &criteria); err != nil {
			return criteria, fmt.Errorf("parsing criteria file %s: %w", path, err)
		}
	}

	if v := mustString(cmd, "question"); v != "" {
		criteria.Question = v
	}
	if v := mustString(cmd, "purpose"); v != "" {
		criteria.Purpose = v
	}
	if v, _ := cmd.Flags().GetStringSlice("include"); len(v) > 0 {
		criteria.Include = v
	}
	if v, _ := cmd.Flags().GetStringSlice("exclude"); len(v) > 0 {
		criteria.Exclude = v
	}
	if v, _ := cmd.Flags().GetStringSlice("study-type"); len(v) > 0 {
		criteria.StudyTypes = v
	}

	if v := mustString(cmd, "from"); v != "" {
		d, err := parseDate(v)
		if err != nil {
			return criteria, fmt.Errorf("parsing --from: %w", err)
		}
		criteria.DateFrom = d
	}
	if v := mustString(cmd, "to"); v != "" {
		d, err := parseDate(v)
		if err != nil {
			return criteria, fmt.Errorf("parsing --to: %w", err)
		}
		criteria.DateTo = d
	}
	return criteria, criteria.Validate()
}

// parseWeights parses "dim=weight,dim=weight" into scoring weights.
func parseWeights(s string) (types.ScoringWeights, error) {
	weights := types.ScoringWeights{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		dim, value, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("weight %q is not dim=value", pair)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("weight %q: %w", pair, err)
		}
		weights[strings.TrimSpace(dim)] = w
	}
	return weights, weights.Validate()
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

// pipelineConfig assembles the pipeline configuration from the config file,
// environment, flags, and loaded secrets, in increasing precedence.
func pipelineConfig(cmd *cobra.Command) (types.PipelineConfig, error) {
	var cfg types.PipelineConfig
	cfg.Defaults()
	cfg.Cache.Enabled = true

	if v := viper.GetString("retrieval.base_url"); v != "" {
		cfg.Retrieval.BaseURL = v
	}
	if v := viper.GetInt("retrieval.max_results"); v > 0 {
		cfg.Retrieval.MaxResults = v
	}
	if v := viper.GetString("inference.model"); v != "" {
		cfg.Inference.Model = v
	}
	if v := viper.GetInt("review.max_workers"); v > 0 {
		cfg.Review.MaxWorkers = v
	}
	if v := viper.GetFloat64("review.gate_threshold"); v > 0 {
		cfg.Review.GateThreshold = v
	}
	if viper.IsSet("cache.enabled") {
		cfg.Cache.Enabled = viper.GetBool("cache.enabled")
	}

	cfg.Inference.APIKey = secretDefault("anthropic-api-key", viper.GetString("inference.api_key"))
	cfg.Retrieval.APIKey = secretDefault("retrieval-api-key", viper.GetString("retrieval.api_key"))

	if v, _ := rootCmd.PersistentFlags().GetString("data-dir"); v != "" {
		cfg.Review.DataDir = v
	}
	if cmd.Flags().Changed("force-recompute") {
		cfg.Cache.ForceRecompute = mustBool(cmd, "force-recompute")
	}
	if cmd.Flags().Changed("max-workers") {
		if v, _ := cmd.Flags().GetInt("max-workers"); v > 0 {
			cfg.Review.MaxWorkers = v
		}
	}
	if cmd.Flags().Changed("gate-threshold") {
		if v, _ := cmd.Flags().GetFloat64("gate-threshold"); v >= 0 {
			cfg.Review.GateThreshold = v
		}
	}

	if cfg.Retrieval.BaseURL == "" {
		return cfg, fmt.Errorf("retrieval.base_url is not configured")
	}
	if cfg.Inference.APIKey == "" {
		return cfg, fmt.Errorf("no inference API key: add anthropic-api-key to .secrets/ or set inference.api_key")
	}
	return cfg, nil
}

// newAgent wires the production collaborators: the Claude inference client
// and the HTTP retrieval searcher.
func newAgent(cfg types.PipelineConfig, kv store.KV) *review.Agent {
	client := &llm.Claude{
		Config: cfg.Inference,
		HTTP:   &http.Client{Timeout: cfg.Retrieval.Timeout},
	}
	searcher := &search.HTTPSearcher{
		Config: cfg.Retrieval,
		Client: &http.Client{Timeout: cfg.Retrieval.Timeout},
	}
	return review.New(cfg, kv, client, searcher, os.Stderr)
}

func printSummary(result types.SystematicReviewResult) {
	stats := result.Statistics
	fmt.Printf("Run %s finished in state %s\n", result.RunID, result.State)
	fmt.Printf("  candidates: %d, filtered: %d, included: %d, excluded: %d, uncertain: %d\n",
		stats.Candidates, stats.Filtered, stats.Included, stats.Excluded, stats.Uncertain)
	fmt.Printf("  ranked: %d, passed gate: %d\n", stats.Ranked, stats.GatePassed)
	for _, ap := range result.Papers {
		gate := ""
		if !ap.PassedGate {
			gate = " (below gate)"
		}
		fmt.Printf("  %2d. %.3f  %s%s\n", ap.Rank, ap.Composite, ap.Paper.Title, gate)
	}
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func mustBool(cmd *cobra.Command, name string) bool {
	v, _ := cmd.Flags().GetBool(name)
	return v
}
