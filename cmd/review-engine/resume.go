// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/review-engine/internal/review"
	"github.com/pdiddy/review-engine/internal/store"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Resume a paused run from its latest checkpoint",
	Long: `Resume continues a checkpointed run from the last recorded stage. Stages
completed before the checkpoint are never re-executed; a run paused after
filtering resumes directly at evaluation.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		result, err := agent.Resume(cmd.Context(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "resume %s failed at %s: %v\n", args[0], result.State, err)
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
	resumeCmd.Flags().Bool("json", false, "output the full result as JSON")
	resumeCmd.Flags().Bool("force-recompute", false, "bypass cached stage results")
	resumeCmd.Flags().Int("max-workers", 0, "concurrent per-paper workers (default from config)")
	resumeCmd.Flags().Float64("gate-threshold", -1, "minimum composite score to pass the quality gate")

	rootCmd.AddCommand(resumeCmd)
}
