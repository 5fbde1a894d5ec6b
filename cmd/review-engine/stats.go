// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/review-engine/internal/review"
	"github.com/pdiddy/review-engine/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats <run-id>",
	Short: "Show a run's statistics and audit trail",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := rootCmd.PersistentFlags().GetString("data-dir")
		if dataDir == "" {
			dataDir = "review"
		}

		kv, err := store.OpenSQLite(dataDir)
		if err != nil {
			return err
		}
		defer kv.Close()

		runID := args[0]
		result, err := review.LoadResult(cmd.Context(), kv, runID)
		if err == nil {
			stats := result.Statistics
			fmt.Printf("Run %s (%s)\n", result.RunID, result.State)
			fmt.Printf("  question:    %s\n", result.Question)
			fmt.Printf("  candidates:  %d\n", stats.Candidates)
			fmt.Printf("  filtered:    %d\n", stats.Filtered)
			fmt.Printf("  included:    %d\n", stats.Included)
			fmt.Printf("  excluded:    %d\n", stats.Excluded)
			fmt.Printf("  uncertain:   %d\n", stats.Uncertain)
			fmt.Printf("  ranked:      %d (gate: %d)\n", stats.Ranked, stats.GatePassed)
			fmt.Printf("  cache:       %d hits, %d misses (%.0f%%)\n",
				stats.CacheHits, stats.CacheMisses, stats.CacheHitRate*100)
			for _, t := range stats.Timings {
				fmt.Printf("  %-10s %s\n", t.Stage, t.Duration.Round(1e6))
			}
		} else {
			fmt.Printf("Run %s has no stored result (incomplete or failed)\n", runID)
		}

		if !mustBool(cmd, "audit") {
			return nil
		}

		steps, err := review.Steps(cmd.Context(), kv, runID)
		if err != nil {
			return err
		}
		fmt.Printf("\nAudit trail (%d steps):\n", len(steps))
		for _, s := range steps {
			payload := ""
			if len(s.Payload) > 0 {
				compact, err := json.Marshal(json.RawMessage(s.Payload))
				if err == nil && len(compact) <= 120 {
					payload = " " + string(compact)
				}
			}
			fmt.Printf("  %4d %s %s%s\n", s.Seq, s.Timestamp.Format("15:04:05"), s.Action, payload)
		}
		return nil
	},
	Args: cobra.ExactArgs(1),
}

func init() {
	statsCmd.Flags().Bool("audit", false, "print the full audit trail")

	rootCmd.AddCommand(statsCmd)
}
