// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/review-engine/internal/review"
	"github.com/pdiddy/review-engine/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a completed run's report",
	Long: `Export writes the stored result of a completed run to stdout or a file.
Formats: json (full result), markdown (human-readable report), csv (ranked
table).`,
	Args: cobra.ExactArgs(1),
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

		result, err := review.LoadResult(cmd.Context(), kv, args[0])
		if err != nil {
			return err
		}

		out := os.Stdout
		if path := mustString(cmd, "output"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}

		return review.Export(out, result, mustString(cmd, "format"))
	},
}

func init() {
	exportCmd.Flags().String("format", review.FormatMarkdown, "export format: json, markdown, or csv")
	exportCmd.Flags().String("output", "", "write to a file instead of stdout")

	rootCmd.AddCommand(exportCmd)
}
