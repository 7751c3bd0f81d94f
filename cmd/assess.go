package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leadscope/prospect-cli/internal/assess"
	"github.com/leadscope/prospect-cli/internal/ingest"
)

var assessTemplate string

var assessCmd = &cobra.Command{
	Use:   "assess <file>",
	Short: "Assess spreadsheet quality without running the analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		ds, mappings, err := loadAndMap(ctx, st, args[0], assessTemplate)
		if err != nil {
			return err
		}

		taxCol := ingest.TaxIDColumn(ds.Headers, mappings)
		rows, duplicates := ingest.Deduplicate(ds.Rows, taxCol)

		rep := assess.Evaluate(rows, mappings, duplicates, cfg.Batch.Concurrency)
		printAssessment(rep)
		fmt.Printf("valid emails: %d  valid phones: %d  valid websites: %d\n",
			rep.ValidEmails, rep.ValidPhones, rep.ValidWebsites)

		policy := assess.Policy{
			Recommended: cfg.Batch.RecommendedSize,
			MaxStable:   cfg.Batch.MaxStableSize,
			AbsoluteMax: cfg.Batch.AbsoluteMax,
		}
		if verdict, msg := policy.Evaluate(rep.ValidIDs); verdict != assess.Proceed {
			fmt.Println(msg)
		}
		return nil
	},
}

func init() {
	assessCmd.Flags().StringVar(&assessTemplate, "template", "", "mapping template name to apply")
	rootCmd.AddCommand(assessCmd)
}
