package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leadscope/prospect-cli/internal/model"
	"github.com/leadscope/prospect-cli/internal/store"
)

var (
	resultsStatus      string
	resultsTemperature string
	resultsMinScore    int
	resultsLimit       int
	resultsSearch      string
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "List analyzed prospects from the quarantine store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		records, err := st.ListProspects(ctx, store.ProspectFilter{
			Status:      model.RecordStatus(resultsStatus),
			Temperature: model.Temperature(resultsTemperature),
			MinScore:    resultsMinScore,
			Limit:       resultsLimit,
		})
		if err != nil {
			return err
		}
		if resultsSearch != "" {
			q := strings.ToLower(resultsSearch)
			filtered := records[:0]
			for _, rec := range records {
				if strings.Contains(strings.ToLower(rec.LegalName), q) || strings.Contains(rec.TaxID, q) {
					filtered = append(filtered, rec)
				}
			}
			records = filtered
		}
		if len(records) == 0 {
			fmt.Println("no prospects found")
			return nil
		}

		for _, rec := range records {
			line := fmt.Sprintf("%s  %-40s score %3d  %-4s  %s",
				rec.TaxID, rec.LegalName, rec.ICPScore, rec.Temperature, rec.Status)
			if rec.RejectReason != "" {
				line += "  (" + rec.RejectReason + ")"
			}
			fmt.Println(line)
		}
		fmt.Printf("\n%d prospects\n", len(records))
		return nil
	},
}

func init() {
	resultsCmd.Flags().StringVar(&resultsStatus, "status", "", "filter by status (pendente, descartado, erro)")
	resultsCmd.Flags().StringVar(&resultsTemperature, "temperature", "", "filter by temperature (hot, warm, cold)")
	resultsCmd.Flags().IntVar(&resultsMinScore, "min-score", 0, "minimum ICP score")
	resultsCmd.Flags().IntVar(&resultsLimit, "limit", 100, "max rows to show")
	resultsCmd.Flags().StringVar(&resultsSearch, "search", "", "match legal name or tax id")
	rootCmd.AddCommand(resultsCmd)
}
