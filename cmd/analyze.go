package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leadscope/prospect-cli/internal/assess"
	"github.com/leadscope/prospect-cli/internal/engine"
	"github.com/leadscope/prospect-cli/internal/ingest"
	"github.com/leadscope/prospect-cli/internal/model"
	"github.com/leadscope/prospect-cli/internal/report"
)

var (
	analyzeTemplate string
	analyzeOutput   string
	analyzeYes      bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a prospect spreadsheet end to end",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		criteria, err := loadCriteria()
		if err != nil {
			return err
		}

		path := args[0]
		ds, mappings, err := loadAndMap(ctx, st, path, analyzeTemplate)
		if err != nil {
			return err
		}

		taxCol := ingest.TaxIDColumn(ds.Headers, mappings)
		rows, duplicates := ingest.Deduplicate(ds.Rows, taxCol)

		rep := assess.Evaluate(rows, mappings, duplicates, cfg.Batch.Concurrency)
		printAssessment(rep)

		norm := ingest.Normalize(rows, mappings)
		zap.L().Info("rows admitted",
			zap.Int("admitted", len(norm.Admitted)),
			zap.Int("dropped", norm.Dropped),
			zap.Int("duplicates", duplicates),
		)
		if len(norm.Admitted) == 0 {
			return eris.New("no rows admitted for analysis")
		}

		policy := assess.Policy{
			Recommended: cfg.Batch.RecommendedSize,
			MaxStable:   cfg.Batch.MaxStableSize,
			AbsoluteMax: cfg.Batch.AbsoluteMax,
		}
		verdict, msg := policy.Evaluate(len(norm.Admitted))
		switch verdict {
		case assess.Reject:
			return eris.New(msg)
		case assess.Confirm:
			if !analyzeYes {
				return eris.Errorf("%s; re-run with --yes to proceed", msg)
			}
			zap.L().Warn(msg)
		default:
			if msg != "" {
				zap.L().Info(msg)
			}
		}

		eng := buildEngine(st, criteria, filepath.Base(path))
		run := eng.Start(ctx, norm.Admitted, progressLogger())

		// First interrupt cancels gracefully, letting in-flight items finish.
		go func() {
			<-ctx.Done()
			run.Cancel()
		}()

		results := run.Wait()

		summary := report.Summarize(results)
		printSummary(summary)

		if analyzeOutput != "" {
			if err := writeExport(analyzeOutput, results); err != nil {
				return err
			}
			fmt.Printf("results written to %s\n", analyzeOutput)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeTemplate, "template", "", "mapping template name to apply")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "write results CSV to this path")
	analyzeCmd.Flags().BoolVarP(&analyzeYes, "yes", "y", false, "proceed past batch size warnings")
	rootCmd.AddCommand(analyzeCmd)
}

func progressLogger() engine.Listener {
	return func(ev engine.Event) {
		switch ev.Kind {
		case engine.EventItemCompleted:
			zap.L().Info("item completed",
				zap.Int("row", ev.RowIndex+1),
				zap.String("company", ev.Company),
				zap.String("outcome", ev.Detail),
			)
		case engine.EventDegraded:
			zap.L().Warn("batch degraded", zap.String("detail", ev.Detail))
		case engine.EventCancelled:
			zap.L().Warn("batch cancelled, finishing in-flight items")
		}
	}
}

func printAssessment(rep assess.Report) {
	fmt.Printf("rows: %d  valid ids: %d  invalid ids: %d  duplicates removed: %d\n",
		rep.Total, rep.ValidIDs, rep.InvalidIDs, rep.Duplicates)
	fmt.Printf("quality: %d (%s)  estimated: %s  expected success: %d%%\n",
		rep.QualityScore, rep.Band(), rep.Estimated, rep.SuccessRate)
}

func printSummary(s report.Summary) {
	fmt.Printf("\ntotal: %d  approved: %d  rejected: %d  errors: %d\n",
		s.Total, s.Approved, s.Rejected, s.Errored)
	fmt.Printf("hot: %d  warm: %d  cold: %d  avg score: %d\n", s.Hot, s.Warm, s.Cold, s.AverageScore)
	if s.ExistingCustomers > 0 {
		fmt.Printf("existing customers discarded: %d\n", s.ExistingCustomers)
	}
	if s.Degraded > 0 {
		fmt.Printf("items with basic analysis only: %d\n", s.Degraded)
	}
}

func writeExport(path string, results []model.AnalysisResult) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	defer f.Close()
	return report.WriteCSV(f, results)
}
