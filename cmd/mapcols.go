package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leadscope/prospect-cli/internal/ingest"
	"github.com/leadscope/prospect-cli/internal/mapping"
)

var mapColsCmd = &cobra.Command{
	Use:   "map <file>",
	Short: "Show how spreadsheet columns map to system fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		maxBytes := int64(cfg.Ingest.MaxFileMB) << 20
		ds, err := ingest.ReadFile(args[0], maxBytes)
		if err != nil {
			return err
		}

		mappings := mapping.MapColumns(ds.Headers)
		for _, m := range mappings {
			switch m.Status {
			case mapping.StatusMapped:
				fmt.Printf("  %-30s -> %-25s (%d%%)\n", m.CSVColumn, mapping.FieldLabel(m.SystemField), m.Confidence)
			case mapping.StatusReview:
				fmt.Printf("? %-30s -> %-25s (%d%%, needs review)\n", m.CSVColumn, mapping.FieldLabel(m.SystemField), m.Confidence)
				for _, alt := range m.Alternatives {
					fmt.Printf("      alternative: %s (%d%%)\n", mapping.FieldLabel(alt.Field), alt.Confidence)
				}
			default:
				if m.Skipped() {
					fmt.Printf("- %-30s    skipped\n", m.CSVColumn)
				} else {
					fmt.Printf("! %-30s    unmapped\n", m.CSVColumn)
				}
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mapColsCmd)
}
