package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leadscope/prospect-cli/internal/ingest"
	"github.com/leadscope/prospect-cli/internal/mapping"
)

var templateDescription string

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage saved column mapping templates",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		templates, err := st.ListTemplates(ctx)
		if err != nil {
			return err
		}
		if len(templates) == 0 {
			fmt.Println("no templates saved")
			return nil
		}
		for _, tpl := range templates {
			lastUsed := "never"
			if tpl.LastUsedAt != nil {
				lastUsed = tpl.LastUsedAt.Format("2006-01-02")
			}
			fmt.Printf("%-30s %d columns, last used %s\n", tpl.Name, len(tpl.Mappings), lastUsed)
			if tpl.Description != "" {
				fmt.Printf("    %s\n", tpl.Description)
			}
		}
		return nil
	},
}

var templatesSaveCmd = &cobra.Command{
	Use:   "save <name> <file>",
	Short: "Save the automatic mapping of a file as a template",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		maxBytes := int64(cfg.Ingest.MaxFileMB) << 20
		ds, err := ingest.ReadFile(args[1], maxBytes)
		if err != nil {
			return err
		}

		tpl := mapping.Template{
			Name:        args[0],
			Description: templateDescription,
			Mappings:    mapping.MapColumns(ds.Headers),
		}
		id, err := st.SaveTemplate(ctx, tpl)
		if err != nil {
			return err
		}
		fmt.Printf("template %q saved (%s)\n", tpl.Name, id)
		return nil
	},
}

var templatesDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.DeleteTemplate(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("template %q deleted\n", args[0])
		return nil
	},
}

func init() {
	templatesSaveCmd.Flags().StringVar(&templateDescription, "description", "", "template description")
	templatesCmd.AddCommand(templatesListCmd, templatesSaveCmd, templatesDeleteCmd)
	rootCmd.AddCommand(templatesCmd)
}
