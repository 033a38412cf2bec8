package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/stmtimport/internal/importer"
	"github.com/cleared-dev/stmtimport/internal/mapping"
)

func newSuggestCommand(a *app) *cobra.Command {
	var kindFlag string
	var save string

	cmd := &cobra.Command{
		Use:   "suggest <file>",
		Short: "Detect a statement's columns and suggest target fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := a.kind(kindFlag)
			if err != nil {
				return err
			}

			st, err := importer.DefaultRegistry().AnalyzeFile(args[0], kind)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s file, %d rows, %d columns\n\n", st.Format, st.TotalRows, len(st.Headers))
			if err := printMappings(out, st.SuggestedMappings); err != nil {
				return err
			}

			if save != "" {
				if err := mapping.SaveFile(save, st.SuggestedMappings); err != nil {
					return err
				}
				fmt.Fprintf(out, "\nMapping saved to %s\n", save)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kindFlag, "kind", "", "transaction kind (spending or revenue)")
	cmd.Flags().StringVar(&save, "save", "", "write the suggested mapping to this YAML file")

	return cmd
}
