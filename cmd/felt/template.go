package main

import (
	"fmt"

	"github.com/cuemby/felt/pkg/table"
	"github.com/spf13/cobra"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Work with table templates",
}

var templateValidateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Check a table template and summarize it",
	Long: `Load a YAML table template, build the table it describes and report
how many items, stacks and zones it contains.

Examples:
  felt template validate decks/poker.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tpl, err := table.LoadTemplate(args[0])
		if err != nil {
			return err
		}
		state, err := tpl.Build()
		if err != nil {
			return err
		}

		name := tpl.Name
		if name == "" {
			name = args[0]
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Template %s is valid\n", name)
		fmt.Fprintf(cmd.OutOrStdout(), "  Items:  %d\n", len(state.Items))
		fmt.Fprintf(cmd.OutOrStdout(), "  Stacks: %d\n", len(state.Stacks))
		fmt.Fprintf(cmd.OutOrStdout(), "  Zones:  %d\n", len(state.Zones))
		return nil
	},
}

func init() {
	templateCmd.AddCommand(templateValidateCmd)
}
