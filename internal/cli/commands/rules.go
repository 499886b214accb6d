package commands

import (
	"strings"

	"github.com/leapstack-labs/leapmigrate/internal/migration"
	"github.com/spf13/cobra"
)

// NewRulesCommand creates the rules command.
func NewRulesCommand(registry *migration.Registry) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the configured rules and their handlers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			rules, err := cc.Runtime.Rules()
			if err != nil {
				return err
			}
			resolver := migration.NewResolver(registry, cc.Cfg.DataMigration.RulesDir, cc.Logger)

			t := newTable(cmd.OutOrStdout(), "Rule", "Inputs", "Outputs", "Handler", "Skip")
			for _, r := range rules {
				handler := resolver.Describe(r.Name)
				if handler == "" {
					handler = "(missing)"
				}
				t.AppendRow([]any{r.Name, inputNames(r), outputNames(r), handler, r.Skip})
			}
			t.Render()
			return nil
		},
	}
}

func inputNames(r *migration.Rule) string {
	names := make([]string, len(r.Inputs))
	for i, in := range r.Inputs {
		names[i] = in.Credential.Name
	}
	return strings.Join(names, ", ")
}

func outputNames(r *migration.Rule) string {
	names := make([]string, len(r.Outputs))
	for i, out := range r.Outputs {
		names[i] = out.Credential.Name + "." + out.Table
	}
	return strings.Join(names, ", ")
}
