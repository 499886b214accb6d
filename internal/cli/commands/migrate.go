package commands

import (
	"io"

	"github.com/leapstack-labs/leapmigrate/internal/migration"
	"github.com/spf13/cobra"
)

// MigrateOptions holds options for the migrate command.
type MigrateOptions struct {
	Rules []string
}

// NewMigrateCommand creates the migrate command. Rules registered in
// registry take precedence over rule scripts.
func NewMigrateCommand(registry *migration.Registry) *cobra.Command {
	opts := &MigrateOptions{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run the configured migration rules",
		Long: `Run the rules of data_migration.rules in declaration order.

Each rule is resolved to a registered handler or to <rules_dir>/<rule>.star.
The first failing rule stops the run; connections opened by a rule are
closed when it finishes.`,
		Example: `  # Run every rule
  leapmigrate migrate

  # Run two rules
  leapmigrate migrate --rule customers --rule orders`,
		Args: cobra.NoArgs,
		RunE: timed(func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, registry, opts)
		}),
	}

	cmd.Flags().StringSliceVarP(&opts.Rules, "rule", "r", nil, "Run only the named rules")

	return cmd
}

func runMigrate(cmd *cobra.Command, registry *migration.Registry, opts *MigrateOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	rules, err := cc.Runtime.Rules()
	if err != nil {
		return err
	}
	if rules, err = migration.Select(rules, opts.Rules); err != nil {
		return err
	}

	resolver := migration.NewResolver(registry, cc.Cfg.DataMigration.RulesDir, cc.Logger)
	results, runErr := migration.NewDispatcher(cc.Runtime, resolver, cc.Store).Run(cmd.Context(), rules)
	renderRuleResults(cmd.OutOrStdout(), results)
	return runErr
}

func renderRuleResults(w io.Writer, results []migration.RuleResult) {
	if len(results) == 0 {
		return
	}
	t := newTable(w, "Rule", "Handler", "Status", "Duration")
	for _, r := range results {
		status := "success"
		switch {
		case r.Skipped:
			status = "skipped"
		case r.Err != nil:
			status = "failed"
		}
		t.AppendRow([]any{r.Name, r.Source, status, formatDuration(r.Duration)})
	}
	t.Render()
}
