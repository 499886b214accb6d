// Package cli provides the command-line interface for leapmigrate.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/leapstack-labs/leapmigrate/internal/cli/commands"
	"github.com/leapstack-labs/leapmigrate/internal/config"
	"github.com/leapstack-labs/leapmigrate/internal/logging"
	"github.com/leapstack-labs/leapmigrate/internal/migration"
	"github.com/spf13/cobra"

	// database backends
	_ "github.com/leapstack-labs/leapmigrate/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leapmigrate/pkg/adapters/mysql"
	_ "github.com/leapstack-labs/leapmigrate/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/leapmigrate/pkg/adapters/sqlite"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// app holds the state of one invocation.
type app struct {
	cfgFile string
	closer  io.Closer
}

func (a *app) close() {
	if a.closer != nil {
		_ = a.closer.Close()
		a.closer = nil
	}
}

// NewRootCmd creates and returns the root command. Handlers in registry
// take precedence over rule scripts; registry may be nil.
func NewRootCmd(registry *migration.Registry) *cobra.Command {
	cmd, _ := newRootCmd(registry)
	return cmd
}

func newRootCmd(registry *migration.Registry) (*cobra.Command, *app) {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "leapmigrate",
		Short: "leapmigrate - database-to-database data migration",
		Long: `leapmigrate moves data between relational databases.

Rules read rows from input databases and write them to output tables through
buffered batch writers. CSV files can be imported into a database, and the
sensor reports tables whose row count changed since its previous run.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" || cmd.Name() == "version" {
				return nil
			}

			cfg, err := config.Load(a.cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logCfg := cfg.Logging
			if cfg.Verbose {
				logCfg.Console.Levels = logging.WithLevels(logCfg.Console.Levels, "DEBUG")
			}
			logger, closer, err := logging.Setup(logCfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a.closer = closer

			if cfg.File != "" {
				logger.Debug("using config file", slog.String("path", cfg.File))
			}
			cmd.SetContext(commands.WithConfig(cmd.Context(), cfg, logger))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: ./leapmigrate.yaml)")
	rootCmd.PersistentFlags().String("state", "", "Path to state database")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewMigrateCommand(registry))
	rootCmd.AddCommand(commands.NewLoadCommand())
	rootCmd.AddCommand(commands.NewSensorCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(commands.NewRulesCommand(registry))
	rootCmd.AddCommand(commands.NewDoctorCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd, a
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context, registry *migration.Registry) error {
	rootCmd, a := newRootCmd(registry)
	defer a.close()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for leapmigrate.

Bash:
  $ source <(leapmigrate completion bash)

Zsh:
  $ leapmigrate completion zsh > "${fpath[1]}/_leapmigrate"

Fish:
  $ leapmigrate completion fish | source

PowerShell:
  PS> leapmigrate completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
}
