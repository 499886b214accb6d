package commands

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/leapstack-labs/leapmigrate/pkg/adapter"
	"github.com/leapstack-labs/leapmigrate/pkg/dialect"
	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display leapmigrate version and the registered database backends.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "leapmigrate v%s (%s)\n", version, runtime.Version())
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "backends: %s\n", strings.Join(adapter.ListBackends(), ", "))
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "dialects: %s\n", strings.Join(dialect.List(), ", "))
		},
	}
}
