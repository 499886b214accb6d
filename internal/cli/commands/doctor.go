package commands

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/leapstack-labs/leapmigrate/internal/migration"
	"github.com/leapstack-labs/leapmigrate/pkg/adapter"
	"github.com/leapstack-labs/leapmigrate/pkg/core"
	"github.com/spf13/cobra"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that every configured database is reachable",
		Long: `Open a connection to every entry of databases_connections and report the
time it took or the error it returned. Exits with an error when any
database is unreachable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			var failed int
			t := newTable(cmd.OutOrStdout(), "Database", "Kind", "Status", "Time")
			for _, name := range slices.Sorted(maps.Keys(cc.Runtime.Credentials)) {
				cred := cc.Runtime.Credentials[name]
				start := time.Now()
				status := "ok"
				if err := ping(cmd.Context(), cc.Runtime, cred); err != nil {
					status = err.Error()
					failed++
				}
				t.AppendRow([]any{name, cred.Kind, status, formatDuration(time.Since(start))})
			}
			t.Render()

			if failed > 0 {
				return fmt.Errorf("%d of %d databases unreachable", failed, len(cc.Runtime.Credentials))
			}
			return nil
		},
	}
}

func ping(ctx context.Context, rt *migration.Runtime, cred core.Credential) error {
	f, err := rt.Facade(cred, adapter.FacadeOptions{})
	if err != nil {
		return err
	}
	if err := f.CreateConnection(ctx, false); err != nil {
		return err
	}
	return f.CloseConnection()
}
