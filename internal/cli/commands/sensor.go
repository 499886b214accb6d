package commands

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/leapstack-labs/leapmigrate/internal/migration"
	"github.com/leapstack-labs/leapmigrate/internal/state"
	"github.com/leapstack-labs/leapmigrate/pkg/adapter"
	"github.com/leapstack-labs/leapmigrate/pkg/core"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// SensorOptions holds options for the sensor command.
type SensorOptions struct {
	Jobs int
}

// NewSensorCommand creates the sensor command.
func NewSensorCommand() *cobra.Command {
	opts := &SensorOptions{}
	cmd := &cobra.Command{
		Use:   "sensor",
		Short: "Report tables whose row count changed",
		Long: `Count the rows of every base table of every configured database, compare
with the previous snapshot and print the difference. The new counts become
the snapshot the next run compares against.`,
		Args: cobra.NoArgs,
		RunE: timed(func(cmd *cobra.Command, _ []string) error {
			return runSensor(cmd, opts)
		}),
	}

	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 4, "Databases scanned concurrently")

	return cmd
}

// sensorChange is a table change on one credential.
type sensorChange struct {
	Credential string
	state.TableChange
}

func runSensor(cmd *cobra.Command, opts *SensorOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	names := slices.Sorted(maps.Keys(cc.Runtime.Credentials))
	counts := make([]map[string]int64, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Jobs, 1))
	for i, name := range names {
		g.Go(func() error {
			c, err := countRows(gctx, cc.Runtime, cc.Runtime.Credentials[name])
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			counts[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var changes []sensorChange
	for i, name := range names {
		previous, err := cc.Store.LatestSnapshot(ctx, name)
		if err != nil {
			return err
		}
		for _, change := range state.Diff(previous, counts[i]) {
			cc.Logger.Info(fmt.Sprintf("new data in %s.%s: %s rows", name, change.Table, formatDelta(change.Delta())))
			changes = append(changes, sensorChange{Credential: name, TableChange: change})
		}
		if _, err := cc.Store.SaveSnapshot(ctx, name, counts[i]); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if len(changes) == 0 {
		_, _ = fmt.Fprintln(out, "No new data")
		return nil
	}
	t := newTable(out, "Database", "Table", "Previous", "Current", "Change")
	for _, c := range changes {
		t.AppendRow([]any{c.Credential, c.Table, c.Previous, c.Current, formatDelta(c.Delta())})
	}
	t.Render()
	return nil
}

// countRows returns the row count of every base table of cred on a private
// connection.
func countRows(ctx context.Context, rt *migration.Runtime, cred core.Credential) (counts map[string]int64, err error) {
	f, err := rt.Facade(cred, adapter.FacadeOptions{})
	if err != nil {
		return nil, err
	}
	if err := f.CreateConnection(ctx, false); err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.CloseConnection(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	tables, err := f.TableNames(ctx)
	if err != nil {
		return nil, err
	}
	counts = make(map[string]int64, len(tables))
	for _, table := range tables {
		m, err := f.Metadata(table)
		if err != nil {
			return nil, err
		}
		n, err := m.RowCount(ctx)
		if err != nil {
			return nil, err
		}
		counts[table] = n
	}
	rt.Logger.Debug("tables counted", slog.String("database", cred.Name), slog.Int("tables", len(counts)))
	return counts, nil
}
