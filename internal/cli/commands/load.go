package commands

import (
	"io"

	"github.com/leapstack-labs/leapmigrate/internal/csvload"
	"github.com/leapstack-labs/leapmigrate/pkg/adapter"
	"github.com/leapstack-labs/leapmigrate/pkg/core"
	"github.com/spf13/cobra"
)

// NewLoadCommand creates the load command.
func NewLoadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Import the configured CSV files",
		Long: `Import every csv_loader.csv_files entry into the csv_loader.target_database
credential. Each file is committed on its own; the first failing file stops
the import.`,
		Args: cobra.NoArgs,
		RunE: timed(runLoad),
	}
}

func runLoad(cmd *cobra.Command, _ []string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	loader := cc.Cfg.CSVLoader
	if loader.TargetDatabase == "" {
		return &core.ConfigError{Section: "csv_loader", Message: "target_database is not set"}
	}
	cred, ok := cc.Runtime.Credentials[loader.TargetDatabase]
	if !ok {
		return &core.ConfigError{Section: "csv_loader", Message: "no credentials found for target database " + loader.TargetDatabase}
	}

	f, err := cc.Runtime.Facade(cred, adapter.FacadeOptions{})
	if err != nil {
		return err
	}
	im := csvload.NewImporter(f, loader.BufferSize, loader.BulkCommit, cc.Logger)
	im.Store = cc.Store

	results, importErr := im.Import(cmd.Context(), csvload.Specs(loader.Files))
	renderImportResults(cmd.OutOrStdout(), results)
	return importErr
}

func renderImportResults(w io.Writer, results []csvload.FileResult) {
	if len(results) == 0 {
		return
	}
	t := newTable(w, "File", "Table", "Read", "Written", "Duration")
	for _, r := range results {
		t.AppendRow([]any{r.Path, r.Table, r.Read, r.Queued, formatDuration(r.Duration)})
	}
	t.Render()
}
