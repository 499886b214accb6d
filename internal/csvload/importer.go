// Package csvload imports delimited files into a destination table.
//
// Each file is read with its header row, every destination column is
// filled from the same-named source column (or a configured override),
// values are converted with ConvertValue and rows are streamed through a
// single batch writer that is flushed and committed per file.
package csvload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/leapstack-labs/leapmigrate/internal/config"
	"github.com/leapstack-labs/leapmigrate/internal/state"
	"github.com/leapstack-labs/leapmigrate/pkg/adapter"
	"github.com/leapstack-labs/leapmigrate/pkg/core"
)

const loaderSection = "csv_loader"

// FileSpec describes one file to import.
type FileSpec struct {
	Path        string
	TargetTable string
	Encoding    string // default utf-8
	Delimiter   string // default ","
	QuoteChar   string // default `"`

	// ReplaceColumnValues sets destination columns to a literal value,
	// bypassing the file and any conversion.
	ReplaceColumnValues map[string]any
}

// FileResult reports one imported file.
type FileResult struct {
	Path     string
	Table    string
	Read     int64
	Queued   int64
	Duration time.Duration
}

// Recorder stores executions. *state.Store implements it.
type Recorder interface {
	RecordExecution(ctx context.Context, e *state.Execution) error
}

// Importer writes files into the database behind Facade.
type Importer struct {
	Facade     adapter.Facade
	BufferSize int
	BulkCommit bool
	Store      Recorder // optional
	Logger     *slog.Logger
}

// NewImporter creates an importer. If logger is nil, a discard logger is used.
func NewImporter(f adapter.Facade, bufferSize int, bulkCommit bool, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Importer{Facade: f, BufferSize: bufferSize, BulkCommit: bulkCommit, Logger: logger}
}

// Import loads files in order. The first failing file stops the import;
// files committed before it stay committed. The facade connection is
// closed before Import returns.
func (im *Importer) Import(ctx context.Context, files []FileSpec) (results []FileResult, err error) {
	if len(files) == 0 {
		return nil, &core.ConfigError{Section: loaderSection, Message: "no CSV files found"}
	}
	if im.BulkCommit {
		im.Logger.Debug("bulk commit enabled", slog.Int("buffer_size", im.BufferSize))
	}

	if err := im.Facade.CreateConnection(ctx, false); err != nil {
		return nil, err
	}
	defer func() {
		if cerr := im.Facade.CloseConnection(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	im.Logger.Debug("starting CSV import", slog.Int("files", len(files)))
	for _, spec := range files {
		res, err := im.importFile(ctx, spec)
		im.record(ctx, spec, res, err)
		if err != nil {
			return results, fmt.Errorf("import %s: %w", spec.Path, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (im *Importer) importFile(ctx context.Context, spec FileSpec) (res FileResult, err error) {
	res = FileResult{Path: spec.Path, Table: spec.TargetTable}
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	if spec.TargetTable == "" {
		return res, &core.ConfigError{Section: loaderSection, Message: fmt.Sprintf("file %s has no target_table", spec.Path)}
	}

	w, err := im.Facade.Writer(ctx,
		adapter.WithTable(spec.TargetTable),
		adapter.WithBufferSize(im.BufferSize),
		adapter.WithBulkCommit(im.BulkCommit))
	if err != nil {
		return res, err
	}
	defer func() {
		if err != nil {
			if rerr := w.Rollback(); rerr != nil {
				im.Logger.Error("rollback failed", slog.String("table", spec.TargetTable), slog.Any("error", rerr))
			}
		}
	}()

	f, err := os.Open(spec.Path)
	if err != nil {
		return res, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	rr, err := newRecordReader(f, spec)
	if err != nil {
		return res, &core.ConfigError{Section: loaderSection, Message: fmt.Sprintf("file %s", spec.Path), Err: err}
	}

	header, err := rr.Read()
	if err != nil {
		return res, fmt.Errorf("failed to read header: %w", err)
	}
	fields, err := columnFields(w.Table(), header, spec)
	if err != nil {
		return res, err
	}
	columns := w.Table().Columns

	for {
		record, err := rr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, err
		}
		res.Read++

		row := make(core.PositionalRow, len(columns))
		for i, col := range columns {
			if v, ok := spec.ReplaceColumnValues[col.Name]; ok {
				row[i] = v
				continue
			}
			row[i] = ConvertValue(fieldAt(record, fields[i]), col)
		}
		if _, err := w.Insert(ctx, row); err != nil {
			return res, fmt.Errorf("line %d: %w", rr.Line(), err)
		}
		res.Queued++
	}

	if _, err := w.FlushBuffer(ctx); err != nil {
		return res, err
	}
	if err := w.Commit(); err != nil {
		return res, err
	}

	im.Logger.Debug("file totals",
		slog.String("table", spec.TargetTable),
		slog.Int64("total", res.Read),
		slog.Int64("valid", res.Queued))
	if res.Read != res.Queued {
		im.Logger.Error(fmt.Sprintf("%d invalid lines found", res.Read-res.Queued), slog.String("table", spec.TargetTable))
	} else {
		im.Logger.Info(fmt.Sprintf("%s imported successfully total: %d", spec.TargetTable, res.Queued))
	}
	return res, nil
}

// columnFields maps each destination column to its header index; -1 marks
// an overridden column.
func columnFields(table *core.TableSchema, header []string, spec FileSpec) ([]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	fields := make([]int, len(table.Columns))
	for i, col := range table.Columns {
		if _, ok := spec.ReplaceColumnValues[col.Name]; ok {
			fields[i] = -1
			continue
		}
		pos, ok := index[col.Name]
		if !ok {
			return nil, &core.ConfigError{
				Section: loaderSection,
				Message: fmt.Sprintf("column %s of table %s not found in %s", col.Name, table.Name, spec.Path),
			}
		}
		fields[i] = pos
	}
	return fields, nil
}

func fieldAt(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}

func (im *Importer) record(ctx context.Context, spec FileSpec, res FileResult, err error) {
	if im.Store == nil {
		return
	}
	e := &state.Execution{
		Kind:        state.KindImport,
		Name:        spec.Path,
		Target:      spec.TargetTable,
		RowsRead:    res.Read,
		RowsWritten: res.Queued,
		Status:      state.StatusOf(err),
		StartedAt:   time.Now().Add(-res.Duration),
		Duration:    res.Duration,
	}
	if err != nil {
		e.Error = err.Error()
	}
	if rerr := im.Store.RecordExecution(ctx, e); rerr != nil {
		im.Logger.Warn("failed to record import", slog.String("path", spec.Path), slog.Any("error", rerr))
	}
}

// Specs converts the csv_loader.csv_files entries into FileSpecs.
func Specs(files []config.CSVFileConfig) []FileSpec {
	specs := make([]FileSpec, len(files))
	for i, f := range files {
		specs[i] = FileSpec{
			Path:                f.Path,
			TargetTable:         f.TargetTable,
			Encoding:            f.Encoding,
			Delimiter:           f.Delimiter,
			QuoteChar:           f.QuoteChar,
			ReplaceColumnValues: f.ReplaceColumnsValues,
		}
	}
	return specs
}
