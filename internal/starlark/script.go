package starlark

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/leapstack-labs/leapmigrate/pkg/adapter"
	"github.com/leapstack-labs/leapmigrate/pkg/core"
	"go.starlark.net/starlark"
)

// EntryPoint is the function every rule script must define.
const EntryPoint = "exec"

// Script is a loaded rule script. It satisfies the migration handler
// contract through Apply.
type Script struct {
	Rule string
	Path string

	exec   starlark.Callable
	logger *slog.Logger
}

// Load executes the script at path once and checks that it defines a
// callable exec. A missing file yields *core.NotFoundError; a script
// without exec yields *core.ContractError.
func Load(ctx context.Context, rule, path string, logger *slog.Logger) (*Script, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	content, err := os.ReadFile(path) //nolint:gosec // G304: path is built from the configured rules directory
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &core.NotFoundError{Rule: rule, Path: path}
		}
		return nil, fmt.Errorf("failed to read rule script %s: %w", path, err)
	}

	thread := newThread(ctx, "load:"+rule, logger)
	globals, err := starlark.ExecFile(thread, path, content, Predeclared(logger)) //nolint:staticcheck // SA1019: will migrate to ExecFileOptions later
	if err != nil {
		return nil, fmt.Errorf("failed to load rule script %s: %w", path, err)
	}

	fn, ok := globals[EntryPoint].(starlark.Callable)
	if !ok {
		return nil, &core.ContractError{Rule: rule, Path: path, Symbol: EntryPoint}
	}

	logger.Debug("rule script loaded", slog.String("rule", rule), slog.String("path", path))
	return &Script{Rule: rule, Path: path, exec: fn, logger: logger}, nil
}

// Apply calls exec(inputs, outputs) once. Starlark errors and cursor
// errors hit during iteration are returned.
func (s *Script) Apply(ctx context.Context, inputs, outputs []adapter.Facade) error {
	thread := newThread(ctx, s.Rule, s.logger)
	run := &runState{}
	thread.SetLocal(runKey, run)

	if _, err := starlark.Call(thread, s.exec, starlark.Tuple{facadeList(inputs), facadeList(outputs)}, nil); err != nil {
		return err
	}
	return run.err()
}

func facadeList(facades []adapter.Facade) *starlark.List {
	values := make([]starlark.Value, len(facades))
	for i, f := range facades {
		values[i] = NewFacade(f)
	}
	return starlark.NewList(values)
}
