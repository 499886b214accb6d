// Package commands implements the leapmigrate subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapmigrate/internal/config"
	"github.com/leapstack-labs/leapmigrate/internal/migration"
	"github.com/leapstack-labs/leapmigrate/internal/state"
	"github.com/spf13/cobra"
)

type configKey struct{}

type loggerKey struct{}

// WithConfig stores the loaded configuration and logger in ctx.
func WithConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) context.Context {
	ctx = context.WithValue(ctx, configKey{}, cfg)
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetConfig returns the configuration stored by WithConfig.
func GetConfig(ctx context.Context) (*config.Config, error) {
	if ctx != nil {
		if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok && cfg != nil {
			return cfg, nil
		}
	}
	return nil, fmt.Errorf("configuration not loaded")
}

// GetLogger returns the logger stored by WithConfig, or a discard logger.
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.New(slog.DiscardHandler)
}

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg     *config.Config
	Logger  *slog.Logger
	Runtime *migration.Runtime
	Store   *state.Store
}

// NewCommandContext resolves the credentials and opens the state store.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cc, cleanup, err := NewStoreContext(cmd)
	if err != nil {
		return nil, nil, err
	}

	rt, err := migration.NewRuntime(cc.Cfg, cc.Logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	cc.Runtime = rt

	return cc, func() {
		if err := rt.Close(); err != nil {
			cc.Logger.Warn("failed to close connections", slog.Any("error", err))
		}
		cleanup()
	}, nil
}

// NewStoreContext opens the state store only. Useful for commands that
// don't need database credentials.
func NewStoreContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg, err := GetConfig(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	logger := GetLogger(cmd.Context())

	store, err := state.Open(cmd.Context(), cfg.StatePath, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close state store", slog.Any("error", err))
		}
	}
	return &CommandContext{Cfg: cfg, Logger: logger, Store: store}, cleanup, nil
}

// timed wraps a RunE and logs the elapsed time when it returns.
func timed(run func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		err := run(cmd, args)
		GetLogger(cmd.Context()).Info(fmt.Sprintf("elapsed time: %s", time.Since(start).Round(time.Millisecond)),
			slog.String("command", cmd.Name()))
		return err
	}
}
