package migration

import (
	"log/slog"

	"github.com/leapstack-labs/leapmigrate/internal/config"
	"github.com/leapstack-labs/leapmigrate/pkg/adapter"
	"github.com/leapstack-labs/leapmigrate/pkg/core"
)

// Runtime is the state shared by a command run: configuration, resolved
// credentials and the connection pool.
type Runtime struct {
	Config      *config.Config
	Credentials map[string]core.Credential
	Pool        *adapter.Pool
	Logger      *slog.Logger
}

// NewRuntime resolves the credentials of cfg and creates an empty pool.
func NewRuntime(cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	creds, err := cfg.Credentials()
	if err != nil {
		return nil, err
	}
	return &Runtime{
		Config:      cfg,
		Credentials: creds,
		Pool:        adapter.NewPool(logger),
		Logger:      logger,
	}, nil
}

// Close closes every pooled connection.
func (rt *Runtime) Close() error {
	return rt.Pool.CloseAll()
}

// Rules builds the configured rules.
func (rt *Runtime) Rules() ([]*Rule, error) {
	return BuildRules(rt.Config, rt.Credentials)
}

// Facade creates a facade for cred on the runtime pool.
func (rt *Runtime) Facade(cred core.Credential, opts adapter.FacadeOptions) (adapter.Facade, error) {
	return adapter.NewFacade(rt.Pool, cred, opts, rt.Logger)
}
