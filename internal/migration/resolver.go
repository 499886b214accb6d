package migration

import (
	"context"
	"log/slog"
	"os"

	"github.com/leapstack-labs/leapmigrate/internal/starlark"
	"github.com/leapstack-labs/leapmigrate/pkg/core"
)

// SourceRegistry marks handlers found in the Registry.
const SourceRegistry = "registry"

// Resolver finds the handler of a rule: the static Registry first, then
// the Starlark script <RulesDir>/<name>.star.
type Resolver struct {
	Registry *Registry
	RulesDir string
	Logger   *slog.Logger
}

// NewResolver creates a resolver. registry may be nil.
func NewResolver(registry *Registry, rulesDir string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{Registry: registry, RulesDir: rulesDir, Logger: logger}
}

// Resolve returns the handler for rule and where it came from (SourceRegistry
// or the script path). A rule with neither yields *core.NotFoundError; a
// script without a callable exec yields *core.ContractError.
func (r *Resolver) Resolve(ctx context.Context, rule string) (Handler, string, error) {
	if h, ok := r.Registry.Lookup(rule); ok {
		return h, SourceRegistry, nil
	}
	if err := starlark.ValidateRuleName(rule); err != nil {
		return nil, "", &core.NotFoundError{Rule: rule}
	}
	path := starlark.ScriptPath(r.RulesDir, rule)
	script, err := starlark.Load(ctx, rule, path, r.Logger)
	if err != nil {
		return nil, path, err
	}
	return script, path, nil
}

// Describe reports where rule would resolve without loading it: SourceRegistry,
// the script path, or "" when nothing exists.
func (r *Resolver) Describe(rule string) string {
	if _, ok := r.Registry.Lookup(rule); ok {
		return SourceRegistry
	}
	if starlark.ValidateRuleName(rule) != nil {
		return ""
	}
	path := starlark.ScriptPath(r.RulesDir, rule)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
