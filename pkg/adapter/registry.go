package adapter

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/leapmigrate/pkg/core"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func(*slog.Logger) Backend)
)

// kindAliases maps alternate spellings of a backend kind to its registered name.
var kindAliases = map[string]string{
	"postgresql": "postgres",
	"pg":         "postgres",
	"mariadb":    "mysql",
	"sqlite3":    "sqlite",
}

// Register adds a backend factory to the registry.
// Called by backend implementations in their init() functions.
func Register(name string, factory func(*slog.Logger) Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves a backend factory by kind. Known aliases are resolved.
func Get(kind string) (func(*slog.Logger) Backend, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[normalizeKind(kind)]
	return f, ok
}

// NewBackend creates a backend instance for a credential kind.
// The logger parameter is passed to the backend constructor (nil uses discard logger).
func NewBackend(kind string, logger *slog.Logger) (Backend, error) {
	if kind == "" {
		return nil, fmt.Errorf("backend kind not specified")
	}

	factory, ok := Get(kind)
	if !ok {
		return nil, &UnknownBackendError{
			Kind:      kind,
			Available: ListBackends(),
		}
	}
	return factory(logger), nil
}

// NewFacade maps a credential's backend kind to a facade bound to pool.
func NewFacade(pool *Pool, cred core.Credential, opts FacadeOptions, logger *slog.Logger) (Facade, error) {
	backend, err := NewBackend(cred.Kind, logger)
	if err != nil {
		return nil, fmt.Errorf("credential %q: %w", cred.Name, err)
	}
	return NewSQLFacade(pool, backend, cred, opts, logger), nil
}

// ListBackends returns all registered backend names (sorted).
func ListBackends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a backend kind is registered.
func IsRegistered(kind string) bool {
	_, ok := Get(kind)
	return ok
}

func normalizeKind(kind string) string {
	k := strings.ToLower(strings.TrimSpace(kind))
	if alias, ok := kindAliases[k]; ok {
		return alias
	}
	return k
}

// UnknownBackendError is returned when an unsupported backend kind is requested.
type UnknownBackendError struct {
	Kind      string
	Available []string
}

func (e *UnknownBackendError) Error() string {
	return fmt.Sprintf("unsupported database type %q\nAvailable backends: %v\nHint: Check the type of the credential under databases_connections", e.Kind, e.Available)
}
