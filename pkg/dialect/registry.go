package dialect

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]*Dialect)
)

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds d under its name. Dialect packages call it from init;
// registering the same name twice panics.
func Register(d *Dialect) {
	registryMu.Lock()
	defer registryMu.Unlock()
	k := key(d.Name)
	if _, dup := registry[k]; dup {
		panic("dialect: Register called twice for " + d.Name)
	}
	registry[k] = d
}

// Get returns the dialect registered under name, case-insensitively.
func Get(name string) (*Dialect, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registry[key(name)]
	return d, ok
}

// Lookup is Get with an error naming the registered dialects.
func Lookup(name string) (*Dialect, error) {
	if d, ok := Get(name); ok {
		return d, nil
	}
	return nil, fmt.Errorf("unknown dialect %q (registered: %s)", name, strings.Join(List(), ", "))
}

// List returns the registered dialect names, sorted.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for _, d := range registry {
		names = append(names, d.Name)
	}
	slices.Sort(names)
	return names
}
