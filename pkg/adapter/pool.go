package adapter

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/leapstack-labs/leapmigrate/pkg/core"
)

// Pool maps pool keys to live connections.
//
// Reused connections are keyed by credential name and shared by every
// facade that asks for reuse. Fresh connections get a unique time-ordered
// key that reuse lookups never match; they stay reachable for CloseAll.
type Pool struct {
	mu     sync.Mutex
	conns  map[string]*Connection
	logger *slog.Logger
}

// NewPool creates an empty pool.
// If logger is nil, a discard logger is used.
func NewPool(logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pool{
		conns:  make(map[string]*Connection),
		logger: logger,
	}
}

// Acquire returns an open connection for cred and the key it is stored under.
// With reuse, an existing entry for the credential name is returned as is.
// The session is opened without holding the pool lock; when two callers race
// to open a reused entry, the first one stored wins and the other is closed.
func (p *Pool) Acquire(ctx context.Context, backend Backend, cred core.Credential, reuse bool) (*Connection, string, error) {
	key := cred.Name
	if reuse {
		if conn, ok := p.lookup(key); ok {
			p.logger.Debug("reusing pooled connection", slog.String("key", key))
			return conn, key, nil
		}
	} else {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, "", &core.ConnectionError{Credential: cred.Name, Op: "open", Err: err}
		}
		key = id.String()
	}

	conn := NewConnection(backend, cred, p.logger)
	if err := conn.Open(ctx); err != nil {
		return nil, "", err
	}

	p.mu.Lock()
	if existing, ok := p.conns[key]; reuse && ok && existing.IsOpen() {
		p.mu.Unlock()
		_ = conn.Close()
		p.logger.Debug("reusing pooled connection", slog.String("key", key))
		return existing, key, nil
	}
	p.conns[key] = conn
	p.mu.Unlock()

	p.logger.Debug("pooled connection", slog.String("key", key), slog.Bool("reuse", reuse))
	return conn, key, nil
}

func (p *Pool) lookup(key string) (*Connection, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	conn, ok := p.conns[key]
	return conn, ok && conn.IsOpen()
}

// Release closes the connection stored under key and forgets it.
func (p *Pool) Release(key string) error {
	p.mu.Lock()
	conn, ok := p.conns[key]
	delete(p.conns, key)
	p.mu.Unlock()

	if !ok {
		return nil
	}
	return conn.Close()
}

// CloseAll closes every pooled connection and empties the pool.
// Entries that are already closed are skipped silently.
func (p *Pool) CloseAll() error {
	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[string]*Connection)
	p.mu.Unlock()

	var errs []error
	for key, conn := range conns {
		if err := conn.Close(); err != nil {
			p.logger.Error("failed to close pooled connection", slog.String("key", key), slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	if len(conns) > 0 {
		p.logger.Debug("closed pooled connections", slog.Int("count", len(conns)))
	}
	return errors.Join(errs...)
}

// Len returns the number of pooled entries.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Keys returns the pool keys (sorted).
func (p *Pool) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.conns))
	for k := range p.conns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
