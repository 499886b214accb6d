// Package mysql provides the MySQL and MariaDB backend, driven by
// go-sql-driver/mysql.
package mysql

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/leapstack-labs/leapmigrate/pkg/adapter"
	mydialect "github.com/leapstack-labs/leapmigrate/pkg/adapters/mysql/dialect"
	"github.com/leapstack-labs/leapmigrate/pkg/core"
	"github.com/leapstack-labs/leapmigrate/pkg/dialect"
)

const (
	defaultHost = "localhost"
	defaultPort = 3306
)

// Backend implements adapter.Backend for MySQL.
type Backend struct {
	logger *slog.Logger
}

// New creates a MySQL backend.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Backend{logger: logger}
}

// Name returns the backend kind.
func (b *Backend) Name() string { return "mysql" }

// DriverName returns the database/sql driver name.
func (b *Backend) DriverName() string { return "mysql" }

// Dialect returns the MySQL dialect.
func (b *Backend) Dialect() *dialect.Dialect { return mydialect.MySQL }

// DSN formats the credential through mysql.Config.
func (b *Backend) DSN(cred core.Credential) (string, error) {
	if cred.Database == "" {
		return "", fmt.Errorf("mysql: database name is required")
	}
	b.logger.Debug("connecting to mysql", slog.String("host", cred.Host), slog.String("database", cred.Database))
	return buildConfig(cred).FormatDSN(), nil
}

// buildConfig maps a credential to a driver config. Times are parsed in
// UTC; credential options become DSN parameters.
func buildConfig(cred core.Credential) *mysql.Config {
	host := cred.Host
	if host == "" {
		host = defaultHost
	}
	port := cred.Port
	if port == 0 {
		port = defaultPort
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	cfg.User = cred.User
	cfg.Passwd = cred.Password
	cfg.DBName = cred.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	for k, v := range cred.Options {
		if cfg.Params == nil {
			cfg.Params = make(map[string]string, len(cred.Options))
		}
		cfg.Params[k] = v
	}
	return cfg
}

var _ adapter.Backend = (*Backend)(nil)
