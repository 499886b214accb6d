package config

import (
	"fmt"
	"maps"
	"slices"

	"github.com/leapstack-labs/leapmigrate/pkg/adapter"
	"github.com/leapstack-labs/leapmigrate/pkg/core"
)

const connectionsSection = "databases_connections"

// Credentials builds one credential per databases_connections entry.
// ${VAR} references in host, user, password and database are expanded.
func (c *Config) Credentials() (map[string]core.Credential, error) {
	creds := make(map[string]core.Credential, len(c.Connections))
	for _, name := range slices.Sorted(maps.Keys(c.Connections)) {
		cred, err := c.Connections[name].credential(name)
		if err != nil {
			return nil, err
		}
		creds[name] = cred
	}
	return creds, nil
}

// Credential returns the credential of one connection.
func (c *Config) Credential(name string) (core.Credential, error) {
	conn, ok := c.Connections[name]
	if !ok {
		return core.Credential{}, &core.ConfigError{
			Section: connectionsSection,
			Message: fmt.Sprintf("no credentials found for target database %s", name),
		}
	}
	return conn.credential(name)
}

// CredentialNames returns the configured connection names, sorted.
func (c *Config) CredentialNames() []string {
	return slices.Sorted(maps.Keys(c.Connections))
}

func (cc ConnectionConfig) credential(name string) (core.Credential, error) {
	if cc.Type == "" {
		return core.Credential{}, &core.ConfigError{
			Section: connectionsSection,
			Message: fmt.Sprintf("connection %q has no type", name),
		}
	}
	if !adapter.IsRegistered(cc.Type) {
		return core.Credential{}, &core.ConfigError{
			Section: connectionsSection,
			Message: fmt.Sprintf("connection %q", name),
			Err:     &adapter.UnknownBackendError{Kind: cc.Type, Available: adapter.ListBackends()},
		}
	}
	if cc.Port < 0 || cc.Port > 65535 {
		return core.Credential{}, &core.ConfigError{
			Section: connectionsSection,
			Message: fmt.Sprintf("connection %q has invalid port %d", name, cc.Port),
		}
	}
	return core.Credential{
		Name:     name,
		Kind:     cc.Type,
		Host:     expandEnvVars(cc.Host),
		Port:     cc.Port,
		User:     expandEnvVars(cc.User),
		Password: expandEnvVars(cc.Password),
		Database: expandEnvVars(cc.Database),
		Schema:   cc.Schema,
		Options:  maps.Clone(cc.Options),
		Params:   maps.Clone(cc.Params),
	}, nil
}
