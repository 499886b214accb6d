package duckdb

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Params holds DuckDB-specific configuration.
// Parsed from core.Credential.Params using mapstructure.
type Params struct {
	// Extensions to install and load (e.g., "httpfs", "spatial", "json")
	Extensions []string `mapstructure:"extensions"`

	// Secrets for cloud storage authentication
	Secrets []SecretConfig `mapstructure:"secrets"`

	// Settings to apply at session level (e.g., memory_limit, threads)
	Settings map[string]string `mapstructure:"settings"`
}

// SecretConfig defines a DuckDB secret for cloud storage.
type SecretConfig struct {
	// Type: "s3", "gcs", "azure", "r2", "huggingface"
	Type string `mapstructure:"type"`

	// Provider: "config", "credential_chain", "service_account", etc.
	Provider string `mapstructure:"provider"`

	Region string `mapstructure:"region,omitempty"`

	// Scope limits the secret to specific paths (string or []string)
	Scope any `mapstructure:"scope,omitempty"`

	KeyID    string `mapstructure:"key_id,omitempty"`
	Secret   string `mapstructure:"secret,omitempty"`
	Endpoint string `mapstructure:"endpoint,omitempty"`

	// URLStyle: "vhost" or "path" for S3
	URLStyle string `mapstructure:"url_style,omitempty"`

	UseSSL *bool `mapstructure:"use_ssl,omitempty"`
}

// parseParams decodes credential params. Scalar settings are stringified.
func parseParams(raw map[string]any) (*Params, error) {
	p := &Params{}
	if len(raw) == 0 {
		return p, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("duckdb params: %w", err)
	}
	return p, nil
}

// statements returns the session setup statements in execution order:
// extensions, settings (sorted by name), then secrets.
func (p *Params) statements() []string {
	var stmts []string
	for _, ext := range p.Extensions {
		stmts = append(stmts, "INSTALL "+ext, "LOAD "+ext)
	}
	for _, k := range slices.Sorted(maps.Keys(p.Settings)) {
		stmts = append(stmts, fmt.Sprintf("SET %s = %s", k, quoteLiteral(p.Settings[k])))
	}
	for i, s := range p.Secrets {
		stmts = append(stmts, s.statement(i))
	}
	return stmts
}

func (s SecretConfig) statement(index int) string {
	opts := []string{"TYPE " + s.Type}
	add := func(key, value string) {
		if value != "" {
			opts = append(opts, key+" "+quoteLiteral(value))
		}
	}
	if s.Provider != "" {
		opts = append(opts, "PROVIDER "+s.Provider)
	}
	add("REGION", s.Region)
	add("KEY_ID", s.KeyID)
	add("SECRET", s.Secret)
	add("ENDPOINT", s.Endpoint)
	add("URL_STYLE", s.URLStyle)
	if s.UseSSL != nil {
		opts = append(opts, fmt.Sprintf("USE_SSL %t", *s.UseSSL))
	}
	switch scope := s.Scope.(type) {
	case string:
		add("SCOPE", scope)
	case []any:
		parts := make([]string, 0, len(scope))
		for _, v := range scope {
			parts = append(parts, quoteLiteral(fmt.Sprint(v)))
		}
		opts = append(opts, "SCOPE ["+strings.Join(parts, ", ")+"]")
	}
	return fmt.Sprintf("CREATE OR REPLACE SECRET secret_%d (%s)", index, strings.Join(opts, ", "))
}

func quoteLiteral(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}
