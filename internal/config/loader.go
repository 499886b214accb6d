package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nesting levels: LEAPMIGRATE_DATA_MIGRATION__BUFFER_SIZE=500.
const EnvPrefix = "LEAPMIGRATE_"

// ConfigFileNames are searched in the working directory, in order.
var ConfigFileNames = []string{
	"leapmigrate.yaml",
	"leapmigrate.yml",
	"leapmigrate.toml",
	filepath.Join("private", "configs.yml"),
}

// FindConfigFile returns the config file to use.
// Priority: explicit path > ConfigFileNames. Returns "" if none exists.
func FindConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range ConfigFileNames {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]any{
		"data_migration.buffer_size":        DefaultBufferSize,
		"data_migration.bulk_commit":        false,
		"data_migration.rules_dir":          DefaultRulesDir,
		"csv_loader.buffer_size":            DefaultBufferSize,
		"csv_loader.bulk_commit":            false,
		"system_logging.console_log.levels": DefaultConsoleLevels,
		"system_logging.console_log.format": DefaultLogFormat,
		"state_path":                        DefaultStateFile,
		"verbose":                           false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	path := FindConfigFile(cfgFile)
	order := newOrder()
	if path != "" {
		var err error
		if order, err = loadFile(k, path); err != nil {
			return nil, err
		}
	}

	// 3. Environment variables
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (only those explicitly set)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			// --state is short for state_path
			if key == "state" {
				return "state_path", posflag.FlagVal(flags, f)
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.File = path
	cfg.Order = order
	cfg.Order.Complete(cfg.DataMigration.Rules)
	cfg.applyDefaults()

	baseDir := "."
	if path != "" {
		baseDir = filepath.Dir(path)
	}
	cfg.resolvePaths(baseDir)

	return &cfg, nil
}

// loadFile loads path into k and recovers the declaration order of rules.
func loadFile(k *koanf.Koanf, path string) (Order, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is the user-selected config file
	if err != nil {
		return Order{}, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		raw, order, err := decodeTOML(data)
		if err != nil {
			return order, fmt.Errorf("error parsing config file %s: %w", path, err)
		}
		if err := k.Load(confmap.Provider(raw, ""), nil); err != nil {
			return order, fmt.Errorf("error loading config file %s: %w", path, err)
		}
		return order, nil
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return Order{}, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	order, err := yamlOrder(data)
	if err != nil {
		return order, fmt.Errorf("error parsing config file %s: %w", path, err)
	}
	return order, nil
}

func (c *Config) applyDefaults() {
	if c.DataMigration.BufferSize <= 0 {
		c.DataMigration.BufferSize = DefaultBufferSize
	}
	if c.CSVLoader.BufferSize <= 0 {
		c.CSVLoader.BufferSize = DefaultBufferSize
	}
	if len(c.Logging.Console.Levels) == 0 {
		c.Logging.Console.Levels = DefaultConsoleLevels
	}
	for i := range c.CSVLoader.Files {
		f := &c.CSVLoader.Files[i]
		if f.Encoding == "" {
			f.Encoding = "utf-8"
		}
		if f.Delimiter == "" {
			f.Delimiter = ","
		}
		if f.QuoteChar == "" {
			f.QuoteChar = `"`
		}
	}
}

// resolvePaths makes relative paths relative to the config file directory.
func (c *Config) resolvePaths(baseDir string) {
	c.StatePath = resolvePathRelativeTo(c.StatePath, baseDir)
	c.DataMigration.RulesDir = resolvePathRelativeTo(c.DataMigration.RulesDir, baseDir)
	for i := range c.CSVLoader.Files {
		c.CSVLoader.Files[i].Path = resolvePathRelativeTo(c.CSVLoader.Files[i].Path, baseDir)
	}
	if c.Logging.File != nil {
		c.Logging.File.Path = resolvePathRelativeTo(c.Logging.File.Path, baseDir)
	}
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty, absolute, or ":memory:".
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
// Unset variables are left as written.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return val
		}
		return match
	})
}
