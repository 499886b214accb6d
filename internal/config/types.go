// Package config loads the leapmigrate configuration file.
//
// Values are layered with koanf: built-in defaults, then the config file
// (YAML or TOML), then LEAPMIGRATE_ environment variables, then flags that
// were explicitly set on the command line.
package config

// Config holds all configuration options.
type Config struct {
	Connections   map[string]ConnectionConfig `koanf:"databases_connections"`
	DataMigration DataMigrationConfig         `koanf:"data_migration"`
	CSVLoader     CSVLoaderConfig             `koanf:"csv_loader"`
	Logging       LoggingConfig               `koanf:"system_logging"`
	StatePath     string                      `koanf:"state_path"`
	Verbose       bool                        `koanf:"verbose"`

	// File is the config file the values were read from ("" when none).
	File string `koanf:"-"`
	// Order records the declaration order of maps the file defines.
	Order Order `koanf:"-"`
}

// ConnectionConfig describes one entry of databases_connections.
type ConnectionConfig struct {
	Type     string `koanf:"type"` // postgres, mysql, sqlite, duckdb
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Database string `koanf:"database"` // database name, or file path for sqlite/duckdb
	Schema   string `koanf:"schema"`

	// Additional driver-specific options
	Options map[string]string `koanf:"options"`

	// Params holds backend-specific configuration (e.g., DuckDB extensions, secrets, settings)
	Params map[string]any `koanf:"params"`
}

// DataMigrationConfig configures the migrate command.
type DataMigrationConfig struct {
	BufferSize int    `koanf:"buffer_size"`
	BulkCommit bool   `koanf:"bulk_commit"`
	RulesDir   string `koanf:"rules_dir"`

	// Rules maps rule names to their raw definition. Shapes are validated
	// when the rules are built so errors can name the offending rule.
	Rules map[string]any `koanf:"rules"`
}

// CSVLoaderConfig configures the load command.
type CSVLoaderConfig struct {
	TargetDatabase string          `koanf:"target_database"`
	BufferSize     int             `koanf:"buffer_size"`
	BulkCommit     bool            `koanf:"bulk_commit"`
	Files          []CSVFileConfig `koanf:"csv_files"`
}

// CSVFileConfig describes one CSV file to import.
type CSVFileConfig struct {
	Path                 string         `koanf:"path"`
	TargetTable          string         `koanf:"target_table"`
	Encoding             string         `koanf:"encoding"`
	Delimiter            string         `koanf:"delimiter"`
	QuoteChar            string         `koanf:"quotechar"`
	ReplaceColumnsValues map[string]any `koanf:"replace_columns_values"`
}

// LoggingConfig configures the log sinks.
type LoggingConfig struct {
	Console ConsoleLogConfig `koanf:"console_log"`
	File    *FileLogConfig   `koanf:"file_log"`
}

// ConsoleLogConfig configures the console sink.
type ConsoleLogConfig struct {
	Levels []string `koanf:"levels"`
	Format string   `koanf:"format"` // text or json
}

// FileLogConfig configures the optional append-mode file sink.
type FileLogConfig struct {
	Levels []string `koanf:"levels"`
	Path   string   `koanf:"path"`
	Format string   `koanf:"format"`
}

// Order is the declaration order of the config maps whose order matters.
type Order struct {
	Rules   []string
	Inputs  map[string][]string // rule -> input credential names
	Outputs map[string][]string // rule -> output credential names
}

// Default configuration values.
const (
	DefaultBufferSize = 1000
	DefaultRulesDir   = "rules"
	DefaultStateFile  = ".leapmigrate/state.db"
	DefaultLogFormat  = "text"
)

// DefaultConsoleLevels are the console levels used when none are configured.
var DefaultConsoleLevels = []string{"ERROR", "WARNING", "INFO"}
