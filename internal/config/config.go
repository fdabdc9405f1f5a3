// =============================================================================
// Ledger Reconciliation - Configuration Module
// =============================================================================
//
// Loads the run configuration. The configuration is read once per run and
// never mutated afterwards; every stage receives the same *Config.
//
// SOURCES (later wins):
//   1. Built-in defaults (directories, the seven source categories and the
//      standard layouts)
//   2. The YAML configuration file
//   3. RECON_* environment variables, optionally loaded from a .env file
//      next to the configuration file
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/ledger-recon/internal/join"
	"github.com/ginjaninja78/ledger-recon/internal/schema"
	"github.com/ginjaninja78/ledger-recon/internal/store"
	"github.com/ginjaninja78/ledger-recon/pkg/utils"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// EnvFile is the name of the optional environment file.
const EnvFile = ".env"

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the run configuration.
type Config struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir holds the source exports (xlsx, xls, csv).
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// RawDir receives one columnar file per source export.
	// Default: "./data/raw"
	RawDir string `yaml:"raw_dir"`

	// CleanDir receives the seven cleaned tables.
	// Default: "./data/clean"
	CleanDir string `yaml:"clean_dir"`

	// MixDir receives the joined layouts.
	// Default: "./data/mix"
	MixDir string `yaml:"mix_dir"`

	// ArchiveInputs moves source exports to InputArchiveDir after the raw
	// stage has written them.
	ArchiveInputs   bool   `yaml:"archive_inputs"`
	InputArchiveDir string `yaml:"input_archive_dir"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogFile receives JSON log lines in addition to the console.
	// Empty disables file logging.
	LogFile string `yaml:"log_file"`

	// LogLevel is one of debug, info, warn, error.
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MatchPolicy controls how category patterns find raw files:
	// "substring" or "exact".
	// Default: "substring"
	MatchPolicy string `yaml:"match_policy"`

	// CSVSettings applies to delimited source exports.
	CSVSettings CSVSettings `yaml:"csv_settings"`

	// Categories replaces the built-in source categories when set.
	Categories []schema.Category `yaml:"categories"`

	// Layouts replaces the built-in join layouts when set.
	Layouts []Layout `yaml:"layouts"`
}

// CSVSettings contains settings for parsing delimited source exports.
type CSVSettings struct {
	// Delimiter separates fields. Accepts a character or one of the names
	// "tab", "pipe", "semicolon".
	// Default: ","
	Delimiter string `yaml:"delimiter"`

	// HeaderRows is the number of header rows; multi-row headers are
	// merged column by column.
	// Default: 1
	HeaderRows int `yaml:"header_rows"`

	// DataStartRow is the 1-based row where data begins.
	// Default: HeaderRows + 1
	DataStartRow int `yaml:"data_start_row"`

	// Encoding is the character encoding of the exports, for example
	// "UTF-8", "ISO-8859-1" or "Windows-1252".
	// Default: "UTF-8"
	Encoding string `yaml:"encoding"`
}

// =============================================================================
// LAYOUTS
// =============================================================================

// Layout describes one joined output: a base cleaned table followed by an
// ordered list of joins.
type Layout struct {
	Name string `yaml:"name"`

	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled,omitempty"`

	// Base is the category whose cleaned table is the left side of the
	// first join.
	Base string `yaml:"base"`

	Joins []JoinStep `yaml:"joins"`

	// Formats lists the output formats. Default: delimited and styled.
	Formats []string `yaml:"formats"`

	// RateColumns are written as numbers in styled output.
	RateColumns []string `yaml:"rate_columns"`
}

// JoinStep joins the running result with one more cleaned table.
type JoinStep struct {
	Category string `yaml:"category"`
	LeftKey  string `yaml:"left_key"`
	RightKey string `yaml:"right_key"`

	// Kind is left, inner, right or outer. Default: "left".
	Kind string `yaml:"kind"`
}

// IsEnabled reports whether the layout should be produced.
func (l Layout) IsEnabled() bool {
	return l.Enabled == nil || *l.Enabled
}

func boolPtr(b bool) *bool { return &b }

// DefaultLayouts returns the standard layouts: the deposits layout and the
// disabled payments layout.
func DefaultLayouts() []Layout {
	return []Layout{
		{
			Name:    "Layout_Depósitos",
			Enabled: boolPtr(true),
			Base:    schema.Cobrado,
			Joins: []JoinStep{
				{Category: schema.Clientes, LeftKey: schema.ColMergeKeyAux, RightKey: schema.ColMergeKey, Kind: "left"},
				{Category: schema.Bancos, LeftKey: schema.ColMergeKeyBank, RightKey: schema.ColMergeKey, Kind: "left"},
			},
			Formats:     []string{"delimited", "styled"},
			RateColumns: []string{schema.ColTCReporte},
		},
		{
			Name:    "Layout_Pagos",
			Enabled: boolPtr(false),
			Base:    schema.Acreditable,
			Joins: []JoinStep{
				{Category: schema.Proveedores, LeftKey: schema.ColMergeKeyAux, RightKey: schema.ColMergeKey, Kind: "left"},
				{Category: schema.Bancos, LeftKey: schema.ColMergeKeyBank, RightKey: schema.ColMergeKey, Kind: "left"},
			},
			Formats:     []string{"delimited", "styled"},
			RateColumns: []string{schema.ColTCReporte},
		},
	}
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load loads the configuration from a YAML file.
//
// PARAMETERS:
//   - path: the configuration file. An empty path uses the defaults only.
//
// RETURNS:
//   - The validated configuration, with its directories created.
//   - An error wrapping ErrInvalidConfig when validation fails.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		if err := loadEnvFile(filepath.Join(filepath.Dir(path), EnvFile)); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFile loads an env file if it exists. Variables already set in the
// environment are not overridden.
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// envOverrides maps RECON_* variables to the fields they replace.
func envOverrides(cfg *Config) map[string]*string {
	return map[string]*string{
		"RECON_INPUT_DIR":         &cfg.InputDir,
		"RECON_RAW_DIR":           &cfg.RawDir,
		"RECON_CLEAN_DIR":         &cfg.CleanDir,
		"RECON_MIX_DIR":           &cfg.MixDir,
		"RECON_INPUT_ARCHIVE_DIR": &cfg.InputArchiveDir,
		"RECON_LOG_FILE":          &cfg.LogFile,
		"RECON_LOG_LEVEL":         &cfg.LogLevel,
		"RECON_MATCH_POLICY":      &cfg.MatchPolicy,
		"RECON_CSV_ENCODING":      &cfg.CSVSettings.Encoding,
	}
}

func applyEnvOverrides(cfg *Config) {
	for key, field := range envOverrides(cfg) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*field = v
		}
	}
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(cfg *Config) {
	if cfg.InputDir == "" {
		cfg.InputDir = "./input"
	}
	if cfg.RawDir == "" {
		cfg.RawDir = "./data/raw"
	}
	if cfg.CleanDir == "" {
		cfg.CleanDir = "./data/clean"
	}
	if cfg.MixDir == "" {
		cfg.MixDir = "./data/mix"
	}
	if cfg.InputArchiveDir == "" {
		cfg.InputArchiveDir = "./input_archive"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.MatchPolicy == "" {
		cfg.MatchPolicy = "substring"
	}

	cs := &cfg.CSVSettings
	if cs.Delimiter == "" {
		cs.Delimiter = ","
	}
	if cs.HeaderRows == 0 {
		cs.HeaderRows = 1
	}
	if cs.DataStartRow == 0 {
		cs.DataStartRow = cs.HeaderRows + 1
	}
	if cs.Encoding == "" {
		cs.Encoding = "UTF-8"
	}

	if len(cfg.Categories) == 0 {
		cfg.Categories = schema.DefaultCategories()
	}
	for i := range cfg.Categories {
		c := &cfg.Categories[i]
		if c.CleanName == "" {
			c.CleanName = c.Name
		}
		if c.Pattern == "" {
			c.Pattern = strings.ToUpper(c.Name)
		}
		if c.Mode == "" {
			c.Mode = "keep"
		}
	}

	if len(cfg.Layouts) == 0 {
		cfg.Layouts = DefaultLayouts()
	}
	for i := range cfg.Layouts {
		l := &cfg.Layouts[i]
		if len(l.Formats) == 0 {
			l.Formats = []string{"delimited", "styled"}
		}
		for j := range l.Joins {
			if l.Joins[j].Kind == "" {
				l.Joins[j].Kind = "left"
			}
		}
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate checks the configuration without touching the file system.
// Errors from the enum parsers are kept in the chain so callers can match
// them with errors.Is.
func (c *Config) Validate() error {
	if _, err := store.ParsePolicy(c.MatchPolicy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	if c.CSVSettings.HeaderRows < 1 {
		return invalid("csv_settings.header_rows must be at least 1")
	}
	if c.CSVSettings.DataStartRow <= c.CSVSettings.HeaderRows {
		return invalid("csv_settings.data_start_row must come after the header rows")
	}

	seen := make(map[string]bool, len(c.Categories))
	cleanNames := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		if cat.Name == "" {
			return invalid("category without a name")
		}
		if seen[cat.Name] {
			return invalid("duplicate category %q", cat.Name)
		}
		seen[cat.Name] = true
		if cleanNames[strings.ToLower(cat.CleanName)] {
			return invalid("duplicate clean_name %q", cat.CleanName)
		}
		cleanNames[strings.ToLower(cat.CleanName)] = true
		if _, err := schema.ParseMode(cat.Mode); err != nil {
			return fmt.Errorf("%w: category %q: %w", ErrInvalidConfig, cat.Name, err)
		}
		for _, k := range cat.Keys {
			if k.TruncateSuffix < 0 {
				return invalid("category %q: truncate_suffix must not be negative", cat.Name)
			}
		}
	}

	layouts := make(map[string]bool, len(c.Layouts))
	for _, l := range c.Layouts {
		if l.Name == "" {
			return invalid("layout without a name")
		}
		if layouts[l.Name] {
			return invalid("duplicate layout %q", l.Name)
		}
		layouts[l.Name] = true
		if !seen[l.Base] {
			return invalid("layout %q: unknown base category %q", l.Name, l.Base)
		}
		for _, j := range l.Joins {
			if !seen[j.Category] {
				return invalid("layout %q: unknown join category %q", l.Name, j.Category)
			}
			if j.LeftKey == "" || j.RightKey == "" {
				return invalid("layout %q: join with %q needs left_key and right_key", l.Name, j.Category)
			}
			if _, err := join.ParseKind(j.Kind); err != nil {
				return fmt.Errorf("%w: layout %q: %w", ErrInvalidConfig, l.Name, err)
			}
		}
		for _, f := range l.Formats {
			if _, err := store.ParseFormat(f); err != nil {
				return fmt.Errorf("%w: layout %q: %w", ErrInvalidConfig, l.Name, err)
			}
		}
	}
	return nil
}

// EnsureDirectories creates the stage directories.
func (c *Config) EnsureDirectories() error {
	fm := utils.NewFileManager(c.InputDir, c.InputArchiveDir, c.RawDir, c.CleanDir, c.MixDir)
	fm.ArchiveOnSuccess = c.ArchiveInputs
	return fm.EnsureDirectories()
}

// =============================================================================
// LOOKUPS
// =============================================================================

// Category returns the category with the given name.
func (c *Config) Category(name string) (schema.Category, bool) {
	for _, cat := range c.Categories {
		if cat.Name == name {
			return cat, true
		}
	}
	return schema.Category{}, false
}

// Policy returns the parsed match policy.
func (c *Config) Policy() store.Policy {
	p, err := store.ParsePolicy(c.MatchPolicy)
	if err != nil {
		return store.Substring
	}
	return p
}
