package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"contigscreen/internal/catalog"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = "contigscreen.yaml"

// Config holds all contigscreen configuration.
type Config struct {
	// External screening tool
	Scanner ScannerConfig `yaml:"scanner"`

	// Input recognition
	Input InputConfig `yaml:"input"`

	// Output layout
	Output OutputConfig `yaml:"output"`

	// Logging sinks
	Logging LoggingConfig `yaml:"logging"`

	// Worker pools per phase
	Concurrency ConcurrencyConfig `yaml:"concurrency"`

	// Run history database
	Ledger LedgerConfig `yaml:"ledger"`

	// Watch mode
	Watch WatchConfig `yaml:"watch"`

	// Category -> databases, in screening order
	Catalog []catalog.Entry `yaml:"catalog"`
}

// ScannerConfig configures the external screening tool.
type ScannerConfig struct {
	Binary         string   `yaml:"binary"`           // abricate
	SetupBinary    string   `yaml:"setup_binary"`     // abricate-get_db
	Timeout        string   `yaml:"timeout"`          // per scan/summary invocation
	SetupTimeout   string   `yaml:"setup_timeout"`    // per database setup
	SlowScan       string   `yaml:"slow_scan"`        // warn when one scan exceeds this
	MinIdentity    float64  `yaml:"min_identity"`     // --minid, 0 = tool default
	MinCoverage    float64  `yaml:"min_coverage"`     // --mincov, 0 = tool default
	Threads        int      `yaml:"threads"`          // --threads, 0 = tool default
	MaxOutputBytes int64    `yaml:"max_output_bytes"` // cap on captured stdout
	AllowedEnv     []string `yaml:"allowed_env"`      // variables passed to the tool
}

// InputConfig configures sample discovery.
type InputConfig struct {
	Suffix string `yaml:"suffix"`
}

// OutputConfig configures where results land.
type OutputConfig struct {
	Root     string `yaml:"root"`
	Manifest string `yaml:"manifest"` // relative to Root unless absolute
}

// LedgerConfig configures the run history database. An empty path disables it.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Scanner: ScannerConfig{
			Binary:         "abricate",
			SetupBinary:    "abricate-get_db",
			Timeout:        "30m",
			SetupTimeout:   "1h",
			SlowScan:       "10m",
			MaxOutputBytes: 256 * 1024 * 1024,
			AllowedEnv:     []string{"PATH", "HOME", "USER", "LANG", "LC_ALL", "TMPDIR", "CONDA_PREFIX", "PERL5LIB"},
		},
		Input: InputConfig{
			Suffix: ".fasta",
		},
		Output: OutputConfig{
			Root:     ".",
			Manifest: "sample_manifest.txt",
		},
		Logging: LoggingConfig{
			InfoFile:  "screening.log",
			ErrorFile: "screening_errors.log",
			Level:     "info",
			Format:    "text",
		},
		Concurrency: ConcurrencyConfig{
			Setup:     1,
			Scans:     1,
			Summaries: 1,
		},
		Watch: WatchConfig{
			Debounce: "2s",
		},
		Catalog: catalog.DefaultEntries(),
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if bin := os.Getenv("CONTIGSCREEN_SCANNER"); bin != "" {
		c.Scanner.Binary = bin
	}
	if root := os.Getenv("CONTIGSCREEN_OUTPUT"); root != "" {
		c.Output.Root = root
	}
	if path := os.Getenv("CONTIGSCREEN_LEDGER"); path != "" {
		c.Ledger.Path = path
	}
	if level := os.Getenv("CONTIGSCREEN_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if workers := os.Getenv("CONTIGSCREEN_SCAN_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil && n > 0 {
			c.Concurrency.Scans = n
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Scanner.Binary) == "" {
		return fmt.Errorf("scanner.binary must be set")
	}
	if strings.TrimSpace(c.Scanner.SetupBinary) == "" {
		return fmt.Errorf("scanner.setup_binary must be set")
	}
	for name, value := range map[string]string{
		"scanner.timeout":       c.Scanner.Timeout,
		"scanner.setup_timeout": c.Scanner.SetupTimeout,
		"watch.debounce":        c.Watch.Debounce,
	} {
		if value == "" {
			continue
		}
		if d, err := time.ParseDuration(value); err != nil || d < 0 {
			return fmt.Errorf("%s: invalid duration %q", name, value)
		}
	}
	if c.Scanner.MinIdentity < 0 || c.Scanner.MinIdentity > 100 {
		return fmt.Errorf("scanner.min_identity must be within 0-100")
	}
	if c.Scanner.MinCoverage < 0 || c.Scanner.MinCoverage > 100 {
		return fmt.Errorf("scanner.min_coverage must be within 0-100")
	}
	if c.Scanner.Threads < 0 {
		return fmt.Errorf("scanner.threads must be non-negative")
	}

	if c.Input.Suffix == "" || strings.ContainsRune(c.Input.Suffix, filepath.Separator) {
		return fmt.Errorf("input.suffix must be a non-empty file name suffix")
	}
	if c.Output.Root == "" {
		return fmt.Errorf("output.root must be set")
	}
	if c.Output.Manifest == "" {
		return fmt.Errorf("output.manifest must be set")
	}

	if err := c.Concurrency.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}

	if _, err := catalog.New(c.Catalog...); err != nil {
		return err
	}

	return nil
}

// BuildCatalog returns the validated, immutable catalog.
func (c *Config) BuildCatalog() (*catalog.Catalog, error) {
	return catalog.New(c.Catalog...)
}

// ManifestPath returns the manifest location.
func (c *Config) ManifestPath() string {
	if filepath.IsAbs(c.Output.Manifest) {
		return c.Output.Manifest
	}
	return filepath.Join(c.Output.Root, c.Output.Manifest)
}

// GetScanTimeout returns the per-invocation scan timeout.
func (c *Config) GetScanTimeout() time.Duration {
	return parseDurationOr(c.Scanner.Timeout, 30*time.Minute)
}

// GetSetupTimeout returns the per-database setup timeout.
func (c *Config) GetSetupTimeout() time.Duration {
	return parseDurationOr(c.Scanner.SetupTimeout, time.Hour)
}

// GetSlowScanThreshold returns the duration above which a scan is logged as slow.
func (c *Config) GetSlowScanThreshold() time.Duration {
	return parseDurationOr(c.Scanner.SlowScan, 10*time.Minute)
}

// GetWatchDebounce returns the watch-mode settle time.
func (c *Config) GetWatchDebounce() time.Duration {
	return parseDurationOr(c.Watch.Debounce, 2*time.Second)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
