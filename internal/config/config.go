package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"simatest/internal/logging"
	"simatest/internal/runner"
	"simatest/internal/store/sqldriver"
	"simatest/internal/tactile/python"
	"simatest/internal/workspace"
)

// FileName is the per-project config file, relative to the project root.
const FileName = ".simatest.yaml"

// Config holds all simatest configuration.
type Config struct {
	// Project root discovery
	Project ProjectConfig `yaml:"project"`

	// Interpreter and doctest driver
	Python PythonConfig `yaml:"python"`

	// Modules to test, in run order
	Targets []TargetConfig `yaml:"targets"`

	// Subprocess settings
	Execution ExecutionConfig `yaml:"execution"`

	History HistoryConfig `yaml:"history"`
	Watch   WatchConfig   `yaml:"watch"`
	Logging LoggingConfig `yaml:"logging"`
}

// ProjectConfig configures root resolution. The root is found before
// <root>/.simatest.yaml can be read, so these settings take effect only from
// a file passed with --config; discovery otherwise uses the defaults.
type ProjectConfig struct {
	Marker    string `yaml:"marker"`
	MaxAscend int    `yaml:"max_ascend"`
}

// PythonConfig configures how test modules are launched.
type PythonConfig struct {
	Interpreter    string `yaml:"interpreter"` // path, name on PATH, or "auto"
	DoctestModule  string `yaml:"doctest_module"`
	SelfHostMarker string `yaml:"self_host_marker"`
}

// TargetConfig is one configured test module.
type TargetConfig struct {
	Name string `yaml:"name,omitempty"`
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

// HistoryConfig configures the run history database.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Driver  string `yaml:"driver"` // sqlite, sqlite3
	Path    string `yaml:"path"`
}

// WatchConfig configures `simatest watch`.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// DefaultTargets are the CAM-SIMA doctest and unittest modules.
func DefaultTargets() []TargetConfig {
	return []TargetConfig{
		{Name: "cam_config_classes", Kind: "doctest", Path: "cime_config/cam_config_classes.py"},
		{Name: "cam_config", Kind: "doctest", Path: "cime_config/cam_config.py"},
		{Name: "generate_registry_data", Kind: "doctest", Path: "src/data/generate_registry_data.py"},
		{Name: "cam_config_unit_tests", Kind: "unittest", Path: "test/unit/cam_config_unit_tests.py"},
		{Name: "test_registry", Kind: "unittest", Path: "test/unit/test_registry.py"},
		{Name: "write_init_unit_tests", Kind: "unittest", Path: "test/unit/write_init_unit_tests.py"},
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Project: ProjectConfig{
			Marker:    workspace.DefaultMarker,
			MaxAscend: workspace.DefaultMaxAscend,
		},

		Python: PythonConfig{
			Interpreter:    "python3",
			DoctestModule:  "doctest",
			SelfHostMarker: runner.DefaultSelfHostMarker,
		},

		Targets: DefaultTargets(),

		Execution: ExecutionConfig{
			Timeout:        "0s",
			MaxOutputBytes: 10 * 1024 * 1024,
			StrictExit:     false,
		},

		History: HistoryConfig{
			Enabled: false,
			Driver:  sqldriver.SQLite,
			Path:    filepath.Join(".simatest", "history.db"),
		},

		Watch: WatchConfig{
			Debounce: "500ms",
		},

		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// DefaultPath returns the config file location for a project root.
func DefaultPath(root string) string {
	return filepath.Join(root, FileName)
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		logging.Get(logging.CategoryConfig).Debugf("loaded config from %s", path)
	} else {
		logging.Get(logging.CategoryConfig).Debugf("no config at %s, using defaults", path)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// LoadDotEnv loads root/.env into the process environment. Variables that
// are already set keep their values. A missing file is not an error.
func LoadDotEnv(root string) error {
	path := filepath.Join(root, ".env")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	logging.Get(logging.CategoryConfig).Debugf("loaded environment from %s", path)
	return nil
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
	if v := os.Getenv("SIMATEST_PYTHON"); v != "" {
		c.Python.Interpreter = v
	}
	if v := os.Getenv("SIMATEST_STRICT_EXIT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Execution.StrictExit = b
		} else {
			logging.Get(logging.CategoryConfig).Warnf("ignoring SIMATEST_STRICT_EXIT=%q: %v", v, err)
		}
	}
	// Naming a database turns history on.
	if v := os.Getenv("SIMATEST_HISTORY_DB"); v != "" {
		c.History.Path = v
		c.History.Enabled = true
	}
	if v := os.Getenv("SIMATEST_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SIMATEST_TIMEOUT"); v != "" {
		c.Execution.Timeout = v
	}
}

// GetTimeout returns the per-target timeout. Zero means none.
func (c *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.Timeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// GetDebounce returns the watch debounce window.
func (c *Config) GetDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// HistoryPath resolves the history database path against root.
func (c *Config) HistoryPath(root string) string {
	if filepath.IsAbs(c.History.Path) {
		return c.History.Path
	}
	return filepath.Join(root, c.History.Path)
}

// InterpreterCandidates returns the interpreters to try, in order.
func (c *Config) InterpreterCandidates() []string {
	return python.Candidates(c.Python.Interpreter)
}

// RunnerTargets converts the configured targets. A target without a name
// is named after its file.
func (c *Config) RunnerTargets() ([]runner.Target, error) {
	targets := make([]runner.Target, 0, len(c.Targets))
	for i, t := range c.Targets {
		kind, err := runner.ParseKind(t.Kind)
		if err != nil {
			return nil, fmt.Errorf("targets[%d]: %w", i, err)
		}
		name := t.Name
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(t.Path), ".py")
		}
		targets = append(targets, runner.Target{
			Name: name,
			Kind: kind,
			Path: filepath.ToSlash(t.Path),
		})
	}
	return targets, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Project.Marker == "" {
		errs = append(errs, errors.New("project.marker must not be empty"))
	}
	if c.Project.MaxAscend < 0 {
		errs = append(errs, fmt.Errorf("project.max_ascend must be >= 0, got %d", c.Project.MaxAscend))
	}
	if c.Python.Interpreter == "" {
		errs = append(errs, errors.New("python.interpreter must not be empty"))
	}

	if len(c.Targets) == 0 {
		errs = append(errs, errors.New("at least one target is required"))
	}
	names := make(map[string]bool)
	for i, t := range c.Targets {
		if strings.TrimSpace(t.Path) == "" {
			errs = append(errs, fmt.Errorf("targets[%d]: path must not be empty", i))
		}
		if _, err := runner.ParseKind(t.Kind); err != nil {
			errs = append(errs, fmt.Errorf("targets[%d]: %w", i, err))
		}
		if t.Name != "" {
			if names[t.Name] {
				errs = append(errs, fmt.Errorf("targets[%d]: duplicate name %q", i, t.Name))
			}
			names[t.Name] = true
		}
	}

	if _, err := time.ParseDuration(c.Execution.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("execution.timeout: %w", err))
	}
	if c.Execution.MaxOutputBytes < 0 {
		errs = append(errs, fmt.Errorf("execution.max_output_bytes must be >= 0, got %d", c.Execution.MaxOutputBytes))
	}
	for _, kv := range c.Execution.Env {
		if !strings.Contains(kv, "=") {
			errs = append(errs, fmt.Errorf("execution.env: %q is not KEY=VALUE", kv))
		}
	}

	if !sqldriver.Valid(c.History.Driver) {
		errs = append(errs, fmt.Errorf("history.driver: unsupported driver %q (valid: %s, %s)",
			c.History.Driver, sqldriver.SQLite, sqldriver.SQLite3))
	}
	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, errors.New("history.path must be set when history is enabled"))
	}

	if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
		errs = append(errs, fmt.Errorf("watch.debounce: %w", err))
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if f := c.Logging.Format; f != "" && f != "console" && f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q", f))
	}

	return errors.Join(errs...)
}
