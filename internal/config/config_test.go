package config

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simatest/internal/runner"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SIMATEST_PYTHON", "SIMATEST_STRICT_EXIT", "SIMATEST_HISTORY_DB",
		"SIMATEST_LOG_LEVEL", "SIMATEST_TIMEOUT",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "cime_config", cfg.Project.Marker)
	assert.Equal(t, 1, cfg.Project.MaxAscend)
	assert.Equal(t, "python3", cfg.Python.Interpreter)
	assert.Equal(t, "doctest.testmod", cfg.Python.SelfHostMarker)
	assert.False(t, cfg.Execution.StrictExit)
	assert.Equal(t, time.Duration(0), cfg.GetTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.GetDebounce())

	targets, err := cfg.RunnerTargets()
	require.NoError(t, err)
	require.Len(t, targets, 6)
	for i, target := range targets {
		want := runner.KindDoctest
		if i >= 3 {
			want = runner.KindUnittest
		}
		assert.Equal(t, want, target.Kind, target.Path)
	}
	assert.Equal(t, "cime_config/cam_config_classes.py", targets[0].Path)
	assert.Equal(t, "test/unit/write_init_unit_tests.py", targets[5].Path)
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sub", FileName)

	cfg := DefaultConfig()
	cfg.Python.Interpreter = "/opt/python/bin/python3.11"
	cfg.Execution.Timeout = "90s"
	cfg.Targets = []TargetConfig{{Kind: "unittest", Path: "test/unit/only.py"}}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/python/bin/python3.11", loaded.Python.Interpreter)
	assert.Equal(t, 90*time.Second, loaded.GetTimeout())
	require.Len(t, loaded.Targets, 1)

	targets, err := loaded.RunnerTargets()
	require.NoError(t, err)
	assert.Equal(t, "only", targets[0].Name)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("execution:\n  strict_exit: true\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Execution.StrictExit)
	assert.Len(t, cfg.Targets, 6)
	assert.Equal(t, "doctest", cfg.Python.DoctestModule)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("targets: [unclosed\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SIMATEST_PYTHON", "auto")
	t.Setenv("SIMATEST_STRICT_EXIT", "true")
	t.Setenv("SIMATEST_HISTORY_DB", "/tmp/simatest-history.db")
	t.Setenv("SIMATEST_LOG_LEVEL", "debug")
	t.Setenv("SIMATEST_TIMEOUT", "2m")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "auto", cfg.Python.Interpreter)
	assert.True(t, cfg.Execution.StrictExit)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "/tmp/simatest-history.db", cfg.HistoryPath("/ignored"))
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 2*time.Minute, cfg.GetTimeout())
	assert.Equal(t, []string{"python3", "python"}, cfg.InterpreterCandidates())
}

func TestConfig_EnvOverrideBadBool(t *testing.T) {
	clearEnv(t)
	t.Setenv("SIMATEST_STRICT_EXIT", "maybe")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	assert.False(t, cfg.Execution.StrictExit)
}

func TestLoadDotEnv(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, LoadDotEnv(root), "missing .env is fine")

	env := "SIMATEST_DOTENV_NEW=from-file\nSIMATEST_DOTENV_SET=from-file\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte(env), 0644))

	t.Setenv("SIMATEST_DOTENV_SET", "from-shell")
	t.Setenv("SIMATEST_DOTENV_NEW", "")
	require.NoError(t, os.Unsetenv("SIMATEST_DOTENV_NEW"))

	require.NoError(t, LoadDotEnv(root))
	assert.Equal(t, "from-file", os.Getenv("SIMATEST_DOTENV_NEW"))
	assert.Equal(t, "from-shell", os.Getenv("SIMATEST_DOTENV_SET"))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"no targets", func(c *Config) { c.Targets = nil }, "at least one target"},
		{"bad kind", func(c *Config) { c.Targets[0].Kind = "pytest" }, "targets[0]"},
		{"empty path", func(c *Config) { c.Targets[1].Path = " " }, "targets[1]: path"},
		{"duplicate name", func(c *Config) { c.Targets[1].Name = c.Targets[0].Name }, "duplicate name"},
		{"bad timeout", func(c *Config) { c.Execution.Timeout = "soon" }, "execution.timeout"},
		{"bad env", func(c *Config) { c.Execution.Env = []string{"NOEQUALS"} }, "execution.env"},
		{"bad driver", func(c *Config) { c.History.Driver = "postgres" }, "history.driver"},
		{"bad debounce", func(c *Config) { c.Watch.Debounce = "later" }, "watch.debounce"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"empty marker", func(c *Config) { c.Project.Marker = "" }, "project.marker"},
		{"negative ascend", func(c *Config) { c.Project.MaxAscend = -1 }, "project.max_ascend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_HistoryPathRelative(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, filepath.Join("/src/CAM-SIMA", ".simatest", "history.db"), cfg.HistoryPath("/src/CAM-SIMA"))
}

func TestLoggingConfig_Options(t *testing.T) {
	lc := LoggingConfig{Level: "warn", Format: "json", File: "x.log"}
	assert.Equal(t, "warn", lc.Options(false).Level)
	opts := lc.Options(true)
	assert.Equal(t, "debug", opts.Level)
	assert.Equal(t, "json", opts.Format)
	assert.Equal(t, "x.log", opts.File)
}

// Config is imported by every command; it must not link the SQLite drivers.
func TestConfigDoesNotImportDrivers(t *testing.T) {
	files, err := filepath.Glob("*.go")
	require.NoError(t, err)

	fset := token.NewFileSet()
	for _, name := range files {
		if strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, name, nil, parser.ImportsOnly)
		require.NoError(t, err)
		for _, imp := range f.Imports {
			path, err := strconv.Unquote(imp.Path.Value)
			require.NoError(t, err)
			assert.NotEqual(t, "simatest/internal/store", path, name)
			assert.NotContains(t, path, "sqlite", name)
		}
	}
}
