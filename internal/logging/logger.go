// Package logging provides categorized structured logging for simatest.
// Every category is a named child of one zap logger. Logs go to stderr (or a
// configured file) so the test report on stdout stays byte-exact.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup, root resolution
	CategoryConfig  Category = "config"  // Config loading and overrides
	CategoryRunner  Category = "runner"  // Suite and per-target runs
	CategoryTactile Category = "tactile" // Subprocess execution
	CategoryStore   Category = "store"   // Run history persistence
	CategoryWatch   Category = "watch"   // File watching
)

// Options controls how the root logger is built.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // console, json
	File   string // optional log file; empty means stderr
}

var (
	mu     sync.RWMutex
	root   = zap.NewNop()
	level  = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	output zapcore.WriteSyncer
	// logFile is the open log file, if any. It is closed when the root
	// logger is replaced.
	logFile *os.File
)

// Initialize builds the root logger. It may be called more than once; the
// last call wins.
func Initialize(opts Options) error {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch strings.ToLower(opts.Format) {
	case "", "console", "text":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return fmt.Errorf("unknown log format %q", opts.Format)
	}

	ws := zapcore.Lock(os.Stderr)
	var f *os.File
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err = os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		ws = zapcore.Lock(f)
	}

	mu.Lock()
	defer mu.Unlock()
	level.SetLevel(lvl)
	closeLogFile()
	output = ws
	logFile = f
	root = zap.New(zapcore.NewCore(enc, ws, level))
	return nil
}

// closeLogFile flushes and closes the current log file. Callers hold mu.
func closeLogFile() {
	if logFile == nil {
		return
	}
	_ = root.Sync()
	_ = logFile.Close()
	logFile = nil
	output = nil
}

// SetLogger replaces the root logger. Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	closeLogFile()
	root = l
}

// ParseLevel maps a config level name to a zap level. Empty means warn.
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return zapcore.WarnLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.WarnLevel, fmt.Errorf("unknown log level %q", name)
}

// L returns the root logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// Get returns the sugared logger for a category.
func Get(category Category) *zap.SugaredLogger {
	return L().Named(string(category)).Sugar()
}

// Sync flushes buffered log entries.
func Sync() {
	mu.RLock()
	l, ws := root, output
	mu.RUnlock()
	_ = l.Sync()
	if ws != nil {
		_ = ws.Sync()
	}
}

// Timer logs the duration of an operation at debug level when stopped.
type Timer struct {
	category  Category
	operation string
	start     time.Time
}

// StartTimer starts a Timer for the given operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, operation: operation, start: time.Now()}
}

// Stop logs the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debugw("operation finished", "op", t.operation, "elapsed", elapsed)
	return elapsed
}

// Convenience helpers, one set per hot category.

func Runner(format string, args ...interface{}) { Get(CategoryRunner).Infof(format, args...) }
func RunnerDebug(format string, args ...interface{}) { Get(CategoryRunner).Debugf(format, args...) }
func RunnerWarn(format string, args ...interface{}) { Get(CategoryRunner).Warnf(format, args...) }

func TactileDebug(format string, args ...interface{}) { Get(CategoryTactile).Debugf(format, args...) }
func TactileWarn(format string, args ...interface{}) { Get(CategoryTactile).Warnf(format, args...) }
func TactileError(format string, args ...interface{}) { Get(CategoryTactile).Errorf(format, args...) }

func Store(format string, args ...interface{}) { Get(CategoryStore).Infof(format, args...) }
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debugf(format, args...) }

func Watch(format string, args ...interface{}) { Get(CategoryWatch).Infof(format, args...) }
func WatchDebug(format string, args ...interface{}) { Get(CategoryWatch).Debugf(format, args...) }
