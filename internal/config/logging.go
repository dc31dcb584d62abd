package config

import "simatest/internal/logging"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
	File   string `yaml:"file"`   // empty means stderr
}

// Options converts to logging.Options. verbose forces debug.
func (c LoggingConfig) Options(verbose bool) logging.Options {
	opts := logging.Options{Level: c.Level, Format: c.Format, File: c.File}
	if verbose {
		opts.Level = "debug"
	}
	return opts
}
