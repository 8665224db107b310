package internal

import (
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/lumberjack/v2"
)

var logger = loggo.GetLogger("scb")

// Logger is the subset of loggo.Logger the backup components log through.
type Logger interface {
	Errorf(message string, args ...any)
	Warningf(message string, args ...any)
	Infof(message string, args ...any)
	Debugf(message string, args ...any)
}

// LogConfig controls logger levels and the optional rotating log file.
type LogConfig struct {
	// Levels is a loggo spec such as "<root>=INFO;scb.transport=DEBUG".
	Levels string `yaml:"levels"`
	// File, when set, replaces stderr output with a rotated log file.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// ConfigureLogging applies cfg to the default loggo context.
func ConfigureLogging(cfg LogConfig) error {
	if cfg.Levels != "" {
		if err := loggo.ConfigureLoggers(cfg.Levels); err != nil {
			return errors.Annotatef(err, "log levels %q", cfg.Levels)
		}
	}
	if cfg.File == "" {
		return nil
	}
	size := cfg.MaxSizeMB
	if size <= 0 {
		size = 10
	}
	out := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    size,
		MaxBackups: cfg.MaxBackups,
	}
	if _, err := loggo.ReplaceDefaultWriter(loggo.NewSimpleWriter(out, loggo.DefaultFormatter)); err != nil {
		return errors.Annotatef(err, "log file %s", cfg.File)
	}
	logger.Debugf("logging to %s", cfg.File)
	return nil
}

// childLogger returns l when set, otherwise a logger under the scb module.
func childLogger(l Logger, name string) Logger {
	if l != nil {
		return l
	}
	return loggo.GetLogger("scb." + name)
}
