// Package logging builds the application's zap logger: a tee of console
// output (human-readable in dev mode, JSON otherwise) and a JSON log file
// with lumberjack rotation.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates the application logger.
//
// isDevelopment selects colored console output at debug level; production
// mode emits JSON at info level (overridable via the LOG_LEVEL environment
// variable). logFilePath receives JSON entries with rotation per
// DefaultFileWriterConfig (100MB, 5 backups, 30 days, compressed).
func New(isDevelopment bool, logFilePath string) (*zap.Logger, error) {
	return NewWithConfig(isDevelopment, logFilePath, DefaultFileWriterConfig())
}

// NewWithConfig creates the application logger with custom file rotation.
func NewWithConfig(isDevelopment bool, logFilePath string, fileConfig FileWriterConfig) (*zap.Logger, error) {
	defaultLevel := zapcore.InfoLevel
	if isDevelopment {
		defaultLevel = zapcore.DebugLevel
	}
	level := ParseLogLevel("LOG_LEVEL", defaultLevel)

	fileWriter := NewFileWriterWithConfig(logFilePath, fileConfig)
	core := NewMultiCore(level, fileWriter, isDevelopment)

	return zap.New(core, zap.AddCaller()), nil
}
