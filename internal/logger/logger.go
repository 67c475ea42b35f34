// Package logger provides structured logging for bargate.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog with store-specific helpers.
type Logger struct {
	zlog zerolog.Logger
	file *os.File // non-nil when RollingFile opened one; closed by Close
}

// Config holds logger configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // pretty-print for development
	Output     io.Writer
	WithCaller bool

	// RollingFile, when true and Output is nil, directs log output to a
	// date-named file opened under TMPDIR (falling back to the working
	// directory), one file per calendar day. This is the minimal
	// file-based logging a single process needs; there is no retention
	// or compression beyond the one-file-per-day naming.
	RollingFile bool
}

// NewLogger creates a new structured logger.
func NewLogger(cfg Config) *Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	var file *os.File
	output := cfg.Output
	if output == nil {
		if cfg.RollingFile {
			if f, err := openRollingFile(); err == nil {
				file = f
				output = f
			}
		}
		if output == nil {
			output = os.Stdout
		}
	}

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	zlog := zerolog.New(output).
		With().
		Timestamp().
		Str("service", "bargate").
		Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}

	return &Logger{zlog: zlog, file: file}
}

// openRollingFile opens (creating if needed) today's log file under
// TMPDIR, or the working directory if TMPDIR is unset.
func openRollingFile() (*os.File, error) {
	dir := os.Getenv("TMPDIR")
	if dir == "" {
		dir = "."
	}
	name := fmt.Sprintf("bargate-%s.log", time.Now().Format("2006-01-02"))
	return os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// Close releases the rolling log file, if one was opened. Safe to call on
// a logger that wasn't configured with RollingFile.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// GetZerolog returns the underlying zerolog logger.
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zlog
}

// Info logs an info message.
func (l *Logger) Info(msg string) *zerolog.Event {
	return l.zlog.Info().Str("msg", msg)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string) *zerolog.Event {
	return l.zlog.Debug().Str("msg", msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string) *zerolog.Event {
	return l.zlog.Warn().Str("msg", msg)
}

// Error logs an error message.
func (l *Logger) Error(msg string) *zerolog.Event {
	return l.zlog.Error().Str("msg", msg)
}

// Fatal logs a fatal message and exits.
func (l *Logger) Fatal(msg string) *zerolog.Event {
	return l.zlog.Fatal().Str("msg", msg)
}

// WithFields returns a logger with additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zlog.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zlog: ctx.Logger()}
}

// StoreLogger returns a logger scoped to a named store operation.
func (l *Logger) StoreLogger(operation string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "store").
			Str("operation", operation).
			Logger(),
	}
}

// LogStoreOperation logs a store operation's outcome with structured
// fields, matching the duration/error shape used throughout this package.
func (l *Logger) LogStoreOperation(operation string, duration time.Duration, err error) {
	event := l.zlog.Debug().
		Str("component", "store").
		Str("operation", operation).
		Dur("duration_ms", duration)

	if err != nil {
		event = l.zlog.Error().
			Str("component", "store").
			Str("operation", operation).
			Dur("duration_ms", duration).
			Err(err)
	}

	event.Msg("store operation completed")
}

// LogStoreOpen logs a store being created or reopened.
func (l *Logger) LogStoreOpen(path string, branch int, created bool) {
	l.zlog.Info().
		Str("event", "store_open").
		Str("path", path).
		Int("branch", branch).
		Bool("created", created).
		Msg("store opened")
}

// LogRecovery logs write-ahead log replay at startup.
func (l *Logger) LogRecovery(path string, recordsReplayed int) {
	l.zlog.Info().
		Str("event", "wal_recovery").
		Str("path", path).
		Int("records_replayed", recordsReplayed).
		Msg("write-ahead log replayed")
}

// LogCheckpoint logs a flush-to-disk checkpoint.
func (l *Logger) LogCheckpoint(dirtyNodes int, freedNodes int, duration time.Duration) {
	l.zlog.Debug().
		Str("event", "checkpoint").
		Int("dirty_nodes", dirtyNodes).
		Int("freed_nodes", freedNodes).
		Dur("duration_ms", duration).
		Msg("checkpoint flushed")
}

// LogTreeInfo logs a summary of the tree's shape at debug level.
func (l *Logger) LogTreeInfo(path string, branch int, nodeCount int) {
	l.zlog.Debug().
		Str("path", path).
		Int("branch", branch).
		Int("node_count", nodeCount).
		Msg("tree info")
}

// LogShutdown logs store teardown.
func (l *Logger) LogShutdown(path string) {
	l.zlog.Info().
		Str("event", "store_shutdown").
		Str("path", path).
		Msg("store closed")
}

// Global logger instance.
var globalLogger *Logger

// InitGlobalLogger initializes the global logger.
func InitGlobalLogger(cfg Config) {
	globalLogger = NewLogger(cfg)
	log.Logger = *globalLogger.GetZerolog()
}

// GetGlobalLogger returns the global logger instance.
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		InitGlobalLogger(Config{
			Level:  "info",
			Pretty: true,
		})
	}
	return globalLogger
}
