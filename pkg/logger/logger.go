// Package logger wraps logrus with the field-oriented, component-scoped
// logging convention used throughout screentimed: every call site passes
// alternating key/value pairs instead of building its own formatted
// string.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the structured logging contract every component depends on.
// Components take this interface, not *Logger, so tests can substitute a
// no-op or capturing implementation.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	With(component string) Logger
}

// Config controls level, format, and output destination.
type Config struct {
	Level      string // debug|info|warn|error
	Format     string // json|text
	OutputFile string // empty means stdout only
}

type logrusLogger struct {
	entry *logrus.Entry
}

// New builds a Logger from cfg, scoped to component.
func New(component string, cfg Config) Logger {
	base := logrus.New()
	base.SetLevel(parseLevel(cfg.Level))

	if strings.EqualFold(cfg.Format, "json") {
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	base.SetOutput(outputFor(cfg.OutputFile))

	return &logrusLogger{entry: base.WithField("component", component)}
}

func outputFor(path string) io.Writer {
	if path == "" {
		return os.Stdout
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return os.Stdout
	}
	return io.MultiWriter(os.Stdout, f)
}

func parseLevel(level string) logrus.Level {
	lv, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return logrus.InfoLevel
	}
	return lv
}

func (l *logrusLogger) withFields(fields []interface{}) *logrus.Entry {
	if len(fields) == 0 {
		return l.entry
	}
	kv := make(logrus.Fields, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		kv[key] = fields[i+1]
	}
	return l.entry.WithFields(kv)
}

func (l *logrusLogger) Debug(msg string, fields ...interface{}) { l.withFields(fields).Debug(msg) }
func (l *logrusLogger) Info(msg string, fields ...interface{})  { l.withFields(fields).Info(msg) }
func (l *logrusLogger) Warn(msg string, fields ...interface{})  { l.withFields(fields).Warn(msg) }
func (l *logrusLogger) Error(msg string, fields ...interface{}) { l.withFields(fields).Error(msg) }
func (l *logrusLogger) Fatal(msg string, fields ...interface{}) { l.withFields(fields).Fatal(msg) }

// With returns a logger scoped to a sub-component, preserving the parent's
// level/format/output.
func (l *logrusLogger) With(component string) Logger {
	return &logrusLogger{entry: l.entry.WithField("component", component)}
}

// NewNop returns a Logger that discards everything, for tests that need
// to satisfy the interface without asserting on log output.
func NewNop() Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	return &logrusLogger{entry: logrus.NewEntry(base)}
}
