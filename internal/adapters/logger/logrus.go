package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogrusLogger implements the ports.Logger interface on top of logrus.
type LogrusLogger struct {
	entry *logrus.Logger
}

// ParseLevel converts a string level to a logrus level.
func ParseLevel(levelStr string) logrus.Level {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return logrus.DebugLevel
	case "INFO":
		return logrus.InfoLevel
	case "WARN", "WARNING":
		return logrus.WarnLevel
	case "ERROR":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel // Default to Info
	}
}

// New creates a logger writing text lines with full timestamps to os.Stderr.
func New(level string) *LogrusLogger {
	return NewWithOutput(level, os.Stderr)
}

// NewWithOutput creates a logger writing to out.
func NewWithOutput(level string, out io.Writer) *LogrusLogger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(ParseLevel(level))
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &LogrusLogger{entry: l}
}

// Logrus exposes the underlying logger for libraries that accept one.
func (l *LogrusLogger) Logrus() *logrus.Logger {
	return l.entry
}

func (l *LogrusLogger) with(fields []map[string]interface{}) *logrus.Entry {
	e := logrus.NewEntry(l.entry)
	for _, f := range fields {
		if f != nil {
			e = e.WithFields(logrus.Fields(f))
		}
	}
	return e
}

// Debug logs a message at Debug level.
func (l *LogrusLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.with(fields).WithContext(ctx).Debug(msg)
}

// Info logs a message at Info level.
func (l *LogrusLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.with(fields).WithContext(ctx).Info(msg)
}

// Warn logs a message at Warning level.
func (l *LogrusLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.with(fields).WithContext(ctx).Warn(msg)
}

// Error logs an error message at Error level.
func (l *LogrusLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	l.with(fields).WithContext(ctx).WithError(err).Error(msg)
}
