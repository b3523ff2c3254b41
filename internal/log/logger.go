package log

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Fields contains key-value pairs of structured logging fields.
type Fields = logrus.Fields

// Logger is the logging interface used throughout stemma.
type Logger interface {
	WithField(key string, value any) Logger
	WithFields(fields Fields) Logger
	WithError(err error) Logger

	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// LogrusLogger is an implementation of the Logger interface that is implemented
// via a logrus.Entry.
type LogrusLogger struct {
	entry *logrus.Entry
}

// FromLogrusEntry constructs a new logger from a logrus.Entry.
func FromLogrusEntry(entry *logrus.Entry) LogrusLogger {
	return LogrusLogger{entry: entry}
}

// WithField creates a new logger with the given field appended.
func (l LogrusLogger) WithField(key string, value any) Logger {
	return LogrusLogger{entry: l.entry.WithField(key, value)}
}

// WithFields creates a new logger with the given fields appended.
func (l LogrusLogger) WithFields(fields Fields) Logger {
	return LogrusLogger{entry: l.entry.WithFields(fields)}
}

// WithError creates a new logger with an appended error field.
func (l LogrusLogger) WithError(err error) Logger {
	return LogrusLogger{entry: l.entry.WithError(err)}
}

// Debug writes a log message at debug level.
func (l LogrusLogger) Debug(msg string) {
	l.entry.Debug(msg)
}

// Info writes a log message at info level.
func (l LogrusLogger) Info(msg string) {
	l.entry.Info(msg)
}

// Warn writes a log message at warning level.
func (l LogrusLogger) Warn(msg string) {
	l.entry.Warn(msg)
}

// Error writes a log message at error level.
func (l LogrusLogger) Error(msg string) {
	l.entry.Error(msg)
}

// Discard returns a logger that does not log anything.
func Discard() Logger {
	logger := newLogger()
	logger.Out = io.Discard
	return FromLogrusEntry(logrus.NewEntry(logger))
}
