package log

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// LogTimestampFormatUTC defines the timestamp format for logs where timestamps
// are normalized to UTC.
const LogTimestampFormatUTC = "2006-01-02T15:04:05.000Z"

const (
	// FormatJSON writes logs in JSON format.
	FormatJSON = "json"
	// FormatText writes logs in human-readable text format.
	FormatText = "text"
)

// UTCJsonFormatter returns a JSON formatter with UTC timestamps.
func UTCJsonFormatter() logrus.Formatter {
	return &logrus.JSONFormatter{TimestampFormat: LogTimestampFormatUTC}
}

// UTCTextFormatter returns a text formatter with UTC timestamps.
func UTCTextFormatter() logrus.Formatter {
	return &logrus.TextFormatter{TimestampFormat: LogTimestampFormatUTC}
}

func newLogger() *logrus.Logger {
	return &logrus.Logger{
		Out:       io.Discard,
		Formatter: UTCTextFormatter(),
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.InfoLevel,
		ExitFunc:  func(int) {},
	}
}

// Configure creates a new logger writing to the given writer with the
// requested format ("json" or "text") and level. An empty level defaults to
// info.
func Configure(out io.Writer, format, level string, hooks ...logrus.Hook) (Logger, error) {
	logger := newLogger()
	if err := configure(logger, out, format, level, hooks...); err != nil {
		return nil, err
	}

	return FromLogrusEntry(logrus.NewEntry(logger)), nil
}

func configure(logger *logrus.Logger, out io.Writer, format, level string, hooks ...logrus.Hook) error {
	switch format {
	case FormatJSON:
		logger.Formatter = UTCJsonFormatter()
	case FormatText:
		logger.Formatter = UTCTextFormatter()
	default:
		return fmt.Errorf("invalid logger format %q", format)
	}

	if level == "" {
		level = "info"
	}
	logrusLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse level: %w", err)
	}

	for _, hook := range hooks {
		logger.Hooks.Add(hook)
	}

	logger.Out = out
	logger.Level = logrusLevel

	return nil
}
