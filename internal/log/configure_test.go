package log

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type countingHook struct {
	fired int
}

func (h *countingHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *countingHook) Fire(*logrus.Entry) error {
	h.fired++
	return nil
}

func TestConfigure(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	testHook := &countingHook{}

	for _, tc := range []struct {
		desc           string
		format         string
		level          string
		hooks          []logrus.Hook
		expectedLogger *logrus.Logger
		expectedError  error
	}{
		{
			desc:   "json format with info level",
			level:  "info",
			format: "json",
			expectedLogger: func() *logrus.Logger {
				logger := newLogger()
				logger.Out = &out
				logger.Formatter = UTCJsonFormatter()
				logger.Level = logrus.InfoLevel
				return logger
			}(),
		},
		{
			desc:   "text format with info level",
			level:  "info",
			format: "text",
			expectedLogger: func() *logrus.Logger {
				logger := newLogger()
				logger.Out = &out
				logger.Formatter = UTCTextFormatter()
				logger.Level = logrus.InfoLevel
				return logger
			}(),
		},
		{
			desc:          "empty format with info level",
			expectedError: fmt.Errorf("invalid logger format %q", ""),
		},
		{
			desc:   "text format with empty level",
			format: "text",
			expectedLogger: func() *logrus.Logger {
				logger := newLogger()
				logger.Out = &out
				logger.Formatter = UTCTextFormatter()
				logger.Level = logrus.InfoLevel
				return logger
			}(),
		},
		{
			desc:   "text format with debug level",
			format: "text",
			level:  "debug",
			expectedLogger: func() *logrus.Logger {
				logger := newLogger()
				logger.Out = &out
				logger.Formatter = UTCTextFormatter()
				logger.Level = logrus.DebugLevel
				return logger
			}(),
		},
		{
			desc:          "text format with invalid level",
			format:        "text",
			level:         "invalid-level",
			expectedError: fmt.Errorf("parse level: %w", fmt.Errorf("not a valid logrus Level: %q", "invalid-level")),
		},
		{
			desc:   "with hook",
			format: "text",
			level:  "info",
			hooks: []logrus.Hook{
				testHook,
			},
			expectedLogger: func() *logrus.Logger {
				logger := newLogger()
				logger.Out = &out
				logger.Formatter = UTCTextFormatter()
				logger.Level = logrus.InfoLevel
				logger.Hooks.Add(testHook)
				return logger
			}(),
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			out.Reset()

			logger := newLogger()
			err := configure(logger, &out, tc.format, tc.level, tc.hooks...)
			if tc.expectedError != nil {
				require.Equal(t, tc.expectedError, err)
				return
			}

			require.NoError(t, err)

			// We cannot directly compare the loggers with each other because they contain function
			// pointers, so we have to check the relevant fields one by one.
			require.Equal(t, tc.expectedLogger.Out, logger.Out)
			require.Equal(t, tc.expectedLogger.Level, logger.Level)
			require.Equal(t, tc.expectedLogger.Hooks, logger.Hooks)
			require.Equal(t, tc.expectedLogger.Formatter, logger.Formatter)

			now := time.Now()
			nowUTCFormatted := now.UTC().Format(LogTimestampFormatUTC)

			message := "this is a logging message."
			entry := logger.WithTime(now)

			switch tc.level {
			case "debug":
				entry.Debug(message)
			default:
				entry.Info(message)
			}

			require.Contains(t, out.String(), nowUTCFormatted)
			require.Contains(t, out.String(), message)
		})
	}
}

func TestConfigure_logger(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	logger, err := Configure(&out, FormatJSON, "debug")
	require.NoError(t, err)

	logger.WithField("component", "rebase").Debug("replayed commits")
	require.Contains(t, out.String(), `"component":"rebase"`)
	require.Contains(t, out.String(), `"msg":"replayed commits"`)
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	// Must not panic or write anywhere.
	Discard().WithField("key", "value").Error("dropped")
}
