package testhelper

import (
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gitlab.com/stemma-project/stemma/internal/log"
	"go.uber.org/goleak"
)

// Run sets up required testing state and executes the test suite. It is the
// TestMain of every package in this module.
func Run(m *testing.M) {
	goleak.VerifyTestMain(m,
		// Badger's allocator pool keeps a long-lived background goroutine.
		goleak.IgnoreTopFunction("github.com/dgraph-io/ristretto/z.(*AllocatorPool).freeupAllocators"),
		// glog, pulled in by badger, starts a flush daemon at init.
		goleak.IgnoreTopFunction("github.com/golang/glog.(*fileSink).flushDaemon"),
	)
}

// NewLogger returns a logger writing through the test's log output at debug
// level.
func NewLogger(tb testing.TB) log.Logger {
	logger := logrus.New()
	logger.SetOutput(testWriter{tb: tb})
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(log.UTCTextFormatter())
	return log.FromLogrusEntry(logrus.NewEntry(logger))
}

type testWriter struct {
	tb testing.TB
}

func (w testWriter) Write(p []byte) (int, error) {
	w.tb.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

// MustClose calls Close on the Closer and fails the test in case it returns
// an error.
func MustClose(tb testing.TB, closer io.Closer) {
	tb.Helper()
	require.NoError(tb, closer.Close())
}
