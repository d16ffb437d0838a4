package log

import (
	"os"
	"testing"
)

// TestingLogger returns a Logger which writes to STDOUT if tests are being
// run with the verbose (-v) flag, NopLogger otherwise.
//
// Note that the call to TestingLogger() must be made inside a test (not in
// the init func) because the verbose flag is only set at the time of testing.
func TestingLogger() Logger {
	if testing.Verbose() {
		logger, err := NewLogger(os.Stdout, LogFormatPlain, LogLevelDebug)
		if err != nil {
			panic(err)
		}
		return logger
	}

	return NewNopLogger()
}

// NewTestingLogger returns a Logger that routes output through t.Log so that
// it is attributed to the test which produced it.
func NewTestingLogger(t testing.TB) Logger {
	t.Helper()
	if !testing.Verbose() {
		return NewNopLogger()
	}

	logger, err := NewLogger(testWriter{t}, LogFormatPlain, LogLevelDebug)
	if err != nil {
		t.Fatal(err)
	}
	return logger
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
