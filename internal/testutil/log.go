// ABOUTME: Test logging helpers built on decred/slog
// ABOUTME: Routes log lines to t.Log while the test is running
package testutil

import (
	"sync"
	"testing"

	"github.com/decred/slog"
)

// TestLogBackend is a slog backend that writes through testing.TB
type TestLogBackend struct {
	mtx     sync.Mutex
	tb      testing.TB
	done    bool
	showLog bool
}

func (tlb *TestLogBackend) Write(b []byte) (int, error) {
	tlb.mtx.Lock()
	if !tlb.done && tlb.showLog && len(b) > 0 {
		tlb.tb.Log(string(b[:len(b)-1]))
	}
	tlb.mtx.Unlock()
	return len(b), nil
}

// NewTestLogBackend returns a backend that logs while t runs. Lines are
// shown when the tests run with -v.
func NewTestLogBackend(t testing.TB) *TestLogBackend {
	tlb := &TestLogBackend{tb: t, showLog: testing.Verbose()}
	t.Cleanup(func() {
		tlb.mtx.Lock()
		tlb.done = true
		tlb.mtx.Unlock()
	})
	return tlb
}

// TestLogger returns a trace level logger for subsystem sys that logs by
// issuing t.Log calls.
func TestLogger(t testing.TB, sys string) slog.Logger {
	bknd := slog.NewBackend(NewTestLogBackend(t))
	logg := bknd.Logger(sys)
	logg.SetLevel(slog.LevelTrace)
	return logg
}
