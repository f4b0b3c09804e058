package logger

import (
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// TestLogger captures every message it is given while still writing through to
// the test's output.
type TestLogger struct {
	*Logger
	t       *testing.T
	logs    []string
	logLock sync.Mutex
}

// NewTestLogger returns a logger whose zap output goes to t.Log and whose messages
// are retained for assertions.
func NewTestLogger(t *testing.T) *TestLogger {
	tl := &TestLogger{t: t}
	hook := zap.Hooks(func(e zapcore.Entry) error {
		tl.logLock.Lock()
		tl.logs = append(tl.logs, e.Message)
		tl.logLock.Unlock()
		return nil
	})
	tl.Logger = &Logger{
		Logger: zaptest.NewLogger(t, zaptest.Level(zapcore.DebugLevel), zaptest.WrapOptions(hook)),
	}
	return tl
}

func (tl *TestLogger) GetLogs() []string {
	tl.logLock.Lock()
	defer tl.logLock.Unlock()
	return append([]string{}, tl.logs...)
}

func (tl *TestLogger) PrintLogs(t *testing.T) {
	tl.logLock.Lock()
	defer tl.logLock.Unlock()
	t.Log("Captured logs:")
	for i, log := range tl.logs {
		t.Logf("[%d] %s", i, log)
	}
}
