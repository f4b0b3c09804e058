package sshutils

import (
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// logRecorder collects LogFunc messages.
type logRecorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *logRecorder) Log(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *logRecorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func (r *logRecorder) Contains(substr string) bool {
	for _, m := range r.Messages() {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

// ExpectedSSHBehavior describes how the mocked transport should respond.
type ExpectedSSHBehavior struct {
	ConnectExpectation *ConnectExpectation
	ExecExpectations   []ExecExpectation
}

type ConnectExpectation struct {
	// Errors are returned by successive Dial calls before the client is handed out.
	Errors []error
	Delay  time.Duration
}

type ExecExpectation struct {
	Cmd     string
	Stdout  string
	Stderr  string
	WaitErr error
}

// mockConnection wires a MockSSHDialer and MockSSHClient according to behavior and
// returns a config pointing at them.
type mockConnection struct {
	Dialer *MockSSHDialer
	Client *MockSSHClient
	Logs   *logRecorder
}

func newMockConnection(t *testing.T, behavior ExpectedSSHBehavior) (*mockConnection, ConnectionConfig) {
	t.Helper()

	mc := &mockConnection{
		Dialer: NewMockSSHDialer(),
		Client: &MockSSHClient{},
		Logs:   &logRecorder{},
	}

	connect := behavior.ConnectExpectation
	if connect == nil {
		connect = &ConnectExpectation{}
	}
	for _, err := range connect.Errors {
		mc.Dialer.On("Dial", mock.Anything, "tcp", "example.com:22", mock.Anything).
			Return(nil, err).Once()
	}
	call := mc.Dialer.On("Dial", mock.Anything, "tcp", "example.com:22", mock.Anything).
		Return(mc.Client, nil)
	if connect.Delay > 0 {
		call.Run(func(mock.Arguments) { time.Sleep(connect.Delay) })
	}

	mc.Client.On("Close").Return(nil).Maybe()

	for _, exp := range behavior.ExecExpectations {
		session := NewMockSSHSession()
		session.On("StdoutPipe").Return(strings.NewReader(exp.Stdout), nil)
		session.On("StderrPipe").Return(strings.NewReader(exp.Stderr), nil)
		session.On("Start", exp.Cmd).Return(nil)
		session.On("Wait").Return(exp.WaitErr)
		session.On("Close").Return(nil)
		mc.Client.On("NewSession").Return(session, nil).Once()
	}

	cfg := ConnectionConfig{
		Host:          "example.com",
		User:          "testuser",
		Password:      "secret",
		HostKeyPolicy: HostKeyPolicyAcceptAny,
		RetryDelay:    time.Millisecond,
		Logger:        mc.Logs.Log,
		Dialer:        mc.Dialer,
	}
	return mc, cfg
}

func newTestManager(t *testing.T, cfg ConnectionConfig) *Manager {
	t.Helper()
	m, err := NewManager(cfg)
	require.NoError(t, err)
	t.Cleanup(m.Disconnect)
	return m
}

// failingReader returns err after yielding data.
type failingReader struct {
	data string
	err  error
	done bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, r.err
	}
	r.done = true
	return copy(p, r.data), nil
}

var errConnectionLost = errors.New("connection lost")

var _ io.Reader = (*failingReader)(nil)
