package sshutils

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

type nopWriteCloser struct{ strings.Builder }

func (*nopWriteCloser) Close() error { return nil }

func newShellSession() *MockSSHSession {
	session := NewMockSSHSession()
	session.On("StdinPipe").Return(&nopWriteCloser{}, nil)
	session.On("StdoutPipe").Return(strings.NewReader("$ "), nil)
	session.On("StderrPipe").Return(strings.NewReader(""), nil)
	return session
}

func TestShell(t *testing.T) {
	mc, cfg := newMockConnection(t, ExpectedSSHBehavior{})
	session := newShellSession()
	session.On("RequestPty", "xterm", 24, 80, mock.Anything).Return(nil)
	session.On("Shell").Return(nil)
	session.On("WindowChange", 50, 120).Return(nil)
	session.On("Signal", ssh.SIGINT).Return(nil)
	session.On("Wait").Return(nil)
	session.On("Close").Return(nil)
	mc.Client.On("NewSession").Return(session, nil)

	m := newTestManager(t, cfg)
	sh, err := m.Shell(context.Background())
	require.NoError(t, err)

	assert.NotNil(t, sh.Stdin)
	assert.NotNil(t, sh.Stdout)
	assert.NotNil(t, sh.Stderr)
	require.NoError(t, sh.Resize(120, 50))
	require.NoError(t, sh.Interrupt())
	require.NoError(t, sh.Wait())
	require.NoError(t, sh.Close())
	session.AssertExpectations(t)
}

func TestShellPtyRefused(t *testing.T) {
	mc, cfg := newMockConnection(t, ExpectedSSHBehavior{})
	session := newShellSession()
	session.On("RequestPty", "xterm", 24, 80, mock.Anything).Return(errors.New("pty refused"))
	session.On("Close").Return(nil)
	mc.Client.On("NewSession").Return(session, nil)

	m := newTestManager(t, cfg)
	sh, err := m.Shell(context.Background())
	assert.Nil(t, sh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to request pty: pty refused")
	session.AssertCalled(t, "Close")
	session.AssertNotCalled(t, "Shell")
}

func TestPing(t *testing.T) {
	mc, cfg := newMockConnection(t, ExpectedSSHBehavior{})
	session := NewMockSSHSession()
	session.On("Close").Return(nil)
	mc.Client.On("NewSession").Return(session, nil)

	m := newTestManager(t, cfg)
	require.NoError(t, m.Ping(context.Background()))
	assert.True(t, m.IsConnected())
	session.AssertExpectations(t)
}
