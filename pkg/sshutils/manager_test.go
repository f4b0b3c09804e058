package sshutils

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewManagerRejectsInvalidConfig(t *testing.T) {
	_, err := NewManager(ConnectionConfig{Port: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port number: -1")
}

func TestNewManagerStartsDisconnected(t *testing.T) {
	_, cfg := newMockConnection(t, ExpectedSSHBehavior{})
	m := newTestManager(t, cfg)

	assert.Equal(t, StateDisconnected, m.State())
	assert.False(t, m.IsConnected())
	assert.Equal(t, "example.com:22", m.Addr())
}

func TestConnect(t *testing.T) {
	mc, cfg := newMockConnection(t, ExpectedSSHBehavior{})
	m := newTestManager(t, cfg)

	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, StateConnected, m.State())
	assert.True(t, mc.Logs.Contains("Connected to example.com:22"))
	mc.Dialer.AssertNumberOfCalls(t, "Dial", 1)
}

func TestConnectIsIdempotent(t *testing.T) {
	mc, cfg := newMockConnection(t, ExpectedSSHBehavior{})
	m := newTestManager(t, cfg)

	require.NoError(t, m.Connect(context.Background()))
	require.NoError(t, m.Connect(context.Background()))
	mc.Dialer.AssertNumberOfCalls(t, "Dial", 1)
}

func TestConcurrentConnectDialsOnce(t *testing.T) {
	mc, cfg := newMockConnection(t, ExpectedSSHBehavior{
		ConnectExpectation: &ConnectExpectation{Delay: 20 * time.Millisecond},
	})
	m := newTestManager(t, cfg)

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.Connect(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	mc.Dialer.AssertNumberOfCalls(t, "Dial", 1)
}

func TestConnectRetriesThenSucceeds(t *testing.T) {
	mc, cfg := newMockConnection(t, ExpectedSSHBehavior{
		ConnectExpectation: &ConnectExpectation{
			Errors: []error{errors.New("connection refused"), errors.New("connection refused")},
		},
	})
	cfg.Retries = 2
	cfg.RetryDelay = 20 * time.Millisecond
	m := newTestManager(t, cfg)

	start := time.Now()
	require.NoError(t, m.Connect(context.Background()))
	elapsed := time.Since(start)

	mc.Dialer.AssertNumberOfCalls(t, "Dial", 3)
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
	assert.True(t, mc.Logs.Contains("Connection failed (1/2), retrying in 20ms..."))
	assert.True(t, mc.Logs.Contains("Connection failed (2/2), retrying in 20ms..."))
	assert.True(t, m.IsConnected())
}

func TestConnectWithNoRetryDelay(t *testing.T) {
	mc, cfg := newMockConnection(t, ExpectedSSHBehavior{
		ConnectExpectation: &ConnectExpectation{
			Errors: []error{errors.New("connection refused")},
		},
	})
	cfg.Retries = 1
	cfg.RetryDelay = NoRetryDelay
	m := newTestManager(t, cfg)

	start := time.Now()
	require.NoError(t, m.Connect(context.Background()))

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, NoRetryDelay, m.Config().RetryDelay)
	mc.Dialer.AssertNumberOfCalls(t, "Dial", 2)
	assert.True(t, mc.Logs.Contains("Connection failed (1/1), retrying in 0ms..."))
}

func TestConnectFailsAfterAllAttempts(t *testing.T) {
	tests := []struct {
		retries int
	}{
		{retries: 0},
		{retries: 1},
		{retries: 3},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("retries=%d", tt.retries), func(t *testing.T) {
			dialer := NewMockSSHDialer()
			lastErr := errors.New("connection refused")
			dialer.On("Dial", mock.Anything, "tcp", "example.com:22", mock.Anything).Return(nil, lastErr)

			m := newTestManager(t, ConnectionConfig{
				Host:          "example.com",
				HostKeyPolicy: HostKeyPolicyAcceptAny,
				Retries:       tt.retries,
				RetryDelay:    5 * time.Millisecond,
				Dialer:        dialer,
			})

			start := time.Now()
			err := m.Connect(context.Background())
			elapsed := time.Since(start)

			require.Error(t, err)
			var connErr *ConnectionError
			require.ErrorAs(t, err, &connErr)
			assert.Equal(t, tt.retries+1, connErr.Attempts)
			assert.ErrorIs(t, err, lastErr)
			assert.GreaterOrEqual(t, elapsed, time.Duration(tt.retries)*5*time.Millisecond)
			dialer.AssertNumberOfCalls(t, "Dial", tt.retries+1)
			assert.Equal(t, StateDisconnected, m.State())
		})
	}
}

func TestConnectTimeoutClosesLateClient(t *testing.T) {
	closed := make(chan struct{})
	late := &MockSSHClient{}
	late.On("Close").Run(func(mock.Arguments) { close(closed) }).Return(nil).Once()

	dialer := NewMockSSHDialer()
	dialer.On("Dial", mock.Anything, "tcp", "example.com:22", mock.Anything).
		Run(func(mock.Arguments) { time.Sleep(150 * time.Millisecond) }).
		Return(late, nil).Once()

	m := newTestManager(t, ConnectionConfig{
		Host:          "example.com",
		HostKeyPolicy: HostKeyPolicyAcceptAny,
		Timeout:       30 * time.Millisecond,
		Dialer:        dialer,
	})

	err := m.Connect(context.Background())
	require.Error(t, err)

	var timeoutErr *ConnectionTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "connection to example.com:22 timed out after 30ms", timeoutErr.Error())
	assert.Equal(t, 30*time.Millisecond, timeoutErr.After)

	var netErr interface{ Timeout() bool }
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
	assert.Equal(t, StateDisconnected, m.State())

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("late connection was never closed")
	}
	assert.False(t, m.IsConnected())
}

func TestConnectHonoursContextCancellation(t *testing.T) {
	dialer := NewMockSSHDialer()
	dialer.On("Dial", mock.Anything, "tcp", "example.com:22", mock.Anything).
		Return(nil, errors.New("connection refused"))

	m := newTestManager(t, ConnectionConfig{
		Host:          "example.com",
		HostKeyPolicy: HostKeyPolicyAcceptAny,
		Retries:       100,
		RetryDelay:    time.Hour,
		Dialer:        dialer,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := m.Connect(ctx)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, StateDisconnected, m.State())
}

func TestDisconnect(t *testing.T) {
	mc, cfg := newMockConnection(t, ExpectedSSHBehavior{})
	m := newTestManager(t, cfg)

	require.NoError(t, m.Connect(context.Background()))
	m.Disconnect()

	assert.Equal(t, StateDisconnected, m.State())
	mc.Client.AssertCalled(t, "Close")
	assert.True(t, mc.Logs.Contains("Disconnected from example.com:22"))

	// A second call has nothing to close.
	m.Disconnect()
	mc.Client.AssertNumberOfCalls(t, "Close", 1)
}

func TestDisconnectWithoutSessionIsNoOp(t *testing.T) {
	mc, cfg := newMockConnection(t, ExpectedSSHBehavior{})
	m := newTestManager(t, cfg)

	assert.NotPanics(t, m.Disconnect)
	assert.Equal(t, StateDisconnected, m.State())
	mc.Client.AssertNotCalled(t, "Close")
}

func TestReconnectAfterDisconnect(t *testing.T) {
	mc, cfg := newMockConnection(t, ExpectedSSHBehavior{})
	m := newTestManager(t, cfg)

	require.NoError(t, m.Connect(context.Background()))
	m.Disconnect()
	require.NoError(t, m.Connect(context.Background()))

	assert.True(t, m.IsConnected())
	mc.Dialer.AssertNumberOfCalls(t, "Dial", 2)
}

func TestKeepaliveSendsRequests(t *testing.T) {
	mc, cfg := newMockConnection(t, ExpectedSSHBehavior{})
	sent := make(chan struct{}, 10)
	mc.Client.On("SendRequest", "keepalive@openssh.com", true, []byte(nil)).
		Run(func(mock.Arguments) { sent <- struct{}{} }).
		Return(true, nil, nil)

	cfg.ExtraOptions = map[string]string{"ServerAliveInterval": "1"}
	m := newTestManager(t, cfg)
	require.NoError(t, m.Connect(context.Background()))

	select {
	case <-sent:
	case <-time.After(3 * time.Second):
		t.Fatal("no keepalive was sent")
	}
}

func TestConfigReturnsCopy(t *testing.T) {
	_, cfg := newMockConnection(t, ExpectedSSHBehavior{})
	cfg.ExtraOptions = map[string]string{"Ciphers": "aes128-ctr"}
	m := newTestManager(t, cfg)

	got := m.Config()
	got.ExtraOptions["Ciphers"] = "changed"
	assert.Equal(t, "aes128-ctr", m.Config().ExtraOptions["Ciphers"])
}

func TestIgnoredOptionsAreLogged(t *testing.T) {
	_, cfg := newMockConnection(t, ExpectedSSHBehavior{})
	logs := &logRecorder{}
	cfg.Logger = logs.Log
	cfg.ExtraOptions = map[string]string{"StrictHostKeyChecking": "no"}

	newTestManager(t, cfg)
	assert.True(t, logs.Contains("Ignoring SSH option StrictHostKeyChecking"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "State(7)", State(7).String())
}
