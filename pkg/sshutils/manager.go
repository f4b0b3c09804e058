package sshutils

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bacalhau-project/sshconn/pkg/logger"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

// State is where a Manager's session is in its lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Manager owns one SSH session to one endpoint. Exec, file transfers and Shell
// connect on first use. Connect attempts are serialized; the session handle is
// shared by every channel opened afterwards.
type Manager struct {
	config       ConnectionConfig
	clientConfig *ssh.ClientConfig
	options      extraOptions
	agent        *agentAuth
	l            *logger.Logger

	connectMu sync.Mutex

	mu            sync.RWMutex
	state         State
	client        SSHClienter
	keepaliveStop chan struct{}
}

// NewManager merges cfg over the defaults, resolves credentials and host-key
// policy, and returns a Manager in StateDisconnected. No network I/O happens here.
func NewManager(cfg ConnectionConfig) (*Manager, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid connection config: %w", err)
	}
	options, err := parseExtraOptions(cfg.ExtraOptions)
	if err != nil {
		return nil, fmt.Errorf("invalid connection config: %w", err)
	}

	m := &Manager{
		config:  cfg,
		options: options,
		l:       logger.Get().With(zap.String("addr", cfg.Addr()), zap.String("user", cfg.User)),
		state:   StateDisconnected,
	}

	for _, key := range options.Ignored {
		m.logf("Ignoring SSH option %s: host key checking is controlled by the host key policy", key)
	}
	for _, key := range options.Unknown {
		m.l.Debugf("Ignoring unsupported SSH option %s", key)
	}

	authMethods, err := m.buildAuthMethods()
	if err != nil {
		return nil, err
	}

	m.clientConfig = &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            authMethods,
		HostKeyCallback: m.buildHostKeyCallback(),
		Timeout:         cfg.Timeout,
	}
	options.apply(m.clientConfig)

	return m, nil
}

// logf sends a progress message to the caller's LogFunc and to the process log.
func (m *Manager) logf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	m.config.Logger(msg)
	m.l.Info(msg)
}

// Config returns a copy of the effective configuration.
func (m *Manager) Config() ConnectionConfig {
	cfg := m.config
	cfg.ExtraOptions = make(map[string]string, len(m.config.ExtraOptions))
	for k, v := range m.config.ExtraOptions {
		cfg.ExtraOptions[k] = v
	}
	return cfg
}

func (m *Manager) Addr() string {
	return m.config.Addr()
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

func (m *Manager) currentClient() SSHClienter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateConnected {
		return nil
	}
	return m.client
}

// Connect establishes the session. It returns immediately when already connected.
// Otherwise it makes up to Retries+1 attempts, each bounded by Timeout, waiting
// RetryDelay between them. The final failure is a *ConnectionError wrapping the
// last attempt's error.
func (m *Manager) Connect(ctx context.Context) error {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	if m.IsConnected() {
		return nil
	}
	m.setState(StateConnecting)

	maxRetries := m.config.Retries
	attempts := 0
	var client SSHClienter

	operation := func() error {
		attempts++
		m.l.Debugf("Attempt %d/%d to connect via SSH", attempts, maxRetries+1)
		c, err := m.dialOnce(ctx)
		if err != nil {
			m.logf("Connection error: %v", err)
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		client = c
		return nil
	}

	notify := func(err error, next time.Duration) {
		m.logf("Connection failed (%d/%d), retrying in %dms...", attempts, maxRetries, next.Milliseconds())
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(m.config.EffectiveRetryDelay()), uint64(maxRetries)),
		ctx,
	)

	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		m.setState(StateDisconnected)
		return &ConnectionError{Addr: m.Addr(), Attempts: attempts, Err: err}
	}

	stop := make(chan struct{})
	m.mu.Lock()
	m.client = client
	m.state = StateConnected
	m.keepaliveStop = stop
	m.mu.Unlock()

	if m.options.ServerAliveInterval > 0 {
		go m.keepalive(client, m.options.ServerAliveInterval, stop)
	}

	m.logf("Connected to %s", m.Addr())
	return nil
}

type dialResult struct {
	client SSHClienter
	err    error
}

// dialOnce runs one transport attempt against its own timer. If the timer wins,
// the attempt's eventual result is drained in the background and any handle it
// produced is closed, so a late success can neither leak nor be reported.
func (m *Manager) dialOnce(ctx context.Context) (SSHClienter, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	result := make(chan dialResult, 1)
	go func() {
		c, err := m.config.Dialer.Dial(attemptCtx, "tcp", m.Addr(), m.clientConfig)
		result <- dialResult{client: c, err: err}
	}()

	select {
	case res := <-result:
		if res.err != nil {
			if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
				return nil, &ConnectionTimeoutError{Addr: m.Addr(), After: m.config.Timeout}
			}
			return nil, res.err
		}
		if res.client == nil {
			return nil, errors.New("dialer returned no client")
		}
		return res.client, nil
	case <-attemptCtx.Done():
		go m.discardLateDial(result)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, &ConnectionTimeoutError{Addr: m.Addr(), After: m.config.Timeout}
	}
}

func (m *Manager) discardLateDial(result <-chan dialResult) {
	res := <-result
	if res.client == nil {
		return
	}
	m.l.Debug("Closing SSH connection that completed after its attempt timed out")
	if err := res.client.Close(); err != nil {
		m.l.Debugf("Failed to close late SSH connection: %v", err)
	}
}

func (m *Manager) keepalive(client SSHClienter, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, _, err := client.SendRequest(keepaliveRequest, true, nil); err != nil {
				m.l.Warnf("SSH keepalive failed: %v", err)
				return
			}
		}
	}
}

// ensureConnected is the guard at the top of every channel-opening operation.
func (m *Manager) ensureConnected(ctx context.Context) (SSHClienter, error) {
	if c := m.currentClient(); c != nil {
		return c, nil
	}
	if err := m.Connect(ctx); err != nil {
		return nil, err
	}
	if c := m.currentClient(); c != nil {
		return c, nil
	}
	return nil, ErrNotConnected
}

// Disconnect ends the session without waiting for the server to acknowledge. It is
// a no-op when there is no session.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	client := m.client
	stop := m.keepaliveStop
	m.client = nil
	m.keepaliveStop = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if m.agent != nil {
		if err := m.agent.Close(); err != nil {
			m.l.Debugf("Failed to close ssh agent connection: %v", err)
		}
	}
	if client == nil {
		return
	}
	if err := client.Close(); err != nil {
		m.l.Debugf("Error while closing SSH connection: %v", err)
	}
	m.logf("Disconnected from %s", m.Addr())
}
