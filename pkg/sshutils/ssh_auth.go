package sshutils

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"sync"

	"github.com/mitchellh/go-homedir"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// agentAuth dials the agent socket on first use and keeps the connection for the
// lifetime of the session, since agent signers sign over it.
type agentAuth struct {
	socket string

	mu   sync.Mutex
	conn net.Conn
}

func (a *agentAuth) Signers() ([]ssh.Signer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn == nil {
		conn, err := net.Dial("unix", a.socket)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to ssh agent at %s: %w", a.socket, err)
		}
		a.conn = conn
	}
	return agent.NewClient(a.conn).Signers()
}

func (a *agentAuth) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn == nil {
		return nil
	}
	err := a.conn.Close()
	a.conn = nil
	return err
}

func passwordChallenge(password string) ssh.KeyboardInteractiveChallenge {
	return func(_, _ string, questions []string, _ []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range answers {
			answers[i] = password
		}
		return answers, nil
	}
}

// buildAuthMethods resolves the configured credentials. Broken explicit material is
// a configuration error; a broken default key is only logged.
func (m *Manager) buildAuthMethods() ([]ssh.AuthMethod, error) {
	cfg := m.config
	var methods []ssh.AuthMethod

	if cfg.Password != "" {
		methods = append(methods,
			ssh.Password(cfg.Password),
			ssh.KeyboardInteractive(passwordChallenge(cfg.Password)),
		)
	}

	var signers []ssh.Signer
	if len(cfg.PrivateKey) > 0 {
		signer, err := ParsePrivateKey(cfg.PrivateKey, cfg.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		signers = append(signers, signer)
	}
	if cfg.PrivateKeyPath != "" {
		material, err := SSHKeyReader(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("invalid private key %s: %w", cfg.PrivateKeyPath, err)
		}
		signer, err := ParsePrivateKey(material, cfg.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("invalid private key %s: %w", cfg.PrivateKeyPath, err)
		}
		signers = append(signers, signer)
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}

	if cfg.Agent != "" {
		m.agent = &agentAuth{socket: cfg.Agent}
		methods = append(methods, ssh.PublicKeysCallback(m.agent.Signers))
	}

	if cfg.UseDefaultKey && !cfg.HasExplicitAuth() {
		if signer := m.loadDefaultKey(); signer != nil {
			methods = append(methods, ssh.PublicKeys(signer))
		}
	}

	if len(methods) == 0 {
		m.l.Warnf("No SSH authentication method configured for %s@%s", cfg.User, cfg.Addr())
	}
	return methods, nil
}

func (m *Manager) loadDefaultKey() ssh.Signer {
	path, err := homedir.Expand(m.config.DefaultKeyPath)
	if err != nil {
		m.logf("Failed to load default SSH key: %v", err)
		return nil
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			m.l.Debugf("No default SSH key at %s", path)
			return nil
		}
		m.logf("Failed to load default SSH key: %v", err)
		return nil
	}

	material, err := SSHKeyReader(path)
	if err != nil {
		m.logf("Failed to load default SSH key: %v", err)
		return nil
	}
	signer, err := ParsePrivateKey(material, m.config.Passphrase)
	if err != nil {
		m.logf("Failed to load default SSH key: %v", err)
		return nil
	}

	m.logf("Using default SSH key: %s", path)
	return signer
}
