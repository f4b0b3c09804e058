package sshutils

import (
	"fmt"
	"net"

	"github.com/mitchellh/go-homedir"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// buildHostKeyCallback maps the configured policy onto the transport's verifier
// hook. Under HostKeyPolicyVerify a known_hosts file that cannot be loaded rejects
// every key rather than silently accepting.
func (m *Manager) buildHostKeyCallback() ssh.HostKeyCallback {
	cfg := m.config
	if cfg.HostKeyPolicy == HostKeyPolicyAcceptAny {
		m.logf("Host key verification disabled for %s", cfg.Addr())
		return ssh.InsecureIgnoreHostKey() //nolint:gosec
	}

	if cfg.HostKeyCallback != nil {
		return cfg.HostKeyCallback
	}

	path, err := homedir.Expand(cfg.KnownHostsFile)
	if err != nil {
		return rejectAllHostKeys(fmt.Errorf("failed to resolve known_hosts path %s: %w", cfg.KnownHostsFile, err))
	}

	callback, err := knownhosts.New(path)
	if err != nil {
		m.l.Warnf("Could not load known_hosts file %s: %v", path, err)
		return rejectAllHostKeys(fmt.Errorf("failed to load known_hosts file %s: %w", path, err))
	}
	m.l.Debugf("Verifying host keys against %s", path)
	return callback
}

func rejectAllHostKeys(cause error) ssh.HostKeyCallback {
	return func(hostname string, _ net.Addr, key ssh.PublicKey) error {
		return fmt.Errorf(
			"host key verification failed for %s (%s %s): %w",
			hostname,
			key.Type(),
			ssh.FingerprintSHA256(key),
			cause,
		)
	}
}
