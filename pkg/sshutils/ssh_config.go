package sshutils

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// HostKeyPolicy selects how the server's host key is checked.
type HostKeyPolicy string

const (
	// HostKeyPolicyVerify checks the presented key against HostKeyCallback or the
	// known_hosts file. It is the default.
	HostKeyPolicyVerify HostKeyPolicy = "verify"
	// HostKeyPolicyAcceptAny accepts whatever key the server presents, the same as
	// ssh -o StrictHostKeyChecking=no -o UserKnownHostsFile=/dev/null.
	HostKeyPolicyAcceptAny HostKeyPolicy = "accept-any"
)

func ParseHostKeyPolicy(s string) (HostKeyPolicy, error) {
	switch HostKeyPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", HostKeyPolicyVerify:
		return HostKeyPolicyVerify, nil
	case HostKeyPolicyAcceptAny:
		return HostKeyPolicyAcceptAny, nil
	default:
		return "", fmt.Errorf("unknown host key policy %q (want %q or %q)",
			s, HostKeyPolicyVerify, HostKeyPolicyAcceptAny)
	}
}

// LogFunc receives human-readable progress messages from a Manager.
type LogFunc func(message string)

// SFTPDialFunc opens the file-transfer subsystem on a connected transport.
type SFTPDialFunc func(client SSHClienter) (SFTPClienter, error)

// ConnectionConfig describes one remote endpoint and how to reach it. Zero values
// mean "not supplied" and are replaced by WithDefaults.
//
// Authentication precedence: Password, PrivateKey, PrivateKeyPath and Agent are
// explicit material and are all offered when set, in that order. UseDefaultKey is
// consulted only when none of them is set, and only if the file at DefaultKeyPath
// exists. Failing to read or parse the default key is logged and otherwise ignored.
type ConnectionConfig struct {
	Host string
	Port int
	User string

	Password       string
	PrivateKey     []byte
	PrivateKeyPath string
	Passphrase     string
	Agent          string
	UseDefaultKey  bool
	DefaultKeyPath string

	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration

	HostKeyPolicy  HostKeyPolicy
	KnownHostsFile string
	// HostKeyCallback, when set, replaces the known_hosts lookup under
	// HostKeyPolicyVerify. It is ignored under HostKeyPolicyAcceptAny.
	HostKeyCallback ssh.HostKeyCallback

	// ExtraOptions carries OpenSSH-style option names not modeled above.
	ExtraOptions map[string]string

	Logger   LogFunc
	Dialer   SSHDialer
	SFTPDial SFTPDialFunc
}

// WithDefaults returns a copy of the config with default values applied.
func (c ConnectionConfig) WithDefaults() ConnectionConfig {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultSSHPort
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.HostKeyPolicy == "" {
		c.HostKeyPolicy = HostKeyPolicyVerify
	}
	if c.DefaultKeyPath == "" {
		c.DefaultKeyPath = DefaultKeyRelPath
	}
	if c.KnownHostsFile == "" {
		c.KnownHostsFile = DefaultKnownHostsRelPath
	}
	if c.Logger == nil {
		c.Logger = func(string) {}
	}
	if c.Dialer == nil {
		c.Dialer = NewSSHDial()
	}
	if c.SFTPDial == nil {
		c.SFTPDial = DefaultSFTPDial
	}

	opts := make(map[string]string, len(c.ExtraOptions))
	for k, v := range c.ExtraOptions {
		opts[k] = v
	}
	c.ExtraOptions = opts
	return c
}

// Validate reports configuration that can never produce a working connection.
func (c ConnectionConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", c.Port)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative: %s", c.Timeout)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries cannot be negative: %d", c.Retries)
	}
	if c.RetryDelay < 0 && c.RetryDelay != NoRetryDelay {
		return fmt.Errorf("retry delay cannot be negative: %s", c.RetryDelay)
	}
	if _, err := ParseHostKeyPolicy(string(c.HostKeyPolicy)); err != nil {
		return err
	}
	if _, err := parseExtraOptions(c.ExtraOptions); err != nil {
		return err
	}
	return nil
}

// EffectiveRetryDelay is the wait between attempts, with NoRetryDelay resolved to 0.
func (c ConnectionConfig) EffectiveRetryDelay() time.Duration {
	if c.RetryDelay == NoRetryDelay {
		return 0
	}
	return c.RetryDelay
}

// Addr is host:port in the form net.Dial expects.
func (c ConnectionConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// HasExplicitAuth reports whether any of password, key or agent was supplied.
func (c ConnectionConfig) HasExplicitAuth() bool {
	return c.Password != "" || len(c.PrivateKey) > 0 || c.PrivateKeyPath != "" || c.Agent != ""
}
