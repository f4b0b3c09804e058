package sshutils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionConfigWithDefaults(t *testing.T) {
	cfg := ConnectionConfig{User: "testuser"}.WithDefaults()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 22, cfg.Port)
	assert.Equal(t, "testuser", cfg.User)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, 0, cfg.Retries)
	assert.Equal(t, 2*time.Second, cfg.RetryDelay)
	assert.Equal(t, HostKeyPolicyVerify, cfg.HostKeyPolicy)
	assert.Equal(t, "~/.ssh/id_rsa", cfg.DefaultKeyPath)
	assert.Equal(t, "~/.ssh/known_hosts", cfg.KnownHostsFile)
	assert.NotNil(t, cfg.Logger)
	assert.NotNil(t, cfg.Dialer)
	assert.NotNil(t, cfg.SFTPDial)
	assert.NotNil(t, cfg.ExtraOptions)

	assert.NotPanics(t, func() { cfg.Logger("default logger is a no-op") })
}

func TestConnectionConfigWithDefaultsKeepsCallerValues(t *testing.T) {
	opts := map[string]string{"Ciphers": "aes128-ctr"}
	cfg := ConnectionConfig{
		Host:          "example.com",
		Port:          2222,
		Timeout:       time.Second,
		Retries:       3,
		RetryDelay:    time.Millisecond,
		HostKeyPolicy: HostKeyPolicyAcceptAny,
		ExtraOptions:  opts,
	}.WithDefaults()

	assert.Equal(t, "example.com", cfg.Host)
	assert.Equal(t, 2222, cfg.Port)
	assert.Equal(t, time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.Retries)
	assert.Equal(t, time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, HostKeyPolicyAcceptAny, cfg.HostKeyPolicy)

	cfg.ExtraOptions["Ciphers"] = "changed"
	assert.Equal(t, "aes128-ctr", opts["Ciphers"], "defaults must copy the options map")
}

func TestConnectionConfigValidation(t *testing.T) {
	tests := []struct {
		name          string
		config        ConnectionConfig
		expectedError string
	}{
		{
			name:   "valid config",
			config: ConnectionConfig{Host: "example.com", User: "testuser"},
		},
		{
			name:          "invalid port",
			config:        ConnectionConfig{Port: 70000},
			expectedError: "invalid port number: 70000",
		},
		{
			name:          "negative timeout",
			config:        ConnectionConfig{Timeout: -time.Second},
			expectedError: "timeout cannot be negative",
		},
		{
			name:          "negative retries",
			config:        ConnectionConfig{Retries: -1},
			expectedError: "retries cannot be negative: -1",
		},
		{
			name:          "negative retry delay",
			config:        ConnectionConfig{RetryDelay: -time.Millisecond},
			expectedError: "retry delay cannot be negative",
		},
		{
			name:   "no retry delay",
			config: ConnectionConfig{RetryDelay: NoRetryDelay},
		},
		{
			name:          "unknown host key policy",
			config:        ConnectionConfig{HostKeyPolicy: "trust-me"},
			expectedError: `unknown host key policy "trust-me"`,
		},
		{
			name:          "bad keepalive option",
			config:        ConnectionConfig{ExtraOptions: map[string]string{"ServerAliveInterval": "soon"}},
			expectedError: "invalid ServerAliveInterval",
		},
		{
			name:          "bad client version option",
			config:        ConnectionConfig{ExtraOptions: map[string]string{"ClientVersion": "OpenSSH_9"}},
			expectedError: "ClientVersion must start with SSH-2.0-",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.WithDefaults().Validate()
			if tt.expectedError == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedError)
		})
	}
}

func TestParseHostKeyPolicy(t *testing.T) {
	for input, want := range map[string]HostKeyPolicy{
		"":            HostKeyPolicyVerify,
		"verify":      HostKeyPolicyVerify,
		" VERIFY ":    HostKeyPolicyVerify,
		"accept-any":  HostKeyPolicyAcceptAny,
		"Accept-Any":  HostKeyPolicyAcceptAny,
	} {
		got, err := ParseHostKeyPolicy(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseHostKeyPolicy("no")
	assert.Error(t, err)
}

func TestConnectionConfigAddr(t *testing.T) {
	assert.Equal(t, "example.com:22", ConnectionConfig{Host: "example.com", Port: 22}.Addr())
	assert.Equal(t, "[::1]:2222", ConnectionConfig{Host: "::1", Port: 2222}.Addr())
}

func TestHasExplicitAuth(t *testing.T) {
	assert.False(t, ConnectionConfig{UseDefaultKey: true}.HasExplicitAuth())
	assert.True(t, ConnectionConfig{Password: "pw"}.HasExplicitAuth())
	assert.True(t, ConnectionConfig{PrivateKey: []byte("key")}.HasExplicitAuth())
	assert.True(t, ConnectionConfig{PrivateKeyPath: "/tmp/key"}.HasExplicitAuth())
	assert.True(t, ConnectionConfig{Agent: "/tmp/agent.sock"}.HasExplicitAuth())
}

func TestGetAggregateConnectTimeout(t *testing.T) {
	cfg := ConnectionConfig{Timeout: time.Second, Retries: 2, RetryDelay: 500 * time.Millisecond}
	assert.Equal(t, 4*time.Second, GetAggregateConnectTimeout(cfg))
	assert.Equal(t, 10*time.Second, GetAggregateConnectTimeout(ConnectionConfig{}))

	cfg.RetryDelay = NoRetryDelay
	assert.Equal(t, 3*time.Second, GetAggregateConnectTimeout(cfg))
}

func TestRetryDelayDefaults(t *testing.T) {
	assert.Equal(t, DefaultRetryDelay, ConnectionConfig{}.WithDefaults().RetryDelay)
	assert.Equal(t, DefaultRetryDelay, ConnectionConfig{}.WithDefaults().EffectiveRetryDelay())

	cfg := ConnectionConfig{RetryDelay: NoRetryDelay}.WithDefaults()
	assert.Equal(t, NoRetryDelay, cfg.RetryDelay)
	assert.Equal(t, time.Duration(0), cfg.EffectiveRetryDelay())
}

func TestParseExtraOptions(t *testing.T) {
	parsed, err := parseExtraOptions(map[string]string{
		"Ciphers":               "aes128-gcm@openssh.com, aes256-ctr",
		"kexalgorithms":         "curve25519-sha256",
		"MACs":                  "hmac-sha2-256",
		"HostKeyAlgorithms":     "ssh-ed25519",
		"ServerAliveInterval":   "15",
		"ClientVersion":         "SSH-2.0-sshconn",
		"StrictHostKeyChecking": "no",
		"UserKnownHostsFile":    "/dev/null",
		"Compression":           "yes",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"aes128-gcm@openssh.com", "aes256-ctr"}, parsed.Ciphers)
	assert.Equal(t, []string{"curve25519-sha256"}, parsed.KeyExchanges)
	assert.Equal(t, []string{"hmac-sha2-256"}, parsed.MACs)
	assert.Equal(t, []string{"ssh-ed25519"}, parsed.HostKeyAlgorithms)
	assert.Equal(t, 15*time.Second, parsed.ServerAliveInterval)
	assert.Equal(t, "SSH-2.0-sshconn", parsed.ClientVersion)
	assert.ElementsMatch(t, []string{"StrictHostKeyChecking", "UserKnownHostsFile"}, parsed.Ignored)
	assert.Equal(t, []string{"Compression"}, parsed.Unknown)
}
