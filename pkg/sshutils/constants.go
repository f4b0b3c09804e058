package sshutils

import "time"

const (
	DefaultHost       = "localhost"
	DefaultSSHPort    = 22
	DefaultTimeout    = 10 * time.Second
	DefaultRetryCount = 0
	DefaultRetryDelay = 2 * time.Second

	// NoRetryDelay asks for back-to-back attempts. A zero RetryDelay means "use
	// DefaultRetryDelay".
	NoRetryDelay time.Duration = -1

	DefaultKeyRelPath        = "~/.ssh/id_rsa"
	DefaultKnownHostsRelPath = "~/.ssh/known_hosts"

	DefaultPtyTerm   = "xterm"
	DefaultPtyWidth  = 80
	DefaultPtyHeight = 24

	keepaliveRequest = "keepalive@openssh.com"
)

// GetAggregateConnectTimeout is the worst case wall time a Connect call can take
// before giving up.
func GetAggregateConnectTimeout(cfg ConnectionConfig) time.Duration {
	cfg = cfg.WithDefaults()
	attempts := time.Duration(cfg.Retries + 1)
	return cfg.Timeout*attempts + cfg.EffectiveRetryDelay()*(attempts-1)
}
