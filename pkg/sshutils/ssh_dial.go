package sshutils

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/crypto/ssh"
)

// SSHDialer establishes one authenticated transport session. Implementations must
// give up once ctx is done.
type SSHDialer interface {
	Dial(ctx context.Context, network, addr string, config *ssh.ClientConfig) (SSHClienter, error)
}

// NewSSHDial returns the dialer used when ConnectionConfig.Dialer is nil.
func NewSSHDial() SSHDialer {
	return &SSHDial{DialCreator: dialSSHContext}
}

type SSHDial struct {
	DialCreator func(ctx context.Context, network, addr string, config *ssh.ClientConfig) (SSHClienter, error)
}

func (d *SSHDial) Dial(
	ctx context.Context,
	network, addr string,
	config *ssh.ClientConfig,
) (SSHClienter, error) {
	return d.DialCreator(ctx, network, addr, config)
}

// dialSSHContext dials TCP and runs the SSH handshake, bounding the handshake by
// ctx's deadline and tearing the socket down if ctx is cancelled mid-handshake.
func dialSSHContext(
	ctx context.Context,
	network, addr string,
	config *ssh.ClientConfig,
) (SSHClienter, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if !stop() {
		if err == nil {
			_ = c.Close()
		}
		return nil, fmt.Errorf("ssh handshake aborted: %w", ctx.Err())
	}
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ssh handshake failed: %w", err)
	}

	_ = conn.SetDeadline(time.Time{})
	return &SSHClientWrapper{Client: ssh.NewClient(c, chans, reqs)}, nil
}
