package sshutils

import (
	"fmt"

	"golang.org/x/crypto/ssh"
)

type SSHClientWrapper struct {
	Client *ssh.Client
}

func (w *SSHClientWrapper) NewSession() (SSHSessioner, error) {
	if w.Client == nil {
		return nil, ErrNotConnected
	}
	session, err := w.Client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to open session channel: %w", err)
	}
	return &SSHSessionWrapper{Session: session}, nil
}

func (w *SSHClientWrapper) SendRequest(
	name string,
	wantReply bool,
	payload []byte,
) (bool, []byte, error) {
	if w.Client == nil {
		return false, nil, ErrNotConnected
	}
	return w.Client.SendRequest(name, wantReply, payload)
}

func (w *SSHClientWrapper) Close() error {
	if w.Client == nil {
		return nil
	}
	return w.Client.Close()
}
