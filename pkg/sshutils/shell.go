package sshutils

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/crypto/ssh"
)

// Shell is an interactive channel with a pseudo-terminal attached. Its contents
// are the caller's business.
type Shell struct {
	Stdin  io.WriteCloser
	Stdout io.Reader
	Stderr io.Reader

	session SSHSessioner
}

// Resize tells the remote pty about a new local terminal size.
func (s *Shell) Resize(width, height int) error {
	return s.session.WindowChange(height, width)
}

// Interrupt delivers SIGINT to the remote foreground process. Raw-mode terminals
// send Ctrl-C as a byte instead.
func (s *Shell) Interrupt() error {
	return s.session.Signal(ssh.SIGINT)
}

// Wait blocks until the remote shell exits.
func (s *Shell) Wait() error {
	return s.session.Wait()
}

func (s *Shell) Close() error {
	return s.session.Close()
}

// Shell opens an interactive login shell on a pty sized DefaultPtyWidth x
// DefaultPtyHeight.
func (m *Manager) Shell(ctx context.Context) (*Shell, error) {
	client, err := m.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}

	session, err := client.NewSession()
	if err != nil {
		return nil, err
	}

	sh, err := startShell(session)
	if err != nil {
		session.Close()
		return nil, err
	}
	m.l.Debug("Interactive shell started")
	return sh, nil
}

func startShell(session SSHSessioner) (*Shell, error) {
	stdin, err := session.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty(DefaultPtyTerm, DefaultPtyHeight, DefaultPtyWidth, modes); err != nil {
		return nil, fmt.Errorf("failed to request pty: %w", err)
	}
	if err := session.Shell(); err != nil {
		return nil, fmt.Errorf("failed to start shell: %w", err)
	}

	return &Shell{
		Stdin:   stdin,
		Stdout:  stdout,
		Stderr:  stderr,
		session: session,
	}, nil
}
