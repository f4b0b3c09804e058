package sshutils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"
)

// CommandResult is the outcome of a command that ran to completion. A non-zero
// Code is a normal result, not an error.
type CommandResult struct {
	Code   int
	Stdout string
	Stderr string
}

// Exec runs command on a new channel and returns once the channel closes. Output is
// buffered in full; there is no limit on its size.
func (m *Manager) Exec(ctx context.Context, command string) (*CommandResult, error) {
	client, err := m.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}

	m.l.Debugf("Executing SSH command: %s", command)

	session, err := client.NewSession()
	if err != nil {
		return nil, &ExecChannelError{Command: command, Err: err}
	}
	defer session.Close()

	stdoutPipe, err := session.StdoutPipe()
	if err != nil {
		return nil, &ExecChannelError{Command: command, Err: fmt.Errorf("failed to get stdout pipe: %w", err)}
	}
	stderrPipe, err := session.StderrPipe()
	if err != nil {
		return nil, &ExecChannelError{Command: command, Err: fmt.Errorf("failed to get stderr pipe: %w", err)}
	}

	if err := session.Start(command); err != nil {
		return nil, &ExecChannelError{Command: command, Err: fmt.Errorf("failed to start command: %w", err)}
	}

	var stdout, stderr bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(&stdout, stdoutPipe)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(&stderr, stderrPipe)
		return err
	})
	readErr := g.Wait()
	waitErr := session.Wait()

	code, err := exitCode(waitErr)
	if err != nil {
		return nil, &ExecChannelError{Command: command, Err: err}
	}
	if readErr != nil {
		return nil, &ExecChannelError{Command: command, Err: fmt.Errorf("failed to read command output: %w", readErr)}
	}

	m.l.Debugf("SSH command finished with exit code %d", code)
	return &CommandResult{
		Code:   code,
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}, nil
}

// exitCode separates exit statuses, which are results, from channel failures.
// A channel that closes without reporting a status counts as exit code 0.
func exitCode(waitErr error) (int, error) {
	if waitErr == nil {
		return 0, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitStatus(), nil
	}

	var missing *ssh.ExitMissingError
	if errors.As(waitErr, &missing) {
		return 0, nil
	}

	return 0, waitErr
}
