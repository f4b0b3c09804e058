package sshutils

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotConnected is returned when an operation needs a live transport handle and
// there is none.
var ErrNotConnected = errors.New("ssh client not connected")

// ConnectionTimeoutError is raised locally when an attempt's timer fires before the
// transport reports ready.
type ConnectionTimeoutError struct {
	Addr  string
	After time.Duration
}

func (e *ConnectionTimeoutError) Error() string {
	return fmt.Sprintf("connection to %s timed out after %dms", e.Addr, e.After.Milliseconds())
}

// Timeout lets callers treat this like a net.Error.
func (e *ConnectionTimeoutError) Timeout() bool { return true }

// ConnectionError is what Connect surfaces once every attempt has failed. Err is the
// last attempt's error, which may itself be a *ConnectionTimeoutError.
type ConnectionError struct {
	Addr     string
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s after %d attempt(s): %v", e.Addr, e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ExecChannelError is a transport failure on a command channel. A non-zero exit
// status is never reported this way.
type ExecChannelError struct {
	Command string
	Err     error
}

func (e *ExecChannelError) Error() string {
	return fmt.Sprintf("SSH command channel failed:\nCommand: %s\nError: %v", e.Command, e.Err)
}

func (e *ExecChannelError) Unwrap() error { return e.Err }

// TransferError reports a failed upload or download. Path names the side that failed.
type TransferError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }
