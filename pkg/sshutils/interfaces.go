package sshutils

import (
	"io"

	"golang.org/x/crypto/ssh"
)

// SSHClienter is the transport handle the Manager drives. The production
// implementation is SSHClientWrapper around *ssh.Client.
type SSHClienter interface {
	NewSession() (SSHSessioner, error)
	SendRequest(name string, wantReply bool, payload []byte) (bool, []byte, error)
	Close() error
}

// SSHSessioner is one channel opened on an SSHClienter.
type SSHSessioner interface {
	Start(cmd string) error
	Wait() error
	Close() error
	StdinPipe() (io.WriteCloser, error)
	StdoutPipe() (io.Reader, error)
	StderrPipe() (io.Reader, error)
	RequestPty(term string, height, width int, modes ssh.TerminalModes) error
	RequestSubsystem(subsystem string) error
	Shell() error
	WindowChange(height, width int) error
	Signal(sig ssh.Signal) error
}

// SFTPClienter interface defines the methods we need for SFTP operations
type SFTPClienter interface {
	Create(path string) (io.WriteCloser, error)
	Open(path string) (io.ReadCloser, error)
	Close() error
}

// Ensure we implement the SSHClienter and SSHSessioner interfaces
var (
	_ SSHClienter  = &SSHClientWrapper{}
	_ SSHSessioner = &SSHSessionWrapper{}
	_ SFTPClienter = &SFTPClientWrapper{}
)
