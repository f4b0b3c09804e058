package sshutils

import (
	"io"

	"golang.org/x/crypto/ssh"
)

// SSHSessionWrapper implements SSHSessioner on top of *ssh.Session
type SSHSessionWrapper struct {
	Session *ssh.Session
}

func (s *SSHSessionWrapper) Start(cmd string) error {
	return s.Session.Start(cmd)
}

func (s *SSHSessionWrapper) Wait() error {
	return s.Session.Wait()
}

func (s *SSHSessionWrapper) Close() error {
	return s.Session.Close()
}

func (s *SSHSessionWrapper) StdinPipe() (io.WriteCloser, error) {
	return s.Session.StdinPipe()
}

func (s *SSHSessionWrapper) StdoutPipe() (io.Reader, error) {
	return s.Session.StdoutPipe()
}

func (s *SSHSessionWrapper) StderrPipe() (io.Reader, error) {
	return s.Session.StderrPipe()
}

func (s *SSHSessionWrapper) RequestPty(term string, height, width int, modes ssh.TerminalModes) error {
	return s.Session.RequestPty(term, height, width, modes)
}

func (s *SSHSessionWrapper) RequestSubsystem(subsystem string) error {
	return s.Session.RequestSubsystem(subsystem)
}

func (s *SSHSessionWrapper) Shell() error {
	return s.Session.Shell()
}

func (s *SSHSessionWrapper) WindowChange(height, width int) error {
	return s.Session.WindowChange(height, width)
}

func (s *SSHSessionWrapper) Signal(sig ssh.Signal) error {
	return s.Session.Signal(sig)
}
