package sshutils

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/ssh"
)

// MockSSHDialer is a mock implementation of SSHDialer
type MockSSHDialer struct {
	mock.Mock
}

func NewMockSSHDialer() *MockSSHDialer {
	return &MockSSHDialer{}
}

func (m *MockSSHDialer) Dial(
	ctx context.Context,
	network, addr string,
	config *ssh.ClientConfig,
) (SSHClienter, error) {
	args := m.Called(ctx, network, addr, config)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	return args.Get(0).(SSHClienter), nil
}

type MockSSHClient struct {
	mock.Mock
}

func (m *MockSSHClient) NewSession() (SSHSessioner, error) {
	args := m.Called()
	if err := args.Error(1); err != nil {
		return nil, err
	}
	return args.Get(0).(SSHSessioner), nil
}

func (m *MockSSHClient) SendRequest(name string, wantReply bool, payload []byte) (bool, []byte, error) {
	args := m.Called(name, wantReply, payload)
	var reply []byte
	if v := args.Get(1); v != nil {
		reply = v.([]byte)
	}
	return args.Bool(0), reply, args.Error(2)
}

func (m *MockSSHClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockSSHSession struct {
	mock.Mock
}

func NewMockSSHSession() *MockSSHSession {
	return &MockSSHSession{}
}

func (m *MockSSHSession) Start(cmd string) error {
	args := m.Called(cmd)
	return args.Error(0)
}

func (m *MockSSHSession) Wait() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockSSHSession) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockSSHSession) StdinPipe() (io.WriteCloser, error) {
	args := m.Called()
	if err := args.Error(1); err != nil {
		return nil, err
	}
	return args.Get(0).(io.WriteCloser), nil
}

func (m *MockSSHSession) StdoutPipe() (io.Reader, error) {
	args := m.Called()
	if err := args.Error(1); err != nil {
		return nil, err
	}
	return args.Get(0).(io.Reader), nil
}

func (m *MockSSHSession) StderrPipe() (io.Reader, error) {
	args := m.Called()
	if err := args.Error(1); err != nil {
		return nil, err
	}
	return args.Get(0).(io.Reader), nil
}

func (m *MockSSHSession) RequestPty(term string, height, width int, modes ssh.TerminalModes) error {
	args := m.Called(term, height, width, modes)
	return args.Error(0)
}

func (m *MockSSHSession) RequestSubsystem(subsystem string) error {
	args := m.Called(subsystem)
	return args.Error(0)
}

func (m *MockSSHSession) Shell() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockSSHSession) WindowChange(height, width int) error {
	args := m.Called(height, width)
	return args.Error(0)
}

func (m *MockSSHSession) Signal(sig ssh.Signal) error {
	args := m.Called(sig)
	return args.Error(0)
}

type MockSFTPClient struct {
	mock.Mock
}

func (m *MockSFTPClient) Create(path string) (io.WriteCloser, error) {
	args := m.Called(path)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	return args.Get(0).(io.WriteCloser), nil
}

func (m *MockSFTPClient) Open(path string) (io.ReadCloser, error) {
	args := m.Called(path)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	return args.Get(0).(io.ReadCloser), nil
}

func (m *MockSFTPClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockWriteCloser struct {
	mock.Mock
}

func (m *MockWriteCloser) Write(p []byte) (n int, err error) {
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

func (m *MockWriteCloser) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockSFTPDial returns an SFTPDialFunc that always hands back client.
func MockSFTPDial(client SFTPClienter) SFTPDialFunc {
	return func(SSHClienter) (SFTPClienter, error) {
		return client, nil
	}
}
