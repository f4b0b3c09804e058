package sshutils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pkg/sftp"
)

// SFTPClientWrapper adapts *sftp.Client to SFTPClienter and owns the session
// channel the subsystem runs on.
type SFTPClientWrapper struct {
	Client  *sftp.Client
	session SSHSessioner
}

func (w *SFTPClientWrapper) Create(path string) (io.WriteCloser, error) {
	return w.Client.Create(path)
}

func (w *SFTPClientWrapper) Open(path string) (io.ReadCloser, error) {
	return w.Client.Open(path)
}

func (w *SFTPClientWrapper) Close() error {
	err := w.Client.Close()
	if w.session != nil {
		if cerr := w.session.Close(); cerr != nil && !errors.Is(cerr, io.EOF) && err == nil {
			err = cerr
		}
	}
	return err
}

// DefaultSFTPDial starts the "sftp" subsystem on a new session channel of client.
func DefaultSFTPDial(client SSHClienter) (SFTPClienter, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, err
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to get sftp stdin pipe: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to get sftp stdout pipe: %w", err)
	}
	if err := session.RequestSubsystem("sftp"); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to start sftp subsystem: %w", err)
	}

	c, err := sftp.NewClientPipe(stdout, stdin)
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to create SFTP client: %w", err)
	}
	return &SFTPClientWrapper{Client: c, session: session}, nil
}

func (m *Manager) openSFTP(ctx context.Context, op, path string) (SFTPClienter, error) {
	client, err := m.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}
	sftpClient, err := m.config.SFTPDial(client)
	if err != nil {
		return nil, &TransferError{Op: op, Path: path, Err: err}
	}
	return sftpClient, nil
}

// UploadFile streams localPath to remotePath. It succeeds once the remote file has
// been closed. A failed transfer leaves whatever was written in place.
func (m *Manager) UploadFile(ctx context.Context, localPath, remotePath string) error {
	const op = "upload"

	sftpClient, err := m.openSFTP(ctx, op, remotePath)
	if err != nil {
		return err
	}
	defer sftpClient.Close()

	src, err := os.Open(localPath)
	if err != nil {
		return &TransferError{Op: op, Path: localPath, Err: err}
	}
	defer src.Close()

	dst, err := sftpClient.Create(remotePath)
	if err != nil {
		return &TransferError{Op: op, Path: remotePath, Err: fmt.Errorf("failed to create remote file: %w", err)}
	}

	n, err := io.Copy(dst, src)
	if err != nil {
		_ = dst.Close()
		return &TransferError{Op: op, Path: remotePath, Err: fmt.Errorf("failed to copy file content: %w", err)}
	}
	if err := dst.Close(); err != nil {
		return &TransferError{Op: op, Path: remotePath, Err: fmt.Errorf("failed to close remote file: %w", err)}
	}

	m.l.Infof("Uploaded %s to %s (%d bytes)", localPath, remotePath, n)
	return nil
}

// DownloadFile streams remotePath to localPath. It succeeds once the local file has
// been flushed and closed. A failed transfer leaves whatever was written in place.
func (m *Manager) DownloadFile(ctx context.Context, remotePath, localPath string) error {
	const op = "download"

	sftpClient, err := m.openSFTP(ctx, op, remotePath)
	if err != nil {
		return err
	}
	defer sftpClient.Close()

	src, err := sftpClient.Open(remotePath)
	if err != nil {
		return &TransferError{Op: op, Path: remotePath, Err: fmt.Errorf("failed to open remote file: %w", err)}
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return &TransferError{Op: op, Path: localPath, Err: err}
	}

	n, err := io.Copy(dst, src)
	if err != nil {
		_ = dst.Close()
		return &TransferError{Op: op, Path: localPath, Err: fmt.Errorf("failed to copy file content: %w", err)}
	}
	if err := dst.Close(); err != nil {
		return &TransferError{Op: op, Path: localPath, Err: fmt.Errorf("failed to close local file: %w", err)}
	}

	m.l.Infof("Downloaded %s to %s (%d bytes)", remotePath, localPath, n)
	return nil
}
