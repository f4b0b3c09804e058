package sshutils

import (
	"context"
	"fmt"
)

// Ping checks that the endpoint accepts sessions. It connects if needed, opens one
// channel and closes it again without running anything.
func (m *Manager) Ping(ctx context.Context) error {
	client, err := m.ensureConnected(ctx)
	if err != nil {
		return err
	}

	session, err := client.NewSession()
	if err != nil {
		err = fmt.Errorf("failed to create SSH session: %w", err)
		m.l.Error(err.Error())
		return err
	}
	if err := session.Close(); err != nil {
		m.l.Debugf("Error closing probe session: %v", err)
	}

	m.l.Debug("SSH connection established")
	return nil
}
