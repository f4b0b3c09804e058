package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/bacalhau-project/sshconn/pkg/logger"
	"github.com/bacalhau-project/sshconn/pkg/sshutils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

func GetShellCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Open an interactive shell on the remote host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConnectionConfig(cmd, v)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			m, err := connectManager(ctx, cmd, cfg, newPrinter(cmd))
			if err != nil {
				return err
			}
			defer m.Disconnect()

			sh, err := m.Shell(ctx)
			if err != nil {
				return err
			}
			defer sh.Close()

			return runShell(ctx, cmd, sh)
		},
	}
}

// runShell wires the local terminal to sh until the remote side exits. When stdin
// is a terminal it is switched to raw mode and window size changes are forwarded.
func runShell(ctx context.Context, cmd *cobra.Command, sh *sshutils.Shell) error {
	l := logger.FromContext(ctx)
	in := cmd.InOrStdin()

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		state, err := term.MakeRaw(fd)
		if err != nil {
			return err
		}
		defer func() {
			if err := term.Restore(fd, state); err != nil {
				l.Warnf("Failed to restore terminal: %v", err)
			}
		}()

		resize := func() {
			if w, h, err := term.GetSize(fd); err == nil {
				if err := sh.Resize(w, h); err != nil {
					l.Debugf("Failed to resize remote pty: %v", err)
				}
			}
		}
		resize()
		stop := watchWindowSize(ctx, resize)
		defer stop()
	} else {
		stop := forwardInterrupts(ctx, sh, l)
		defer stop()
	}

	go func() {
		_, _ = io.Copy(sh.Stdin, in)
		_ = sh.Stdin.Close()
	}()

	var output errgroup.Group
	output.Go(func() error {
		_, err := io.Copy(cmd.OutOrStdout(), sh.Stdout)
		return err
	})
	output.Go(func() error {
		_, err := io.Copy(cmd.ErrOrStderr(), sh.Stderr)
		return err
	})

	waitErr := sh.Wait()
	if err := output.Wait(); err != nil {
		l.Debugf("Shell output copy ended with: %v", err)
	}
	return waitErr
}

// forwardInterrupts passes local Ctrl-C on to the remote shell until ctx ends or stop
// is called. Only needed when stdin is not a raw terminal.
func forwardInterrupts(ctx context.Context, sh interrupter, l *logger.Logger) (stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-sigs:
				if err := sh.Interrupt(); err != nil {
					l.Debugf("Failed to forward interrupt: %v", err)
				}
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

type interrupter interface {
	Interrupt() error
}
