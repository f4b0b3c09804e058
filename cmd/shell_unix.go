//go:build !windows

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// watchWindowSize calls resize on every SIGWINCH until ctx ends or stop is called.
func watchWindowSize(ctx context.Context, resize func()) (stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGWINCH)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-sigs:
				resize()
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}
