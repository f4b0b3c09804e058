//go:build windows

package cmd

import "context"

// Windows consoles have no SIGWINCH; the initial size is all the remote side gets.
func watchWindowSize(_ context.Context, _ func()) (stop func()) {
	return func() {}
}
