package display

import (
	"io"
	"time"

	"github.com/bacalhau-project/sshconn/pkg/logger"
	"github.com/briandowns/spinner"
)

// NewSpinner creates a new spinner on w to alert the user about the progress
func NewSpinner(w io.Writer, message string) *spinner.Spinner {
	l := logger.Get()
	l.Debugf("Creating spinner: %s", message)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Prefix = message + " "
	_ = s.Color("green")
	s.Start()

	return s
}

// WithSpinner runs f while a spinner is shown and clears it afterwards.
func WithSpinner(w io.Writer, message string, f func() error) error {
	s := NewSpinner(w, message)
	defer s.Stop()
	return f()
}
