package cli

import (
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Progress shows a spinner on a terminal while a long operation runs.
// On other writers it does nothing.
type Progress struct {
	s *spinner.Spinner
}

// StartProgress starts a spinner on w with the given message. quiet
// disables it.
func StartProgress(w io.Writer, message string, quiet bool) *Progress {
	if quiet || !IsTerminal(w) {
		return &Progress{}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + message
	s.Start()
	return &Progress{s: s}
}

// Stop stops the spinner, leaving an optional final line.
func (p *Progress) Stop(final string) {
	if p == nil || p.s == nil {
		return
	}
	if final != "" {
		p.s.FinalMSG = final + "\n"
	}
	p.s.Stop()
}

// Fail stops the spinner with a red final line.
func (p *Progress) Fail(final string) {
	p.Stop(text.FgRed.Sprint(final))
}
