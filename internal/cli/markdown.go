package cli

import (
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
)

// RenderMarkdown renders md for display on w. On a terminal it is styled
// through glamour and wrapped to the terminal width; elsewhere md is
// returned unchanged with a trailing newline.
func RenderMarkdown(w io.Writer, md string) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	plain := strings.TrimRight(md, "\n") + "\n"
	if !IsTerminal(w) {
		return plain
	}
	out, err := renderStyled(md, TerminalWidth(w))
	if err != nil {
		return plain
	}
	return out
}

func renderStyled(md string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(md)
}
