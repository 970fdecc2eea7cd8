package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonTerminalWriters(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, IsTerminal(&buf))
	assert.Equal(t, defaultWidth, TerminalWidth(&buf))

	p := StartProgress(&buf, "Scanning", false)
	p.Stop("done")
	p.Fail("failed")
	assert.Empty(t, buf.String(), "no spinner output off a terminal")
}

func TestRenderMarkdownPlain(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, "", RenderMarkdown(&buf, "  \n"))
	assert.Equal(t, "# Blender\n\nOpen source 3D.\n", RenderMarkdown(&buf, "# Blender\n\nOpen source 3D.\n\n"))
}

func TestRenderStyled(t *testing.T) {
	out, err := renderStyled("# Houdini\n\n**Procedural** tools.", 60)
	require.NoError(t, err)
	assert.Contains(t, out, "Houdini")
	assert.Contains(t, out, "Procedural")
}
