package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}

func TestRenderTable(t *testing.T) {
	out := RenderTable([]string{"Metric", "Value"}, [][]string{
		{"hits", "12"},
		{"misses", "3"},
	}, 1)
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 6)
	assert.Contains(t, out, "Metric")
	assert.Contains(t, out, "misses")

	widths := map[int]bool{}
	for _, line := range lines {
		widths[lipgloss.Width(line)] = true
	}
	assert.Len(t, widths, 1, "every line has the same width")
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	Table(&buf, []string{"a"}, [][]string{{"1"}})
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
	assert.Contains(t, buf.String(), "1")
}

func TestStyles(t *testing.T) {
	for _, fn := range []func(string) string{Title, Bold, Muted, Warning} {
		assert.Contains(t, fn("hello"), "hello")
	}
}
