package table

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettingsTableRender(t *testing.T) {
	var buf bytes.Buffer
	st := NewSettingsTable(&buf)
	st.AddRow("host", "build.example.com")
	st.AddRow("agent", "")
	st.Render()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "SETTING")
	assert.Contains(t, lines[0], "VALUE")
	assert.Contains(t, lines[1], "host")
	assert.Contains(t, lines[1], "build.example.com")
	assert.Contains(t, lines[2], "agent")
	assert.Contains(t, lines[2], "-")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"Short string", "abc", 5, "abc"},
		{"Exact length", "abcde", 5, "abcde"},
		{"Long string", "abcdefghij", 8, "abcde..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, truncate(tt.input, tt.maxLen))
		})
	}
}

func TestAddRowTruncatesLongValues(t *testing.T) {
	var buf bytes.Buffer
	st := NewSettingsTable(&buf)
	st.AddRow("known_hosts", strings.Repeat("x", ValueWidth+10))
	st.Render()

	assert.Contains(t, buf.String(), strings.Repeat("x", ValueWidth-3)+"...")
	assert.NotContains(t, buf.String(), strings.Repeat("x", ValueWidth-2))
}
