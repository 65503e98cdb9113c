package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	oldOut, oldErr, oldNoColor := Stdout, Stderr, color.NoColor
	Stdout, Stderr, color.NoColor = &out, &errOut, true
	t.Cleanup(func() {
		Stdout, Stderr, color.NoColor = oldOut, oldErr, oldNoColor
	})
	return &out, &errOut
}

func TestMessages(t *testing.T) {
	out, errOut := capture(t)

	Success("Created %d items", 5)
	Info("plain")
	Warn("careful")
	Error("failed: %s", "boom")

	assert.Contains(t, out.String(), "✓ Created 5 items")
	assert.Contains(t, out.String(), "plain\n")
	assert.Contains(t, out.String(), "⚠ careful")
	assert.Equal(t, "✗ failed: boom\n", errOut.String())
}

func TestRender_Formats(t *testing.T) {
	v := map[string]int{"count": 2}

	out, _ := capture(t)
	require.NoError(t, Render("json", v, nil))
	assert.JSONEq(t, `{"count":2}`, out.String())

	out.Reset()
	require.NoError(t, Render("yaml", v, nil))
	assert.Equal(t, "count: 2\n", out.String())

	assert.Error(t, Render("xml", v, nil))
}

func TestTable_Render(t *testing.T) {
	out, _ := capture(t)

	table := NewTable("NAME", "COUNT")
	table.AddRow("script-src", "12")
	table.AddRow("img-src", "3")
	require.NoError(t, Render("table", nil, func() *Table { return table }))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.True(t, strings.HasPrefix(lines[1], "----------"))
	assert.Contains(t, lines[2], "script-src  12")
	assert.Equal(t, 2, table.Len())
}
