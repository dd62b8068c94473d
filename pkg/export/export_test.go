package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"action", "comment"},
		Rows: []map[string]string{
			{"action": "APPROVE", "comment": "ok"},
			{"action": "REJECT", "comment": "=HYPERLINK(\"x\")"},
		},
	})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "action,comment", lines[0])
	assert.Equal(t, "APPROVE,ok", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "REJECT,\"'=HYPERLINK"))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	sheet := Sheet{
		Title:     "Office Closure",
		Reference: "MEMO/OPS/2026/abcd1234",
		Fields:    []Field{{Label: "Department", Value: "OPS"}},
		Body:      "The office is closed on Friday.",
		Signature: "Head of Operations",
		Footer:    "DOC-1234",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	out, err := NewPDFExporter().Render(sheet)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterRequiresTitle(t *testing.T) {
	_, err := NewPDFExporter().Render(Sheet{})
	require.Error(t, err)
}
