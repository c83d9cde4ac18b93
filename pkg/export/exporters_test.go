package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	exporter := NewCSVExporter()
	data := Dataset{
		Headers: []string{"Date", "Skill", "Observation"},
		Rows: [][]string{
			{"2026-02-10", "Collaboration", "Shared materials with, and guided, a partner"},
			{"2026-02-12", "Perseverance", "Retried the puzzle after two failures"},
		},
	}

	out, err := exporter.Render(data)
	require.NoError(t, err)

	parsed, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, parsed, 3)
	assert.Equal(t, data.Headers, parsed[0])
	assert.Equal(t, data.Rows[0], parsed[1])
	assert.Equal(t, data.Rows[1], parsed[2])
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	exporter := NewCSVExporter()
	_, err := exporter.Render(Dataset{Rows: [][]string{{"a"}}})
	require.Error(t, err)
}

func TestCSVExporterRejectsRaggedRow(t *testing.T) {
	exporter := NewCSVExporter()
	_, err := exporter.Render(Dataset{
		Headers: []string{"Date", "Skill"},
		Rows:    [][]string{{"2026-02-10"}},
	})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	exporter := NewPDFExporter()
	out, err := exporter.Render(Narrative{
		Title:    "Learning Journey Report",
		Subtitle: "Student: Ada",
		Date:     "February 10, 2026",
		Body:     "Dear Parents,\n\nAda has grown steadily this term.\n\nWarm regards",
	})
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterRequiresTitle(t *testing.T) {
	exporter := NewPDFExporter()
	_, err := exporter.Render(Narrative{Body: "body"})
	require.Error(t, err)
}

func TestSplitParagraphs(t *testing.T) {
	paragraphs := splitParagraphs("First block.\r\n\r\nSecond block.\n\n\n\nThird.")
	assert.Equal(t, []string{"First block.", "Second block.", "Third."}, paragraphs)
}
