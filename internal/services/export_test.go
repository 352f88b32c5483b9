package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
)

func TestParseExportFormat(t *testing.T) {
	for input, want := range map[string]ExportFormat{
		"":     ExportJSON,
		"JSON": ExportJSON,
		"csv":  ExportCSV,
		"txt":  ExportText,
		"text": ExportText,
	} {
		got, err := ParseExportFormat(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseExportFormat("xml")
	assert.Equal(t, KindValidation, ErrorKind(err))

	assert.Equal(t, "txt", ExportText.Extension())
	assert.Equal(t, "text/csv; charset=utf-8", ExportCSV.ContentType())
}

func TestExportHistoryRecords_EmptyJSON(t *testing.T) {
	out, err := ExportHistoryRecords(nil, ExportJSON)
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}

func TestExportHistoryRecords_OptionalColumnsBlank(t *testing.T) {
	out, err := ExportHistoryRecords([]models.HistoryRecord{{ID: "r1", Status: models.RecordInProgress}}, ExportCSV)
	require.NoError(t, err)
	assert.Contains(t, out, "r1,,,0001-01-01T00:00:00Z,in_progress,,,,0,,")
}
