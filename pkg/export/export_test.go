package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"Participant", "Child"},
		Rows: []map[string]string{
			{"Participant": "7", "Child": "Anna, \"Ann\""},
			{"Participant": "8"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Participant", "Child"},
		{"7", "Anna, \"Ann\""},
		{"8", ""},
	}, records)
}

func TestCSVExporterOptions(t *testing.T) {
	data := Dataset{
		Headers: []string{"Child", "Phone"},
		Rows:    []map[string]string{{"Child": "=HYPERLINK(\"x\")", "Phone": "+79991234567"}},
	}

	out, err := NewCSVExporter(WithBOM(), WithFormulaGuard()).Render(data)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, utf8BOM))

	records, err := csv.NewReader(bytes.NewReader(out[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"'=HYPERLINK(\"x\")", "+79991234567"}, records[1])

	plain, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.False(t, bytes.HasPrefix(plain, utf8BOM))
	assert.True(t, bytes.HasPrefix(plain, []byte("Child,Phone")))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter("").Render(sampleDataset(), "Leads")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterMissingFont(t *testing.T) {
	_, err := NewPDFExporter("/nonexistent/font.ttf").Render(sampleDataset(), "Leads")
	assert.Error(t, err)
}
