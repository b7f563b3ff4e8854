package models

// ExportFormat selects how a lead export is rendered.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportFile is a rendered export ready to be streamed to a client.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}
