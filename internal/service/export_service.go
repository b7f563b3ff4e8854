package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/referral-bot/internal/models"
	appErrors "github.com/noah-isme/referral-bot/pkg/errors"
	"github.com/noah-isme/referral-bot/pkg/export"
)

type participantLister interface {
	ListParticipants(ctx context.Context) ([]models.ParticipantRecord, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

var leadExportHeaders = []string{
	"Participant ID", "Participant", "Cohort", "Child", "Age", "Grade", "Telegram",
	"Phone", "Guardian", "Guardian phone", "Program", "Points", "Status",
}

// ExportService flattens every lead with its participant into a table.
type ExportService struct {
	store  participantLister
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(store participantLister, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter("")
	}
	return &ExportService{store: store, csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// Leads renders every lead in the sheet in the requested format.
func (s *ExportService) Leads(ctx context.Context, format models.ExportFormat) (*models.ExportFile, error) {
	if format != models.ExportFormatCSV && format != models.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	records, err := s.store.ListParticipants(ctx)
	if err != nil {
		return nil, err
	}
	dataset := buildLeadDataset(records)
	generatedAt := s.now().UTC()

	file := &models.ExportFile{
		Filename: fmt.Sprintf("leads_%s.%s", generatedAt.Format("20060102_150405"), format),
	}
	switch format {
	case models.ExportFormatCSV:
		file.ContentType = "text/csv; charset=utf-8"
		file.Data, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		file.ContentType = "application/pdf"
		file.Data, err = s.pdf.Render(dataset, "Leads "+generatedAt.Format("2006-01-02"))
	}
	if err != nil {
		s.logger.Error("render lead export failed", zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Info("lead export rendered",
		zap.String("format", string(format)),
		zap.Int("participants", len(records)),
		zap.Int("leads", len(dataset.Rows)),
	)
	return file, nil
}

func buildLeadDataset(records []models.ParticipantRecord) export.Dataset {
	rows := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		for _, lead := range rec.Leads {
			rows = append(rows, map[string]string{
				"Participant ID": strconv.Itoa(rec.ID),
				"Participant":    rec.Name,
				"Cohort":         strconv.Itoa(rec.Cohort),
				"Child":          lead.ChildName,
				"Age":            strconv.Itoa(lead.Age),
				"Grade":          strconv.Itoa(lead.Grade),
				"Telegram":       lead.ContactHandle,
				"Phone":          lead.Phone,
				"Guardian":       lead.GuardianName,
				"Guardian phone": lead.GuardianPhone,
				"Program":        string(lead.ProgramType),
				"Points":         strconv.Itoa(rec.Points),
				"Status":         rec.Status,
			})
		}
	}
	return export.Dataset{Headers: leadExportHeaders, Rows: rows}
}
