package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/referral-bot/internal/models"
	appErrors "github.com/noah-isme/referral-bot/pkg/errors"
	"github.com/noah-isme/referral-bot/pkg/export"
)

type stubParticipantLister struct {
	records []models.ParticipantRecord
	err     error
}

func (s stubParticipantLister) ListParticipants(ctx context.Context) ([]models.ParticipantRecord, error) {
	return s.records, s.err
}

func exportRecords() []models.ParticipantRecord {
	return []models.ParticipantRecord{
		{
			Participant: models.Participant{ID: 1, Name: "Ann", Cohort: 2, Points: 15, Status: "Проверено"},
			Leads:       []models.Lead{validLead(), {ChildName: "Second", Grade: 9, ProgramType: models.ProgramCollege}},
		},
		{Participant: models.Participant{ID: 2, Name: "Bob", Cohort: 1}},
	}
}

func newExportServiceForTest(store participantLister) *ExportService {
	svc := NewExportService(store, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter(""))
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestExportServiceLeadsCSV(t *testing.T) {
	svc := newExportServiceForTest(stubParticipantLister{records: exportRecords()})

	file, err := svc.Leads(context.Background(), models.ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "leads_20240601_120000.csv", file.Filename)
	assert.Contains(t, file.ContentType, "text/csv")

	records, err := csv.NewReader(bytes.NewReader(file.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, leadExportHeaders, records[0])
	assert.Equal(t, "1", records[1][0])
	assert.Equal(t, "Петров Петр", records[1][3])
	assert.Equal(t, "college", records[2][10])
	assert.Equal(t, "15", records[2][11])
}

func TestExportServiceLeadsPDF(t *testing.T) {
	svc := newExportServiceForTest(stubParticipantLister{records: exportRecords()})

	file, err := svc.Leads(context.Background(), models.ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Data, []byte("%PDF")))
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc := newExportServiceForTest(stubParticipantLister{})
	_, err := svc.Leads(context.Background(), "xlsx")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestExportServicePropagatesStoreFailure(t *testing.T) {
	svc := newExportServiceForTest(stubParticipantLister{err: appErrors.Unavailable(errors.New("down"), "failed to read sheet")})
	_, err := svc.Leads(context.Background(), models.ExportFormatCSV)
	assert.True(t, errors.Is(err, appErrors.ErrStoreUnavailable))
}
