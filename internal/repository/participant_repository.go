package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/referral-bot/internal/codec"
	"github.com/noah-isme/referral-bot/internal/models"
	appErrors "github.com/noah-isme/referral-bot/pkg/errors"
	"github.com/noah-isme/referral-bot/pkg/sheets"
)

const (
	fullRange   = "A:R"
	idRange     = "B:B"
	pointsRange = "B:L"
	appendRange = "B:R"
	headerRows  = 1
)

// SheetCallObserver records latency of spreadsheet round trips.
type SheetCallObserver interface {
	ObserveSheetCall(op string, duration time.Duration, err error)
}

// ParticipantRepository persists participants and their leads in the sheet.
// Every call re-reads the sheet; nothing is cached and there is no locking,
// so a concurrent human edit between a read and a write is overwritten.
type ParticipantRepository struct {
	grid     sheets.Grid
	logger   *zap.Logger
	observer SheetCallObserver
}

// NewParticipantRepository constructs a ParticipantRepository.
func NewParticipantRepository(grid sheets.Grid, logger *zap.Logger, observer SheetCallObserver) *ParticipantRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParticipantRepository{grid: grid, logger: logger, observer: observer}
}

// FindByExternalID returns the first row whose identity column matches.
func (r *ParticipantRepository) FindByExternalID(ctx context.Context, externalID string) (*models.ParticipantRecord, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "participant not found")
	}
	return r.find(ctx, "find_by_external_id", func(row []string) bool {
		return strings.TrimSpace(cell(row, codec.ColExternalID)) == externalID
	})
}

// FindByID returns the row holding participantID.
func (r *ParticipantRepository) FindByID(ctx context.Context, participantID int) (*models.ParticipantRecord, error) {
	return r.find(ctx, "find_by_id", matchID(participantID))
}

// MaxParticipantID scans the id column and returns the largest integer, or 0.
func (r *ParticipantRepository) MaxParticipantID(ctx context.Context) (int, error) {
	rows, err := r.read(ctx, "max_participant_id", idRange)
	if err != nil {
		return 0, err
	}
	max := 0
	for _, row := range dataRows(rows) {
		if len(row) == 0 {
			continue
		}
		if id, convErr := strconv.Atoi(strings.TrimSpace(row[0])); convErr == nil && id > max {
			max = id
		}
	}
	return max, nil
}

// AppendParticipant adds a new row below the last one. Column A is not written.
func (r *ParticipantRepository) AppendParticipant(ctx context.Context, p models.Participant) error {
	row := codec.EncodeParticipant(p)
	start := time.Now()
	err := r.grid.Append(ctx, appendRange, row[codec.ColParticipantID:])
	r.observe("append_participant", start, err)
	if err != nil {
		r.logger.Error("append participant failed", zap.Int("participant_id", p.ID), zap.Error(err))
		return appErrors.Unavailable(err, "failed to append participant")
	}
	return nil
}

// AppendLead packs lead onto the participant's row and writes back only the
// lead columns (E–K) and the program column (O). Points and status are left
// for the humans who reconcile them.
func (r *ParticipantRepository) AppendLead(ctx context.Context, participantID int, lead models.Lead) error {
	rows, err := r.read(ctx, "append_lead", fullRange)
	if err != nil {
		return err
	}
	idx, raw := locate(rows, matchID(participantID))
	if idx < 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "participant not found")
	}
	sheetRow := idx + 1
	updated := codec.AppendLead(raw, lead)

	start := time.Now()
	err = r.grid.BatchWrite(ctx, []sheets.Update{
		{
			Range: sheets.RowRange(codec.FirstLeadCol, codec.LastLeadCol, sheetRow),
			Rows:  [][]string{updated[codec.FirstLeadCol : codec.LastLeadCol+1]},
		},
		{
			Range: sheets.RowRange(codec.ColProgram, codec.ColProgram, sheetRow),
			Rows:  [][]string{{updated[codec.ColProgram]}},
		},
	})
	r.observe("append_lead_write", start, err)
	if err != nil {
		r.logger.Error("append lead failed", zap.Int("participant_id", participantID), zap.Int("row", sheetRow), zap.Error(err))
		return appErrors.Unavailable(err, "failed to write lead")
	}
	return nil
}

// BackfillIdentity fills the destination and identity cells of a row only
// where they are still empty. A recorded value is never overwritten.
func (r *ParticipantRepository) BackfillIdentity(ctx context.Context, participantID int, chatID, externalID string) error {
	rows, err := r.read(ctx, "backfill_identity", fullRange)
	if err != nil {
		return err
	}
	idx, raw := locate(rows, matchID(participantID))
	if idx < 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "participant not found")
	}
	row := codec.Pad(raw)
	current := []string{row[codec.ColChatID], row[codec.ColExternalID]}
	next := []string{firstWrite(current[0], chatID), firstWrite(current[1], externalID)}
	if next[0] == current[0] && next[1] == current[1] {
		return nil
	}

	rng := sheets.RowRange(codec.ColChatID, codec.ColExternalID, idx+1)
	start := time.Now()
	err = r.grid.Write(ctx, rng, [][]string{next})
	r.observe("backfill_identity_write", start, err)
	if err != nil {
		r.logger.Error("backfill identity failed", zap.Int("participant_id", participantID), zap.Error(err))
		return appErrors.Unavailable(err, "failed to backfill identity")
	}
	return nil
}

// ParticipantPoints returns the points cell of a participant. Missing rows and
// unparsable cells count as zero.
func (r *ParticipantRepository) ParticipantPoints(ctx context.Context, participantID int) (int, error) {
	rows, err := r.read(ctx, "participant_points", pointsRange)
	if err != nil {
		return 0, err
	}
	want := strconv.Itoa(participantID)
	offset := codec.ColPoints - codec.ColParticipantID
	for _, row := range dataRows(rows) {
		if strings.TrimSpace(cell(row, 0)) != want {
			continue
		}
		points, convErr := strconv.Atoi(strings.TrimSpace(cell(row, offset)))
		if convErr != nil {
			return 0, nil
		}
		return points, nil
	}
	return 0, nil
}

// ParticipantLeads unpacks every lead stored on the participant's row.
func (r *ParticipantRepository) ParticipantLeads(ctx context.Context, participantID int) ([]models.Lead, error) {
	rec, err := r.FindByID(ctx, participantID)
	if err != nil {
		return nil, err
	}
	return rec.Leads, nil
}

// ListParticipants decodes every data row that carries a participant id.
func (r *ParticipantRepository) ListParticipants(ctx context.Context) ([]models.ParticipantRecord, error) {
	rows, err := r.read(ctx, "list_participants", fullRange)
	if err != nil {
		return nil, err
	}
	records := make([]models.ParticipantRecord, 0, len(rows))
	for i, row := range rows {
		if i < headerRows || strings.TrimSpace(cell(row, codec.ColParticipantID)) == "" {
			continue
		}
		rec := codec.Decode(row)
		rec.Row = i + 1
		records = append(records, rec)
	}
	return records, nil
}

// ListDestinations returns every non-empty chat destination in sheet order.
func (r *ParticipantRepository) ListDestinations(ctx context.Context) ([]string, error) {
	rows, err := r.read(ctx, "list_destinations", fullRange)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, row := range dataRows(rows) {
		if dest := strings.TrimSpace(cell(row, codec.ColChatID)); dest != "" {
			out = append(out, dest)
		}
	}
	return out, nil
}

// Ping performs the cheapest possible read to prove the sheet is reachable.
func (r *ParticipantRepository) Ping(ctx context.Context) error {
	_, err := r.read(ctx, "ping", "B1:B1")
	return err
}

func (r *ParticipantRepository) find(ctx context.Context, op string, match func([]string) bool) (*models.ParticipantRecord, error) {
	rows, err := r.read(ctx, op, fullRange)
	if err != nil {
		return nil, err
	}
	idx, raw := locate(rows, match)
	if idx < 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "participant not found")
	}
	rec := codec.Decode(raw)
	rec.Row = idx + 1
	return &rec, nil
}

func (r *ParticipantRepository) read(ctx context.Context, op, rng string) ([][]string, error) {
	start := time.Now()
	rows, err := r.grid.Read(ctx, rng)
	r.observe(op, start, err)
	if err != nil {
		r.logger.Error("sheet read failed", zap.String("op", op), zap.String("range", rng), zap.Error(err))
		return nil, appErrors.Unavailable(err, "failed to read sheet")
	}
	return rows, nil
}

func (r *ParticipantRepository) observe(op string, start time.Time, err error) {
	if r.observer != nil {
		r.observer.ObserveSheetCall(op, time.Since(start), err)
	}
}

func matchID(participantID int) func([]string) bool {
	want := strconv.Itoa(participantID)
	return func(row []string) bool {
		return strings.TrimSpace(cell(row, codec.ColParticipantID)) == want
	}
}

// locate returns the 0-based index of the first data row matching, or -1.
func locate(rows [][]string, match func([]string) bool) (int, []string) {
	for i := headerRows; i < len(rows); i++ {
		if match(rows[i]) {
			return i, rows[i]
		}
	}
	return -1, nil
}

func dataRows(rows [][]string) [][]string {
	if len(rows) <= headerRows {
		return nil
	}
	return rows[headerRows:]
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

func firstWrite(current, candidate string) string {
	if strings.TrimSpace(current) != "" {
		return current
	}
	return candidate
}
