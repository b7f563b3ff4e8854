package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/referral-bot/internal/models"
	appErrors "github.com/noah-isme/referral-bot/pkg/errors"
)

const timestampLayout = "2006-01-02 15:04:05"

type participantStore interface {
	FindByExternalID(ctx context.Context, externalID string) (*models.ParticipantRecord, error)
	FindByID(ctx context.Context, participantID int) (*models.ParticipantRecord, error)
	MaxParticipantID(ctx context.Context) (int, error)
	AppendParticipant(ctx context.Context, p models.Participant) error
	BackfillIdentity(ctx context.Context, participantID int, chatID, externalID string) error
	ParticipantPoints(ctx context.Context, participantID int) (int, error)
	ListParticipants(ctx context.Context) ([]models.ParticipantRecord, error)
}

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// ParticipantService registers participants and answers questions about them.
type ParticipantService struct {
	store     participantStore
	allocator IDAllocator
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewParticipantService constructs a ParticipantService.
func NewParticipantService(store participantStore, allocator IDAllocator, validate *validator.Validate, logger *zap.Logger) *ParticipantService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if allocator == nil {
		allocator = NewSerialAllocator()
	}
	return &ParticipantService{store: store, allocator: allocator, validator: validate, logger: logger, now: time.Now}
}

// Register appends a new participant row. An identity that already owns a row
// gets ErrConflict and nothing is written.
func (s *ParticipantService) Register(ctx context.Context, req models.RegisterRequest) (*models.Participant, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	existing, err := s.store.FindByExternalID(ctx, req.ExternalID)
	switch {
	case err == nil:
		s.logger.Info("registration skipped, identity already registered",
			zap.String("external_id", req.ExternalID), zap.Int("participant_id", existing.ID))
		return nil, appErrors.Clone(appErrors.ErrConflict, "participant already registered")
	case !errors.Is(err, appErrors.ErrNotFound):
		return nil, err
	}

	floor, err := s.store.MaxParticipantID(ctx)
	if err != nil {
		return nil, err
	}
	id, err := s.allocator.Next(ctx, floor)
	if err != nil {
		s.logger.Error("allocate participant id failed", zap.Int("floor", floor), zap.Error(err))
		return nil, appErrors.Unavailable(err, "failed to allocate participant id")
	}

	participant := models.Participant{
		ID:         id,
		Name:       req.Name,
		Cohort:     req.Cohort,
		Timestamp:  s.now().Format(timestampLayout),
		ChatID:     req.ChatID,
		ExternalID: req.ExternalID,
	}
	if err := s.store.AppendParticipant(ctx, participant); err != nil {
		return nil, err
	}

	s.logger.Info("participant registered", zap.Int("participant_id", id), zap.String("external_id", req.ExternalID))
	return &participant, nil
}

// List returns one page of participants in sheet order with pagination metadata.
func (s *ParticipantService) List(ctx context.Context, filter models.ParticipantFilter) ([]models.Participant, *models.Pagination, error) {
	records, err := s.store.ListParticipants(ctx)
	if err != nil {
		return nil, nil, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	participants := make([]models.Participant, 0, pageSize)
	start := (page - 1) * pageSize
	for i := start; i < len(records) && i < start+pageSize; i++ {
		participants = append(participants, records[i].Participant)
	}

	return participants, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: len(records)}, nil
}

// Lookup resolves the participant owning externalID.
func (s *ParticipantService) Lookup(ctx context.Context, externalID string) (*models.ParticipantRecord, error) {
	return s.store.FindByExternalID(ctx, externalID)
}

// Welcome resolves a returning participant and records their chat destination
// when the row does not have one yet.
func (s *ParticipantService) Welcome(ctx context.Context, externalID, chatID string) (*models.ParticipantRecord, error) {
	rec, err := s.store.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if rec.ChatID == "" && chatID != "" {
		if err := s.store.BackfillIdentity(ctx, rec.ID, chatID, externalID); err != nil {
			s.logger.Warn("backfill chat destination failed", zap.Int("participant_id", rec.ID), zap.Error(err))
		} else {
			rec.ChatID = chatID
		}
	}
	return rec, nil
}

// Stats returns the participant owning externalID with points and leads.
func (s *ParticipantService) Stats(ctx context.Context, externalID string) (*models.ParticipantStats, error) {
	rec, err := s.store.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	return s.stats(ctx, rec)
}

// Get returns a participant by id with points and leads.
func (s *ParticipantService) Get(ctx context.Context, participantID int) (*models.ParticipantStats, error) {
	rec, err := s.store.FindByID(ctx, participantID)
	if err != nil {
		return nil, err
	}
	return s.stats(ctx, rec)
}

func (s *ParticipantService) stats(ctx context.Context, rec *models.ParticipantRecord) (*models.ParticipantStats, error) {
	points, err := s.store.ParticipantPoints(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	leads := rec.Leads
	if leads == nil {
		leads = []models.Lead{}
	}
	return &models.ParticipantStats{Participant: rec.Participant, Points: points, Leads: leads}, nil
}
