package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/referral-bot/internal/models"
	appErrors "github.com/noah-isme/referral-bot/pkg/errors"
)

type leadStore interface {
	FindByExternalID(ctx context.Context, externalID string) (*models.ParticipantRecord, error)
	BackfillIdentity(ctx context.Context, participantID int, chatID, externalID string) error
	AppendLead(ctx context.Context, participantID int, lead models.Lead) error
	ParticipantLeads(ctx context.Context, participantID int) ([]models.Lead, error)
}

// LeadService attaches referred leads to participants.
type LeadService struct {
	store     leadStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLeadService constructs a LeadService.
func NewLeadService(store leadStore, validate *validator.Validate, logger *zap.Logger) *LeadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &LeadService{store: store, validator: validate, logger: logger}
}

// EnsureRegistered is the entry check of the lead dialogue. An unknown
// identity yields ErrPreconditionFailed.
func (s *LeadService) EnsureRegistered(ctx context.Context, externalID string) (*models.ParticipantRecord, error) {
	rec, err := s.store.FindByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "participant not registered")
		}
		return nil, err
	}
	return rec, nil
}

// Submit re-resolves the participant, fills in its chat identity when still
// empty and appends the lead to its row.
func (s *LeadService) Submit(ctx context.Context, req models.SubmitLeadRequest) (*models.ParticipantRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lead payload")
	}

	rec, err := s.EnsureRegistered(ctx, req.ExternalID)
	if err != nil {
		return nil, err
	}

	if rec.ChatID == "" || rec.ExternalID == "" {
		if err := s.store.BackfillIdentity(ctx, rec.ID, req.ChatID, req.ExternalID); err != nil {
			return nil, err
		}
	}

	if err := s.store.AppendLead(ctx, rec.ID, req.Lead); err != nil {
		return nil, err
	}

	s.logger.Info("lead added",
		zap.Int("participant_id", rec.ID),
		zap.String("program", string(req.Lead.ProgramType)),
		zap.Int("grade", req.Lead.Grade),
	)
	return rec, nil
}

// Leads lists the leads of a participant in submission order.
func (s *LeadService) Leads(ctx context.Context, participantID int) ([]models.Lead, error) {
	return s.store.ParticipantLeads(ctx, participantID)
}
