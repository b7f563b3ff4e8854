package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/referral-bot/internal/models"
	appErrors "github.com/noah-isme/referral-bot/pkg/errors"
)

type mockLeadStore struct {
	records   map[string]*models.ParticipantRecord
	leads     map[int][]models.Lead
	backfills [][2]string
	writes    int
	appendErr error
}

func newMockLeadStore() *mockLeadStore {
	return &mockLeadStore{records: map[string]*models.ParticipantRecord{}, leads: map[int][]models.Lead{}}
}

func (m *mockLeadStore) FindByExternalID(ctx context.Context, externalID string) (*models.ParticipantRecord, error) {
	rec, ok := m.records[externalID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "participant not found")
	}
	copied := *rec
	return &copied, nil
}

func (m *mockLeadStore) BackfillIdentity(ctx context.Context, participantID int, chatID, externalID string) error {
	m.writes++
	m.backfills = append(m.backfills, [2]string{chatID, externalID})
	return nil
}

func (m *mockLeadStore) AppendLead(ctx context.Context, participantID int, lead models.Lead) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.writes++
	m.leads[participantID] = append(m.leads[participantID], lead)
	return nil
}

func (m *mockLeadStore) ParticipantLeads(ctx context.Context, participantID int) ([]models.Lead, error) {
	return m.leads[participantID], nil
}

func validLead() models.Lead {
	return models.Lead{
		ChildName:     "Петров Петр",
		Age:           12,
		Grade:         6,
		ContactHandle: "@petr",
		Phone:         "+79991234567",
		GuardianName:  "Петрова Анна",
		GuardianPhone: "+79997654321",
		ProgramType:   models.ProgramCampDO,
	}
}

func TestLeadServiceSubmitBackfillsAndAppends(t *testing.T) {
	store := newMockLeadStore()
	store.records["1000"] = &models.ParticipantRecord{Participant: models.Participant{ID: 4, ExternalID: "1000"}}
	svc := NewLeadService(store, nil, zap.NewNop())

	rec, err := svc.Submit(context.Background(), models.SubmitLeadRequest{ExternalID: "1000", ChatID: "77", Lead: validLead()})
	require.NoError(t, err)
	assert.Equal(t, 4, rec.ID)
	assert.Equal(t, [][2]string{{"77", "1000"}}, store.backfills)

	leads, err := svc.Leads(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, []models.Lead{validLead()}, leads)
}

func TestLeadServiceSubmitSkipsBackfillWhenKnown(t *testing.T) {
	store := newMockLeadStore()
	store.records["1000"] = &models.ParticipantRecord{Participant: models.Participant{ID: 4, ChatID: "77", ExternalID: "1000"}}
	svc := NewLeadService(store, nil, zap.NewNop())

	_, err := svc.Submit(context.Background(), models.SubmitLeadRequest{ExternalID: "1000", ChatID: "77", Lead: validLead()})
	require.NoError(t, err)
	assert.Empty(t, store.backfills)
	assert.Equal(t, 1, store.writes)
}

func TestLeadServiceUnregisteredParticipantWritesNothing(t *testing.T) {
	store := newMockLeadStore()
	svc := NewLeadService(store, nil, zap.NewNop())

	_, err := svc.EnsureRegistered(context.Background(), "404")
	assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))

	_, err = svc.Submit(context.Background(), models.SubmitLeadRequest{ExternalID: "404", ChatID: "404", Lead: validLead()})
	assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))
	assert.Equal(t, 0, store.writes)
}

func TestLeadServiceGradeBounds(t *testing.T) {
	for _, tc := range []struct {
		grade int
		ok    bool
	}{{3, false}, {4, true}, {9, true}, {10, false}} {
		t.Run(fmt.Sprintf("grade_%d", tc.grade), func(t *testing.T) {
			store := newMockLeadStore()
			store.records["1"] = &models.ParticipantRecord{Participant: models.Participant{ID: 1, ChatID: "1", ExternalID: "1"}}
			svc := NewLeadService(store, nil, zap.NewNop())

			lead := validLead()
			lead.Grade = tc.grade
			_, err := svc.Submit(context.Background(), models.SubmitLeadRequest{ExternalID: "1", ChatID: "1", Lead: lead})
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, appErrors.ErrValidation))
			assert.Equal(t, 0, store.writes)
		})
	}
}

func TestLeadServiceRejectsUnnormalisedPhone(t *testing.T) {
	store := newMockLeadStore()
	store.records["1"] = &models.ParticipantRecord{Participant: models.Participant{ID: 1, ChatID: "1", ExternalID: "1"}}
	svc := NewLeadService(store, nil, zap.NewNop())

	lead := validLead()
	lead.Phone = "89991234567"
	_, err := svc.Submit(context.Background(), models.SubmitLeadRequest{ExternalID: "1", ChatID: "1", Lead: lead})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestLeadServiceAppendFailure(t *testing.T) {
	store := newMockLeadStore()
	store.records["1"] = &models.ParticipantRecord{Participant: models.Participant{ID: 1, ChatID: "1", ExternalID: "1"}}
	store.appendErr = appErrors.Unavailable(errors.New("timeout"), "failed to write lead")
	svc := NewLeadService(store, nil, zap.NewNop())

	_, err := svc.Submit(context.Background(), models.SubmitLeadRequest{ExternalID: "1", ChatID: "1", Lead: validLead()})
	assert.True(t, errors.Is(err, appErrors.ErrStoreUnavailable))
}
