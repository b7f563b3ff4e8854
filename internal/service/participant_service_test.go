package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/referral-bot/internal/models"
	"github.com/noah-isme/referral-bot/internal/repository"
	appErrors "github.com/noah-isme/referral-bot/pkg/errors"
	"github.com/noah-isme/referral-bot/pkg/sheets"
)

type mockParticipantStore struct {
	records     map[string]*models.ParticipantRecord
	maxID       int
	points      map[int]int
	appended    []models.Participant
	backfills   int
	findErr     error
	appendErr   error
	backfillErr error
}

func newMockParticipantStore() *mockParticipantStore {
	return &mockParticipantStore{records: map[string]*models.ParticipantRecord{}, points: map[int]int{}}
}

func (m *mockParticipantStore) FindByExternalID(ctx context.Context, externalID string) (*models.ParticipantRecord, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	rec, ok := m.records[externalID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "participant not found")
	}
	copied := *rec
	return &copied, nil
}

func (m *mockParticipantStore) FindByID(ctx context.Context, participantID int) (*models.ParticipantRecord, error) {
	for _, rec := range m.records {
		if rec.ID == participantID {
			copied := *rec
			return &copied, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "participant not found")
}

func (m *mockParticipantStore) MaxParticipantID(ctx context.Context) (int, error) {
	return m.maxID, nil
}

func (m *mockParticipantStore) AppendParticipant(ctx context.Context, p models.Participant) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.appended = append(m.appended, p)
	return nil
}

func (m *mockParticipantStore) BackfillIdentity(ctx context.Context, participantID int, chatID, externalID string) error {
	m.backfills++
	return m.backfillErr
}

func (m *mockParticipantStore) ParticipantPoints(ctx context.Context, participantID int) (int, error) {
	return m.points[participantID], nil
}

func (m *mockParticipantStore) ListParticipants(ctx context.Context) ([]models.ParticipantRecord, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	out := make([]models.ParticipantRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func newParticipantServiceForTest(store participantStore) *ParticipantService {
	svc := NewParticipantService(store, NewSerialAllocator(), nil, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC) }
	return svc
}

func TestParticipantServiceRegister(t *testing.T) {
	store := newMockParticipantStore()
	store.maxID = 41
	svc := newParticipantServiceForTest(store)

	p, err := svc.Register(context.Background(), models.RegisterRequest{
		ExternalID: "1000", ChatID: "1000", Name: "  Иванов Иван Иванович ", Cohort: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 42, p.ID)
	assert.Equal(t, "Иванов Иван Иванович", p.Name)
	assert.Equal(t, "2024-06-01 10:30:00", p.Timestamp)
	require.Len(t, store.appended, 1)
	assert.Equal(t, *p, store.appended[0])
}

func TestParticipantServiceRegisterCohortBounds(t *testing.T) {
	for _, tc := range []struct {
		cohort int
		ok     bool
	}{{0, false}, {1, true}, {4, true}, {5, false}} {
		t.Run(fmt.Sprintf("cohort_%d", tc.cohort), func(t *testing.T) {
			store := newMockParticipantStore()
			svc := newParticipantServiceForTest(store)
			_, err := svc.Register(context.Background(), models.RegisterRequest{
				ExternalID: "1", ChatID: "1", Name: "Ann", Cohort: tc.cohort,
			})
			if tc.ok {
				assert.NoError(t, err)
				assert.Len(t, store.appended, 1)
				return
			}
			assert.True(t, errors.Is(err, appErrors.ErrValidation))
			assert.Empty(t, store.appended)
		})
	}
}

func TestParticipantServiceRegisterAlreadyRegistered(t *testing.T) {
	store := newMockParticipantStore()
	store.records["1000"] = &models.ParticipantRecord{Participant: models.Participant{ID: 3, ExternalID: "1000"}}
	svc := newParticipantServiceForTest(store)

	_, err := svc.Register(context.Background(), models.RegisterRequest{ExternalID: "1000", ChatID: "1000", Name: "Ann", Cohort: 1})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.Empty(t, store.appended)
}

func TestParticipantServiceRegisterStoreUnavailable(t *testing.T) {
	store := newMockParticipantStore()
	store.findErr = appErrors.Unavailable(errors.New("quota"), "failed to read sheet")
	svc := newParticipantServiceForTest(store)

	_, err := svc.Register(context.Background(), models.RegisterRequest{ExternalID: "1", ChatID: "1", Name: "Ann", Cohort: 1})
	assert.True(t, errors.Is(err, appErrors.ErrStoreUnavailable))
	assert.Empty(t, store.appended)
}

func TestParticipantServiceConcurrentRegistrationsGetDistinctIDs(t *testing.T) {
	header := []string{"ID", "ID_участника", "ФИО", "Курс"}
	grid := sheets.NewMemoryGrid(header, []string{"", "7", "Existing", "1"})
	repo := repository.NewParticipantRepository(grid, zap.NewNop(), nil)
	svc := NewParticipantService(repo, NewSerialAllocator(), nil, zap.NewNop())

	const users = 20
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("%d", 5000+n)
			_, err := svc.Register(context.Background(), models.RegisterRequest{
				ExternalID: id, ChatID: id, Name: "User " + id, Cohort: 1,
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	records, err := repo.ListParticipants(context.Background())
	require.NoError(t, err)
	require.Len(t, records, users+1)
	seen := map[int]bool{}
	for _, rec := range records {
		assert.False(t, seen[rec.ID], "participant id %d assigned twice", rec.ID)
		seen[rec.ID] = true
	}
}

func TestParticipantServiceWelcomeBackfillsDestination(t *testing.T) {
	store := newMockParticipantStore()
	store.records["1000"] = &models.ParticipantRecord{Participant: models.Participant{ID: 3, ExternalID: "1000"}}
	svc := newParticipantServiceForTest(store)

	rec, err := svc.Welcome(context.Background(), "1000", "555")
	require.NoError(t, err)
	assert.Equal(t, "555", rec.ChatID)
	assert.Equal(t, 1, store.backfills)

	store.records["1000"].ChatID = "555"
	_, err = svc.Welcome(context.Background(), "1000", "555")
	require.NoError(t, err)
	assert.Equal(t, 1, store.backfills)
}

func TestParticipantServiceStats(t *testing.T) {
	store := newMockParticipantStore()
	store.records["1000"] = &models.ParticipantRecord{
		Participant: models.Participant{ID: 3, Name: "Ann", Cohort: 2, ExternalID: "1000"},
		Leads:       []models.Lead{{ChildName: "Kid"}},
	}
	store.points[3] = 15
	svc := newParticipantServiceForTest(store)

	stats, err := svc.Stats(context.Background(), "1000")
	require.NoError(t, err)
	assert.Equal(t, 15, stats.Points)
	assert.Equal(t, "Ann", stats.Participant.Name)
	assert.Len(t, stats.Leads, 1)

	byID, err := svc.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, stats, byID)

	_, err = svc.Get(context.Background(), 99)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestParticipantServiceListPaginates(t *testing.T) {
	store := newMockParticipantStore()
	for id := 1; id <= 5; id++ {
		ext := fmt.Sprintf("%d000", id)
		store.records[ext] = &models.ParticipantRecord{Participant: models.Participant{ID: id, Name: fmt.Sprintf("P%d", id), ExternalID: ext}}
	}
	svc := newParticipantServiceForTest(store)

	page, pagination, err := svc.List(context.Background(), models.ParticipantFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, 3, page[0].ID)
	assert.Equal(t, 4, page[1].ID)
	assert.Equal(t, &models.Pagination{Page: 2, PageSize: 2, TotalCount: 5}, pagination)

	page, pagination, err = svc.List(context.Background(), models.ParticipantFilter{Page: 9})
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Equal(t, 20, pagination.PageSize)

	store.findErr = appErrors.Unavailable(errors.New("down"), "failed to read sheet")
	_, _, err = svc.List(context.Background(), models.ParticipantFilter{})
	assert.True(t, errors.Is(err, appErrors.ErrStoreUnavailable))
}
