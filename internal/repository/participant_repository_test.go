package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/referral-bot/internal/codec"
	"github.com/noah-isme/referral-bot/internal/models"
	appErrors "github.com/noah-isme/referral-bot/pkg/errors"
	"github.com/noah-isme/referral-bot/pkg/sheets"
)

var header = []string{"ID", "ID_участника", "ФИО", "Курс", "Имя_ребенка", "Возраст", "Класс", "Telegram",
	"Телефон_ученика", "ФИО_родителя", "Телефон_родителя", "Баллы", "Статус", "Дата_добавления",
	"Программа", "Комментарий", "Chat_ID", "Telegram_ID"}

type recordingObserver struct {
	ops []string
}

func (o *recordingObserver) ObserveSheetCall(op string, _ time.Duration, _ error) {
	o.ops = append(o.ops, op)
}

func participantRow(id, name, cohort, chatID, externalID string) []string {
	row := make([]string, codec.Width)
	row[codec.ColParticipantID] = id
	row[codec.ColName] = name
	row[codec.ColCohort] = cohort
	row[codec.ColChatID] = chatID
	row[codec.ColExternalID] = externalID
	return row
}

func newParticipantRepo(rows ...[]string) (*ParticipantRepository, *sheets.MemoryGrid) {
	grid := sheets.NewMemoryGrid(append([][]string{header}, rows...)...)
	return NewParticipantRepository(grid, zap.NewNop(), nil), grid
}

func lead(name string, program models.ProgramType) models.Lead {
	return models.Lead{
		ChildName:     name,
		Age:           12,
		Grade:         6,
		ContactHandle: "@" + name,
		Phone:         "+79991234567",
		GuardianName:  "Guardian " + name,
		GuardianPhone: "+79990000000",
		ProgramType:   program,
	}
}

func TestParticipantRepositoryFindByExternalID(t *testing.T) {
	repo, _ := newParticipantRepo(
		participantRow("1", "Ann", "1", "100", "1000"),
		participantRow("2", "Bob", "2", "200", "2000"),
	)

	rec, err := repo.FindByExternalID(context.Background(), "2000")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.ID)
	assert.Equal(t, "Bob", rec.Name)
	assert.Equal(t, 3, rec.Row)

	_, err = repo.FindByExternalID(context.Background(), "3000")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = repo.FindByExternalID(context.Background(), "")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestParticipantRepositorySkipsHeaderRow(t *testing.T) {
	repo, _ := newParticipantRepo()
	_, err := repo.FindByExternalID(context.Background(), "Telegram_ID")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestParticipantRepositoryStoreUnavailable(t *testing.T) {
	repo, grid := newParticipantRepo(participantRow("1", "Ann", "1", "", "1000"))
	grid.Err = errors.New("quota exceeded")

	_, err := repo.FindByExternalID(context.Background(), "1000")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrStoreUnavailable))
	assert.False(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = repo.MaxParticipantID(context.Background())
	assert.True(t, errors.Is(err, appErrors.ErrStoreUnavailable))
}

func TestParticipantRepositoryMaxParticipantID(t *testing.T) {
	repo, _ := newParticipantRepo(
		participantRow("3", "Ann", "1", "", ""),
		participantRow("x", "Broken", "1", "", ""),
		participantRow("", "", "", "", ""),
		participantRow("11", "Bob", "1", "", ""),
	)

	max, err := repo.MaxParticipantID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 11, max)

	empty, _ := newParticipantRepo()
	max, err = empty.MaxParticipantID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, max)
}

func TestParticipantRepositoryAppendParticipant(t *testing.T) {
	observer := &recordingObserver{}
	grid := sheets.NewMemoryGrid(header, participantRow("1", "Ann", "1", "", ""))
	repo := NewParticipantRepository(grid, zap.NewNop(), observer)

	err := repo.AppendParticipant(context.Background(), models.Participant{
		ID: 2, Name: "Bob", Cohort: 3, Timestamp: "2024-06-01 10:00:00", ChatID: "200", ExternalID: "2000",
	})
	require.NoError(t, err)

	row := grid.Row(3, codec.Width)
	assert.Equal(t, "", row[codec.ColReserved])
	assert.Equal(t, "2", row[codec.ColParticipantID])
	assert.Equal(t, "Bob", row[codec.ColName])
	assert.Equal(t, "3", row[codec.ColCohort])
	assert.Equal(t, "200", row[codec.ColChatID])
	assert.Equal(t, "2000", row[codec.ColExternalID])
	assert.Equal(t, []string{"append_participant"}, observer.ops)

	rec, err := repo.FindByExternalID(context.Background(), "2000")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.ID)
}

func TestParticipantRepositoryLeadRoundTrip(t *testing.T) {
	base := participantRow("5", "Ann", "1", "100", "1000")
	base[codec.ColReserved] = "manual note"
	base[codec.ColPoints] = "15"
	base[codec.ColStatus] = "Проверено"
	repo, grid := newParticipantRepo(participantRow("4", "Zed", "1", "", ""), base)
	ctx := context.Background()

	l1 := lead("first", models.ProgramCampDO)
	l2 := lead("second; with, punctuation", models.ProgramCollege)
	require.NoError(t, repo.AppendLead(ctx, 5, l1))
	require.NoError(t, repo.AppendLead(ctx, 5, l2))

	leads, err := repo.ParticipantLeads(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []models.Lead{l1, l2}, leads)

	row := grid.Row(3, codec.Width)
	assert.Equal(t, "manual note", row[codec.ColReserved])
	assert.Equal(t, "15", row[codec.ColPoints])
	assert.Equal(t, "Проверено", row[codec.ColStatus])
	assert.Equal(t, "first\nsecond; with, punctuation", row[codec.ColChildName])

	other, err := repo.ParticipantLeads(ctx, 4)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestParticipantRepositoryAppendLeadUnknownParticipant(t *testing.T) {
	repo, grid := newParticipantRepo(participantRow("1", "Ann", "1", "", ""))

	err := repo.AppendLead(context.Background(), 9, lead("kid", models.ProgramCampDO))
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.Equal(t, 0, grid.Writes())
}

func TestParticipantRepositoryBackfillIsFirstWriteWins(t *testing.T) {
	repo, grid := newParticipantRepo(participantRow("1", "Ann", "1", "", ""))
	ctx := context.Background()

	require.NoError(t, repo.BackfillIdentity(ctx, 1, "100", "1000"))
	require.NoError(t, repo.BackfillIdentity(ctx, 1, "100", "1000"))
	require.NoError(t, repo.BackfillIdentity(ctx, 1, "999", "9999"))

	row := grid.Row(2, codec.Width)
	assert.Equal(t, "100", row[codec.ColChatID])
	assert.Equal(t, "1000", row[codec.ColExternalID])
	assert.Equal(t, 1, grid.Writes())
}

func TestParticipantRepositoryBackfillFillsOnlyEmptyCell(t *testing.T) {
	repo, grid := newParticipantRepo(participantRow("1", "Ann", "1", "", "1000"))

	require.NoError(t, repo.BackfillIdentity(context.Background(), 1, "100", "5555"))

	row := grid.Row(2, codec.Width)
	assert.Equal(t, "100", row[codec.ColChatID])
	assert.Equal(t, "1000", row[codec.ColExternalID])
}

func TestParticipantRepositoryPoints(t *testing.T) {
	withPoints := participantRow("1", "Ann", "1", "", "")
	withPoints[codec.ColPoints] = "25"
	garbage := participantRow("2", "Bob", "1", "", "")
	garbage[codec.ColPoints] = "n/a"
	repo, _ := newParticipantRepo(withPoints, garbage, participantRow("3", "Cat", "1", "", ""))
	ctx := context.Background()

	for id, want := range map[int]int{1: 25, 2: 0, 3: 0, 42: 0} {
		got, err := repo.ParticipantPoints(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got, "participant %d", id)
	}
}

func TestParticipantRepositoryListDestinationsAndParticipants(t *testing.T) {
	repo, _ := newParticipantRepo(
		participantRow("1", "Ann", "1", "100", "1000"),
		participantRow("2", "Bob", "1", "", "2000"),
		participantRow("3", "Cat", "1", " 300 ", "3000"),
	)
	ctx := context.Background()

	dests, err := repo.ListDestinations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"100", "300"}, dests)

	records, err := repo.ListParticipants(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Cat", records[2].Name)
	assert.Equal(t, 4, records[2].Row)
}

func TestParticipantRepositoryPing(t *testing.T) {
	repo, grid := newParticipantRepo()
	require.NoError(t, repo.Ping(context.Background()))
	grid.Err = errors.New("down")
	assert.True(t, errors.Is(repo.Ping(context.Background()), appErrors.ErrStoreUnavailable))
}
