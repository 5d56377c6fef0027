package leads

import (
	"context"
	"errors"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepository_AppendAndGet(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, sampleRecord()))
	list, err := repo.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)

	lead := list[0]
	assert.NotEmpty(t, lead.ID)
	assert.Equal(t, "Maria Silva", lead.Name)
	assert.Equal(t, "manhã", lead.Period)
	assert.Equal(t, "whatsapp:+5532991413852", lead.From)

	found, err := repo.GetByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, lead, found)
}

func TestInMemoryRepository_GetByID_NotFound(t *testing.T) {
	repo := NewInMemoryRepository()
	_, err := repo.GetByID(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrLeadNotFound)
}

func TestInMemoryRepository_RejectsInvalid(t *testing.T) {
	repo := NewInMemoryRepository()
	rec := sampleRecord()
	rec.UserID = ""
	assert.ErrorIs(t, repo.Append(context.Background(), rec), ErrMissingUserID)
}

func TestInMemoryRepository_ListNewestFirstWithPaging(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	base := sampleRecord().Timestamp
	for i := 0; i < 5; i++ {
		rec := sampleRecord()
		rec.Timestamp = base.Add(time.Duration(i) * time.Minute)
		rec.PatientName = string(rune('A'+i)) + " Silva"
		require.NoError(t, repo.Append(ctx, rec))
	}

	page, err := repo.List(ctx, ListFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "E Silva", page[0].Name)
	assert.Equal(t, "D Silva", page[1].Name)

	page, err = repo.List(ctx, ListFilter{Limit: 2, Offset: 4})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "A Silva", page[0].Name)

	page, err = repo.List(ctx, ListFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestPostgresRepository_Append(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)
	rec := sampleRecord()

	mock.ExpectExec("INSERT INTO leads").
		WithArgs(pgxmock.AnyArg(), rec.UserID, rec.RawSender, rec.PatientName, "manhã", rec.SlotChoice, rec.Channel, rec.Timestamp).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Append(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_AppendError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)
	mock.ExpectExec("INSERT INTO leads").WillReturnError(errors.New("connection reset"))

	err = repo.Append(context.Background(), sampleRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert failed")
}

func TestPostgresRepository_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)
	created := time.Date(2025, 8, 20, 16, 3, 52, 0, time.UTC)
	columns := []string{"id", "user_id", "sender", "name", "period", "slot", "channel", "created_at"}

	mock.ExpectQuery("SELECT (.+) FROM leads").WithArgs("lead-1").
		WillReturnRows(pgxmock.NewRows(columns).AddRow("lead-1", "+55", "whatsapp:+55", "Maria Silva", "tarde", "Sexta 16:30", "twilio-sandbox", created))
	lead, err := repo.GetByID(context.Background(), "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "Maria Silva", lead.Name)
	assert.Equal(t, created, lead.CreatedAt)

	mock.ExpectQuery("SELECT (.+) FROM leads").WithArgs("missing").WillReturnError(pgx.ErrNoRows)
	_, err = repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrLeadNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)
	created := time.Date(2025, 8, 20, 16, 3, 52, 0, time.UTC)
	columns := []string{"id", "user_id", "sender", "name", "period", "slot", "channel", "created_at"}

	mock.ExpectQuery("SELECT (.+) FROM leads").WithArgs(50, 0).
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow("lead-2", "+55", "whatsapp:+55", "B", "tarde", "s2", "twilio-sandbox", created.Add(time.Minute)).
			AddRow("lead-1", "+55", "whatsapp:+55", "A", "manhã", "s1", "twilio-sandbox", created))

	list, err := repo.List(context.Background(), ListFilter{Limit: 500})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "lead-2", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
