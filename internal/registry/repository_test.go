package registry

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepositoryListByRun(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	run, other := uuid.New(), uuid.New()

	require.NoError(t, repo.Save(ctx, &Issuance{RunID: run, Row: 3, Student: "C", Status: StatusIssued}))
	require.NoError(t, repo.Save(ctx, &Issuance{RunID: other, Row: 1, Student: "X", Status: StatusIssued}))
	require.NoError(t, repo.Save(ctx, &Issuance{RunID: run, Row: 1, Student: "A", Status: StatusFailed, Stage: "derive"}))

	got, err := repo.ListByRun(ctx, run)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Student)
	assert.Equal(t, "C", got[1].Student)
	assert.NotEqual(t, uuid.Nil, got[0].ID)
	assert.False(t, got[0].CreatedAt.IsZero())
}

func TestMemoryRepositoryUnknownRun(t *testing.T) {
	_, err := NewMemoryRepository().ListByRun(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepositoryFindByCardNewestFirst(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, &Issuance{Card: "00000042", Year: 2023, CreatedAt: old}))
	require.NoError(t, repo.Save(ctx, &Issuance{Card: "00000042", Year: 2024, CreatedAt: old.AddDate(1, 0, 0)}))
	require.NoError(t, repo.Save(ctx, &Issuance{Card: "00000043", Year: 2024}))

	got, err := repo.FindByCard(ctx, "00000042")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2024, got[0].Year)
	assert.Equal(t, 2023, got[1].Year)
}

func TestIssuanceTableName(t *testing.T) {
	assert.Equal(t, "certificate_issuances", Issuance{}.TableName())
}
