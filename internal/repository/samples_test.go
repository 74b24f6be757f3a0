package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"babywatch/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockSamplesDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresSamplesRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewPostgresSamplesRepository(db, logger)

	return db, mock, repo
}

func strPtr(s string) *string { return &s }

func TestInsertSample_Success(t *testing.T) {
	db, mock, repo := setupMockSamplesDB(t)
	defer db.Close()

	ctx := context.Background()
	ownerID := uuid.NewString()
	createdAt := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO health_samples`).
		WithArgs(sqlmock.AnyArg(), ownerID, 38.5, 60.0, strPtr("uploads/audio/a.wav"), true, true, strPtr("fussy evening")).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(createdAt))

	sample := &domain.Sample{
		OwnerID:      ownerID,
		Temperature:  38.5,
		Humidity:     60.0,
		AudioURL:     strPtr("uploads/audio/a.wav"),
		CryDetected:  true,
		SickDetected: true,
		Notes:        strPtr("fussy evening"),
	}

	stored, err := repo.InsertSample(ctx, sample)

	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, ownerID, stored.OwnerID)
	assert.Equal(t, createdAt, stored.CreatedAt)
	assert.True(t, stored.CryDetected)
	assert.True(t, stored.SickDetected)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertSample_PersistenceFailure(t *testing.T) {
	db, mock, repo := setupMockSamplesDB(t)
	defer db.Close()

	ctx := context.Background()

	mock.ExpectQuery(`INSERT INTO health_samples`).
		WillReturnError(sql.ErrConnDone)

	stored, err := repo.InsertSample(ctx, &domain.Sample{
		OwnerID:     uuid.NewString(),
		Temperature: 37.0,
		Humidity:    50.0,
	})

	assert.Error(t, err)
	assert.Nil(t, stored)
	assert.Contains(t, err.Error(), "failed to insert sample")

	require.NoError(t, mock.ExpectationsWereMet())
}

func sampleRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "owner_id", "temperature", "humidity", "audio_url",
		"cry_detected", "sick_detected", "notes", "created_at",
	})
}

func TestListRange_Success(t *testing.T) {
	db, mock, repo := setupMockSamplesDB(t)
	defer db.Close()

	ctx := context.Background()
	ownerID := uuid.NewString()
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	rows := sampleRows().
		AddRow(uuid.NewString(), ownerID, 36.8, 55.0, nil, false, false, nil, start.Add(time.Hour)).
		AddRow(uuid.NewString(), ownerID, 38.4, 62.0, "uploads/audio/b.wav", true, true, "crying hard", start.Add(2*time.Hour))

	mock.ExpectQuery(`SELECT`).
		WithArgs(ownerID, start, end).
		WillReturnRows(rows)

	samples, err := repo.ListRange(ctx, ownerID, start, end)

	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.False(t, samples[0].CryDetected)
	assert.Nil(t, samples[0].AudioURL)
	assert.Nil(t, samples[0].Notes)

	assert.True(t, samples[1].CryDetected)
	assert.True(t, samples[1].SickDetected)
	require.NotNil(t, samples[1].AudioURL)
	assert.Equal(t, "uploads/audio/b.wav", *samples[1].AudioURL)
	require.NotNil(t, samples[1].Notes)
	assert.Equal(t, "crying hard", *samples[1].Notes)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRange_Empty(t *testing.T) {
	db, mock, repo := setupMockSamplesDB(t)
	defer db.Close()

	ctx := context.Background()
	ownerID := uuid.NewString()
	start := time.Now().UTC().Add(-time.Hour)
	end := time.Now().UTC()

	mock.ExpectQuery(`SELECT`).
		WithArgs(ownerID, start, end).
		WillReturnRows(sampleRows())

	samples, err := repo.ListRange(ctx, ownerID, start, end)

	require.NoError(t, err)
	assert.Empty(t, samples)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStats_Success(t *testing.T) {
	db, mock, repo := setupMockSamplesDB(t)
	defer db.Close()

	ctx := context.Background()
	ownerID := uuid.NewString()
	latestAt := time.Now().UTC()

	mock.ExpectQuery(`SELECT`).
		WithArgs(ownerID).
		WillReturnRows(sqlmock.NewRows([]string{"count", "cry", "sick", "avg_t", "avg_h"}).
			AddRow(42, 7, 2, 37.1, 58.3))

	mock.ExpectQuery(`SELECT`).
		WithArgs(ownerID).
		WillReturnRows(sampleRows().
			AddRow(uuid.NewString(), ownerID, 38.2, 61.0, nil, true, true, nil, latestAt))

	stats, err := repo.GetStats(ctx, ownerID)

	require.NoError(t, err)
	assert.Equal(t, 42, stats.TotalRecords)
	assert.Equal(t, 7, stats.CryDetectedCount)
	assert.Equal(t, 2, stats.SickDetectedCount)
	assert.InDelta(t, 37.1, stats.AvgTemperature, 0.001)
	assert.InDelta(t, 58.3, stats.AvgHumidity, 0.001)
	require.NotNil(t, stats.LatestRecord)
	assert.True(t, stats.LatestRecord.CryDetected)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStats_NoRecords(t *testing.T) {
	db, mock, repo := setupMockSamplesDB(t)
	defer db.Close()

	ctx := context.Background()
	ownerID := uuid.NewString()

	mock.ExpectQuery(`SELECT`).
		WithArgs(ownerID).
		WillReturnRows(sqlmock.NewRows([]string{"count", "cry", "sick", "avg_t", "avg_h"}).
			AddRow(0, 0, 0, 0.0, 0.0))

	stats, err := repo.GetStats(ctx, ownerID)

	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalRecords)
	assert.Nil(t, stats.LatestRecord)

	require.NoError(t, mock.ExpectationsWereMet())
}
