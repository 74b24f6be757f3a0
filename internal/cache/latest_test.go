package cache

import (
	"context"
	"testing"
	"time"

	"babywatch/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupCache(t *testing.T) (*miniredis.Miniredis, *LatestCache) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return mr, NewLatestCache(redisClient, zap.NewNop())
}

func TestLatestCache_SetAndGet(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()
	ownerID := uuid.NewString()

	sample := &domain.Sample{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		Temperature:  38.4,
		Humidity:     63.0,
		CryDetected:  true,
		SickDetected: true,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}

	require.NoError(t, c.SetLatest(ctx, sample))

	got, err := c.GetLatest(ctx, ownerID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sample.ID, got.ID)
	assert.Equal(t, sample.Temperature, got.Temperature)
	assert.True(t, got.CryDetected)
	assert.True(t, got.SickDetected)
}

func TestLatestCache_Miss(t *testing.T) {
	_, c := setupCache(t)

	got, err := c.GetLatest(context.Background(), uuid.NewString())

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLatestCache_Overwrite(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()
	ownerID := uuid.NewString()

	first := &domain.Sample{ID: uuid.NewString(), OwnerID: ownerID, Temperature: 36.5}
	second := &domain.Sample{ID: uuid.NewString(), OwnerID: ownerID, Temperature: 38.9}

	require.NoError(t, c.SetLatest(ctx, first))
	require.NoError(t, c.SetLatest(ctx, second))

	got, err := c.GetLatest(ctx, ownerID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.ID, got.ID)
}

func TestLatestCache_Expiry(t *testing.T) {
	mr, c := setupCache(t)
	ctx := context.Background()
	ownerID := uuid.NewString()

	require.NoError(t, c.SetLatest(ctx, &domain.Sample{ID: uuid.NewString(), OwnerID: ownerID}))

	mr.FastForward(25 * time.Hour)

	got, err := c.GetLatest(ctx, ownerID)
	require.NoError(t, err)
	assert.Nil(t, got)
}
