package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kerotrack/internal/cache"
	"kerotrack/internal/models"
)

func TestManager_LatestReadingRoundTrip(t *testing.T) {
	kv := newFakeKVStore()
	m := cache.NewManager(kv, 0, 0, zap.NewNop())

	reading := &models.Reading{
		ID:              "1001",
		Timestamp:       time.Date(2025, 1, 14, 8, 0, 0, 0, time.UTC),
		LitresRemaining: 920,
		AirGapCM:        27,
		RefillDetected:  models.FlagNo,
	}
	require.NoError(t, m.SetLatestReading(context.Background(), reading))

	got, err := m.GetLatestReading(context.Background())
	require.NoError(t, err)
	require.Equal(t, "1001", got.ID)
	require.Equal(t, 920.0, got.LitresRemaining)
	require.True(t, reading.Timestamp.Equal(got.Timestamp))
}

func TestManager_ReadingMissOnEmptyCache(t *testing.T) {
	m := cache.NewManager(newFakeKVStore(), 0, 0, zap.NewNop())

	_, err := m.GetLatestReading(context.Background())
	require.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestManager_LatestAnalysisCarriesAge(t *testing.T) {
	kv := newFakeKVStore()
	m := cache.NewManager(kv, 0, time.Hour, zap.NewNop())

	result := &models.AnalysisResult{
		RunID:       "run-1",
		DataQuality: models.QualityMeasured,
		Projection:  models.Projection{Known: true, DaysRemaining: 115},
	}
	require.NoError(t, m.SetLatestAnalysis(context.Background(), result))

	got, age, err := m.GetLatestAnalysis(context.Background())
	require.NoError(t, err)
	require.Equal(t, "run-1", got.RunID)
	require.True(t, got.Projection.Known)
	require.GreaterOrEqual(t, age, time.Duration(0))
	require.Less(t, age, time.Minute)
}

func TestManager_AnalysisExpiresWithTTL(t *testing.T) {
	kv := newFakeKVStore()
	m := cache.NewManager(kv, 0, 10*time.Millisecond, zap.NewNop())

	require.NoError(t, m.SetLatestAnalysis(context.Background(), &models.AnalysisResult{RunID: "run-1"}))
	time.Sleep(20 * time.Millisecond)

	_, _, err := m.GetLatestAnalysis(context.Background())
	require.ErrorIs(t, err, cache.ErrCacheMiss)
}
