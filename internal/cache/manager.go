package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"kerotrack/internal/models"
)

const (
	latestReadingKey  = "kerotrack:reading:latest"
	latestAnalysisKey = "kerotrack:analysis:latest"
)

// Manager caches the latest reading and analysis result so downstream
// consumers can be served without touching Postgres, and so a failed
// analysis run can fall back to the last good result.
type Manager struct {
	kv          KVStore
	readingTTL  time.Duration
	analysisTTL time.Duration
	logger      *zap.Logger
}

// NewManager creates a cache manager. A zero TTL means entries never
// expire and are only replaced by newer writes.
func NewManager(kv KVStore, readingTTL, analysisTTL time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		kv:          kv,
		readingTTL:  readingTTL,
		analysisTTL: analysisTTL,
		logger:      logger,
	}
}

// cachedAnalysis wraps the result with its store time so consumers can
// judge staleness.
type cachedAnalysis struct {
	StoredAt time.Time             `json:"stored_at"`
	Result   models.AnalysisResult `json:"result"`
}

// SetLatestReading caches the most recent processed reading.
func (m *Manager) SetLatestReading(ctx context.Context, reading *models.Reading) error {
	payload, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}
	if err := m.kv.Set(ctx, latestReadingKey, string(payload), m.readingTTL); err != nil {
		return fmt.Errorf("failed to cache reading: %w", err)
	}

	m.logger.Debug("Cached latest reading",
		zap.Time("timestamp", reading.Timestamp),
		zap.Float64("litres_remaining", reading.LitresRemaining),
	)
	return nil
}

// GetLatestReading returns the cached reading, or ErrCacheMiss.
func (m *Manager) GetLatestReading(ctx context.Context) (*models.Reading, error) {
	val, err := m.kv.Get(ctx, latestReadingKey)
	if err != nil {
		return nil, err
	}
	var reading models.Reading
	if err := json.Unmarshal([]byte(val), &reading); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached reading: %w", err)
	}
	return &reading, nil
}

// SetLatestAnalysis caches the most recent analysis result.
func (m *Manager) SetLatestAnalysis(ctx context.Context, result *models.AnalysisResult) error {
	wrapped := cachedAnalysis{
		StoredAt: time.Now().UTC(),
		Result:   *result,
	}
	payload, err := json.Marshal(wrapped)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis result: %w", err)
	}
	if err := m.kv.Set(ctx, latestAnalysisKey, string(payload), m.analysisTTL); err != nil {
		return fmt.Errorf("failed to cache analysis result: %w", err)
	}

	m.logger.Debug("Cached latest analysis",
		zap.String("run_id", result.RunID),
	)
	return nil
}

// GetLatestAnalysis returns the cached result and its age. Callers
// decide whether a stale entry is still worth serving.
func (m *Manager) GetLatestAnalysis(ctx context.Context) (*models.AnalysisResult, time.Duration, error) {
	val, err := m.kv.Get(ctx, latestAnalysisKey)
	if err != nil {
		return nil, 0, err
	}
	var wrapped cachedAnalysis
	if err := json.Unmarshal([]byte(val), &wrapped); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal cached analysis: %w", err)
	}
	return &wrapped.Result, time.Since(wrapped.StoredAt), nil
}
