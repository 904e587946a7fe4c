package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"kerotrack/internal/models"
)

// readingColumns column list shared by all reading queries, kept in one
// place so scans stay aligned with selects.
const readingColumns = `id, date, temperature, litres_remaining, raw_litres,
	litres_used_since_last, percentage_remaining, oil_depth_cm, air_gap_cm,
	current_ppl, cost_used, cost_to_fill, heating_degree_days,
	seasonal_efficiency, refill_detected, leak_detected, sudden_drop,
	raw_flags, litres_to_order, bars_remaining`

// ReadingsRepository append-only store of classified readings. The
// engine never updates or deletes historical rows.
type ReadingsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReadingsRepository creates a readings repository.
func NewReadingsRepository(db *sql.DB, logger *zap.Logger) *ReadingsRepository {
	return &ReadingsRepository{db: db, logger: logger}
}

// Append stores one classified reading.
func (r *ReadingsRepository) Append(ctx context.Context, reading *models.Reading) error {
	query := fmt.Sprintf(`INSERT INTO readings (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		readingColumns)

	_, err := r.db.ExecContext(ctx, query,
		reading.ID, reading.Timestamp, reading.TemperatureC,
		reading.LitresRemaining, reading.RawLitres, reading.LitresUsedSinceLast,
		reading.PercentageRemaining, reading.OilDepthCM, reading.AirGapCM,
		reading.CurrentPPL, reading.CostUsed, reading.CostToFill,
		reading.HeatingDegreeDays, reading.SeasonalEfficiency,
		reading.RefillDetected, reading.LeakDetected, reading.SuddenDrop,
		reading.RawFlags, reading.LitresToOrder, reading.BarsRemaining,
	)
	if err != nil {
		return fmt.Errorf("failed to append reading: %w", err)
	}

	r.logger.Debug("Reading appended",
		zap.String("id", reading.ID),
		zap.Time("date", reading.Timestamp),
		zap.Float64("litres_remaining", reading.LitresRemaining),
	)
	return nil
}

// GetLatest returns the most recent reading, or nil when the store is
// empty.
func (r *ReadingsRepository) GetLatest(ctx context.Context) (*models.Reading, error) {
	query := fmt.Sprintf(`SELECT %s FROM readings ORDER BY date DESC LIMIT 1`, readingColumns)
	reading, err := r.scanOne(r.db.QueryRowContext(ctx, query))
	if err != nil {
		return nil, fmt.Errorf("failed to get latest reading: %w", err)
	}
	return reading, nil
}

// GetSince returns all readings from the last n days, ordered by
// timestamp ascending.
func (r *ReadingsRepository) GetSince(ctx context.Context, days int) ([]models.Reading, error) {
	query := fmt.Sprintf(`SELECT %s FROM readings WHERE date >= $1 ORDER BY date ASC`, readingColumns)
	return r.queryReadings(ctx, query, time.Now().AddDate(0, 0, -days))
}

// GetBetween returns all readings in [start, end], ordered by timestamp
// ascending.
func (r *ReadingsRepository) GetBetween(ctx context.Context, start, end time.Time) ([]models.Reading, error) {
	query := fmt.Sprintf(`SELECT %s FROM readings WHERE date BETWEEN $1 AND $2 ORDER BY date ASC`, readingColumns)
	return r.queryReadings(ctx, query, start, end)
}

// GetLastRefill returns the most recent refill-flagged reading, or nil
// when no refill was ever observed.
func (r *ReadingsRepository) GetLastRefill(ctx context.Context) (*models.Reading, error) {
	query := fmt.Sprintf(`SELECT %s FROM readings WHERE refill_detected = 'y' ORDER BY date DESC LIMIT 1`, readingColumns)
	reading, err := r.scanOne(r.db.QueryRowContext(ctx, query))
	if err != nil {
		return nil, fmt.Errorf("failed to get last refill: %w", err)
	}
	return reading, nil
}

// GetTrailing returns readings from the trailing window ending at ts,
// ordered ascending. Used by the sudden-drop detector.
func (r *ReadingsRepository) GetTrailing(ctx context.Context, ts time.Time, window time.Duration) ([]models.Reading, error) {
	query := fmt.Sprintf(`SELECT %s FROM readings WHERE date >= $1 AND date <= $2 ORDER BY date ASC`, readingColumns)
	return r.queryReadings(ctx, query, ts.Add(-window), ts)
}

func (r *ReadingsRepository) queryReadings(ctx context.Context, query string, args ...interface{}) ([]models.Reading, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var readings []models.Reading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, *reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate readings: %w", err)
	}
	return readings, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *ReadingsRepository) scanOne(row *sql.Row) (*models.Reading, error) {
	reading, err := scanReading(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return reading, err
}

func scanReading(row rowScanner) (*models.Reading, error) {
	var reading models.Reading
	err := row.Scan(
		&reading.ID, &reading.Timestamp, &reading.TemperatureC,
		&reading.LitresRemaining, &reading.RawLitres, &reading.LitresUsedSinceLast,
		&reading.PercentageRemaining, &reading.OilDepthCM, &reading.AirGapCM,
		&reading.CurrentPPL, &reading.CostUsed, &reading.CostToFill,
		&reading.HeatingDegreeDays, &reading.SeasonalEfficiency,
		&reading.RefillDetected, &reading.LeakDetected, &reading.SuddenDrop,
		&reading.RawFlags, &reading.LitresToOrder, &reading.BarsRemaining,
	)
	if err != nil {
		return nil, err
	}
	return &reading, nil
}
