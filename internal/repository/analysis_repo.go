package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"kerotrack/internal/models"
)

// AnalysisRepository insert-only audit trail of analysis runs.
type AnalysisRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAnalysisRepository creates an analysis repository.
func NewAnalysisRepository(db *sql.DB, logger *zap.Logger) *AnalysisRepository {
	return &AnalysisRepository{db: db, logger: logger}
}

// Save persists one analysis run. Key metrics get their own columns
// for querying; the complete result is kept as JSON alongside.
func (r *AnalysisRepository) Save(ctx context.Context, result *models.AnalysisResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis result: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO analysis_results (
			run_id, analysis_date, refill_observed, days_since_refill,
			total_consumption_since_refill, avg_daily_consumption_l,
			blended_rate_l, estimation_method, data_quality,
			estimated_days_remaining, estimated_empty_date,
			consumption_per_hdd_l, upcoming_hdd,
			estimated_daily_heating_consumption_l,
			estimated_daily_hot_water_consumption_l,
			co2_since_refill_kg, analysis_data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		result.RunID, result.AnalysisDate, result.RefillObserved, result.DaysSinceRefill,
		result.ConsumptionSinceRefill, result.AvgDailyConsumption,
		result.Estimator.BlendedRate, result.Estimator.Method, result.DataQuality,
		nullableDays(result.Projection), nullableEmptyDate(result.Projection),
		result.ConsumptionPerHDD, result.UpcomingHDD,
		result.EstimatedHeatingDaily, result.EstimatedHotWaterDaily,
		result.CO2SinceRefillKg, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to save analysis result: %w", err)
	}

	r.logger.Info("Analysis result saved",
		zap.String("run_id", result.RunID),
		zap.Time("analysis_date", result.AnalysisDate),
	)
	return nil
}

// GetLatest returns the most recent stored result, or nil when none
// exists. The full JSON payload is authoritative for deserialization.
func (r *AnalysisRepository) GetLatest(ctx context.Context) (*models.AnalysisResult, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT analysis_data FROM analysis_results ORDER BY analysis_date DESC LIMIT 1`,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest analysis: %w", err)
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analysis result: %w", err)
	}
	return &result, nil
}

// GetRecent returns up to limit stored results, newest first. Feeds
// the report exporter's trend sheet.
func (r *AnalysisRepository) GetRecent(ctx context.Context, limit int) ([]models.AnalysisResult, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT analysis_data FROM analysis_results ORDER BY analysis_date DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent analyses: %w", err)
	}
	defer rows.Close()

	var results []models.AnalysisResult
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan analysis row: %w", err)
		}
		var result models.AnalysisResult
		if err := json.Unmarshal(payload, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal analysis result: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate analysis rows: %w", err)
	}
	return results, nil
}

// Projections with an unknown sentinel store NULL, never a fake zero.

func nullableDays(p models.Projection) interface{} {
	if !p.Known {
		return nil
	}
	return p.DaysRemaining
}

func nullableEmptyDate(p models.Projection) interface{} {
	if !p.Known {
		return nil
	}
	return p.EmptyDate
}
