package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// HDDRepository read-only access to externally supplied daily heating
// degree day samples.
type HDDRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHDDRepository creates an HDD repository.
func NewHDDRepository(db *sql.DB, logger *zap.Logger) *HDDRepository {
	return &HDDRepository{db: db, logger: logger}
}

// GetHDD returns daily HDD values for [start, end], keyed by date
// (YYYY-MM-DD). Missing days are simply absent from the map.
func (r *HDDRepository) GetHDD(ctx context.Context, start, end time.Time) (map[string]float64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date, hdd FROM hdd_data WHERE date BETWEEN $1 AND $2 ORDER BY date ASC`,
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query hdd data: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var date time.Time
		var hdd float64
		if err := rows.Scan(&date, &hdd); err != nil {
			return nil, fmt.Errorf("failed to scan hdd row: %w", err)
		}
		out[date.Format("2006-01-02")] = hdd
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate hdd rows: %w", err)
	}

	return out, nil
}
