package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kerotrack/internal/models"
)

func sampleResult() *models.AnalysisResult {
	return &models.AnalysisResult{
		RunID:               "run-1",
		AnalysisDate:        time.Date(2025, 1, 14, 8, 0, 0, 0, time.UTC),
		RefillObserved:      true,
		DaysSinceRefill:     12,
		AvgDailyConsumption: 8.2,
		Estimator: models.EstimatorState{
			BlendedRate: 8.2,
			Method:      models.MethodAdjustedPeriod,
		},
		Projection: models.Projection{
			Known:         true,
			DaysRemaining: 112,
			EmptyDate:     time.Date(2025, 5, 6, 8, 0, 0, 0, time.UTC),
		},
		CurrentLitres: 920,
		DataQuality:   models.QualityMeasured,
	}
}

func TestAnalysisSave(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewAnalysisRepository(db, zap.NewNop())

	mock.ExpectExec(`INSERT INTO analysis_results`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = repo.Save(context.Background(), sampleResult())
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalysisSave_UnknownProjectionStoresNull(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewAnalysisRepository(db, zap.NewNop())

	result := sampleResult()
	result.Projection = models.Projection{Known: false}

	mock.ExpectExec(`INSERT INTO analysis_results`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = repo.Save(context.Background(), result)
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalysisGetLatest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewAnalysisRepository(db, zap.NewNop())

	payload, err := json.Marshal(sampleResult())
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT analysis_data FROM analysis_results ORDER BY analysis_date DESC LIMIT 1`).
		WillReturnRows(sqlmock.NewRows([]string{"analysis_data"}).AddRow(payload))

	result, err := repo.GetLatest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, models.MethodAdjustedPeriod, result.Estimator.Method)
	assert.True(t, result.Projection.Known)
	assert.InDelta(t, 112.0, result.Projection.DaysRemaining, 0.001)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalysisGetLatest_NoHistory(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewAnalysisRepository(db, zap.NewNop())

	mock.ExpectQuery(`SELECT analysis_data FROM analysis_results`).
		WillReturnError(sql.ErrNoRows)

	result, err := repo.GetLatest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, result)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalysisGetRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewAnalysisRepository(db, zap.NewNop())

	first := sampleResult()
	second := sampleResult()
	second.RunID = "run-2"

	p1, err := json.Marshal(second)
	require.NoError(t, err)
	p2, err := json.Marshal(first)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT analysis_data FROM analysis_results ORDER BY analysis_date DESC LIMIT \$1`).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"analysis_data"}).AddRow(p1).AddRow(p2))

	results, err := repo.GetRecent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "run-2", results[0].RunID)
	assert.Equal(t, "run-1", results[1].RunID)

	assert.NoError(t, mock.ExpectationsWereMet())
}
