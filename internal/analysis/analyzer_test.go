package analysis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kerotrack/internal/analysis"
	"kerotrack/internal/config"
	"kerotrack/internal/models"
)

type fakeReadingSource struct {
	readings []models.Reading
}

func (f *fakeReadingSource) GetLatest(ctx context.Context) (*models.Reading, error) {
	if len(f.readings) == 0 {
		return nil, nil
	}
	latest := f.readings[len(f.readings)-1]
	return &latest, nil
}

func (f *fakeReadingSource) GetSince(ctx context.Context, days int) ([]models.Reading, error) {
	return f.readings, nil
}

func (f *fakeReadingSource) GetLastRefill(ctx context.Context) (*models.Reading, error) {
	for i := len(f.readings) - 1; i >= 0; i-- {
		if f.readings[i].IsRefill() {
			refill := f.readings[i]
			return &refill, nil
		}
	}
	return nil, nil
}

type fakeHDDSource struct {
	data map[string]float64
	err  error
}

func (f *fakeHDDSource) GetHDD(ctx context.Context, start, end time.Time) (map[string]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func analyzerConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Tank = testTank()
	cfg.Thermal = testThermal()
	cfg.Detection = testDetection()
	cfg.Estimator = testEstimatorConfig()
	cfg.Boiler = testBoiler()
	cfg.Analysis = config.AnalysisConfig{
		CO2PerLitre:      2.54,
		ProjectionCapHDD: 400,
		ProjectionCapOff: 700,
	}
	return cfg
}

func TestAnalyzer_EmptyStore(t *testing.T) {
	a := analysis.NewAnalyzer(analyzerConfig(), &fakeReadingSource{}, &fakeHDDSource{}, zap.NewNop())

	_, err := a.Run(context.Background(), time.Now())
	require.ErrorIs(t, err, analysis.ErrInsufficientData)
}

func TestAnalyzer_SteadyConsumptionWithoutHDD(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	readings := dailyReadings(start, 1000, 8, 11)
	now := start.AddDate(0, 0, 10)

	a := analysis.NewAnalyzer(analyzerConfig(),
		&fakeReadingSource{readings: readings},
		&fakeHDDSource{data: map[string]float64{}},
		zap.NewNop(),
	)

	result, err := a.Run(context.Background(), now)
	require.NoError(t, err)

	// Ten clean 8 L/day pairs: the measured EMA drives the forecast.
	require.Equal(t, models.MethodEMA, result.Estimator.Method)
	require.Equal(t, models.QualityMeasured, result.DataQuality)
	require.InDelta(t, 8.0, result.AvgDailyConsumption, 0.0001)

	require.True(t, result.Projection.Known)
	current := readings[len(readings)-1].LitresRemaining
	require.InDelta(t, current/8, result.Projection.DaysRemaining, 0.1)
	require.False(t, result.RefillObserved)
}

func TestAnalyzer_RefillCycleFigures(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	readings := []models.Reading{
		{Timestamp: start, LitresRemaining: 300},
		{Timestamp: start.AddDate(0, 0, 1), LitresRemaining: 1200, RefillDetected: models.FlagYes},
	}
	readings = append(readings, dailyReadings(start.AddDate(0, 0, 2), 1190, 10, 10)...)
	now := start.AddDate(0, 0, 11)

	cfg := analyzerConfig()
	a := analysis.NewAnalyzer(cfg,
		&fakeReadingSource{readings: readings},
		&fakeHDDSource{data: map[string]float64{}},
		zap.NewNop(),
	)

	result, err := a.Run(context.Background(), now)
	require.NoError(t, err)

	require.True(t, result.RefillObserved)
	require.Equal(t, 10, result.DaysSinceRefill)
	// 1200 down to 1100 over the cycle so far.
	require.InDelta(t, 100.0, result.ConsumptionSinceRefill, 0.001)
	require.InDelta(t, 100.0*cfg.Analysis.CO2PerLitre, result.CO2SinceRefillKg, 0.001)
}

func TestAnalyzer_HDDSourceFailureDegrades(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	readings := dailyReadings(start, 1000, 8, 11)
	now := start.AddDate(0, 0, 10)

	a := analysis.NewAnalyzer(analyzerConfig(),
		&fakeReadingSource{readings: readings},
		&fakeHDDSource{err: errors.New("hdd table unreachable")},
		zap.NewNop(),
	)

	// A broken HDD source must not fail the run; measured rates carry it.
	result, err := a.Run(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, models.MethodEMA, result.Estimator.Method)
	require.Equal(t, models.QualityMeasured, result.DataQuality)
}

func TestAnalyzer_HotWaterFloorIsModeled(t *testing.T) {
	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	// Two readings with no consumption between them: nothing measured.
	readings := []models.Reading{
		{Timestamp: start, LitresRemaining: 900},
		{Timestamp: start.AddDate(0, 0, 1), LitresRemaining: 900},
	}

	a := analysis.NewAnalyzer(analyzerConfig(),
		&fakeReadingSource{readings: readings},
		&fakeHDDSource{data: map[string]float64{}},
		zap.NewNop(),
	)

	result, err := a.Run(context.Background(), start.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Equal(t, models.MethodHotWaterFloor, result.Estimator.Method)
	require.Equal(t, models.QualityModeled, result.DataQuality)
	require.True(t, result.Projection.Known)
}
