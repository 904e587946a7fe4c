package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kerotrack/internal/config"
	"kerotrack/internal/models"
)

// ReadingSource the slice of the reading store the analyzer consumes.
// Implementations must return readings ordered by timestamp ascending.
type ReadingSource interface {
	GetLatest(ctx context.Context) (*models.Reading, error)
	GetSince(ctx context.Context, days int) ([]models.Reading, error)
	GetLastRefill(ctx context.Context) (*models.Reading, error)
}

// HDDSource daily heating degree day samples keyed by date.
type HDDSource interface {
	GetHDD(ctx context.Context, start, end time.Time) (map[string]float64, error)
}

// How much history one run pulls. A year covers several refill cycles
// for the historical average; the estimator windows are cut from it.
const historyDays = 365

// Analyzer assembles one AnalysisResult from the stored history. Every
// run is a pure function of the store contents and configuration, so a
// result can always be recomputed rather than patched.
type Analyzer struct {
	cfg       *config.Config
	readings  ReadingSource
	hdd       HDDSource
	estimator *Estimator
	projector *Projector
	logger    *zap.Logger
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(cfg *config.Config, readings ReadingSource, hdd HDDSource, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		cfg:       cfg,
		readings:  readings,
		hdd:       hdd,
		estimator: NewEstimator(cfg.Estimator, cfg.Boiler, cfg.Detection, logger),
		projector: NewProjector(cfg.Analysis),
		logger:    logger,
	}
}

// Run performs one analysis pass. Returns ErrInsufficientData when the
// store has no readings at all.
func (a *Analyzer) Run(ctx context.Context, now time.Time) (*models.AnalysisResult, error) {
	latest, err := a.readings.GetLatest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest reading: %w", err)
	}
	if latest == nil {
		return nil, ErrInsufficientData
	}

	history, err := a.readings.GetSince(ctx, historyDays)
	if err != nil {
		return nil, fmt.Errorf("failed to load reading history: %w", err)
	}

	// Missing HDD data degrades gracefully: the estimator falls back
	// to measured rates and the hot-water floor.
	hddMap, err := a.hdd.GetHDD(ctx, now.AddDate(0, 0, -historyDays), now)
	if err != nil {
		a.logger.Warn("HDD data unavailable, heating estimates degrade to baseline",
			zap.Error(err),
		)
		hddMap = map[string]float64{}
	}

	state, err := a.estimator.Estimate(history, hddMap, now)
	if err != nil {
		return nil, fmt.Errorf("estimation failed: %w", err)
	}

	result := &models.AnalysisResult{
		RunID:               uuid.NewString(),
		AnalysisDate:        now,
		CurrentLitres:       latest.LitresRemaining,
		CurrentPercentage:   latest.PercentageRemaining,
		Estimator:           state,
		ConsumptionPerHDD:   state.ConsumptionPerHDD,
		AvgDailyConsumption: state.BlendedRate,
	}

	// Refill-cycle figures. No refill ever observed is non-fatal: the
	// cycle fields stay unavailable and the result is tagged modeled.
	lastRefill, err := a.readings.GetLastRefill(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load last refill: %w", err)
	}
	if lastRefill != nil {
		result.RefillObserved = true
		result.DaysSinceRefill = int(now.Sub(lastRefill.Timestamp).Hours() / 24)
		result.ConsumptionSinceRefill = maxf(lastRefill.LitresRemaining-latest.LitresRemaining, 0)
		result.CO2SinceRefillKg = result.ConsumptionSinceRefill * a.cfg.Analysis.CO2PerLitre
	}

	// Projection from the blended rate and today's heating demand.
	todayHDD := hddMap[dateKey(now)]
	result.Projection = a.projector.Project(latest.LitresRemaining, state.BlendedRate, todayHDD, now)

	// HDD-modeled sub-estimates for the upcoming month.
	nextMonth := now.AddDate(0, 1, 0)
	daysInMonth := daysIn(nextMonth.Year(), int(nextMonth.Month()))
	result.UpcomingHDD = averageHDD(hddMap, now, 30) * float64(daysInMonth)
	result.SeasonalHeatingFactor = SeasonalHeatingFactor(int(nextMonth.Month()))
	result.EstimatedHotWaterDaily = state.HotWaterBaseline
	result.EstimatedHeatingDaily = a.estimator.HDDModelDaily(
		state.ConsumptionPerHDD, result.UpcomingHDD, int(nextMonth.Month()), daysInMonth,
	) - state.HotWaterBaseline

	if state.Measured() {
		result.DataQuality = models.QualityMeasured
	} else {
		result.DataQuality = models.QualityModeled
	}

	a.logger.Info("Analysis run completed",
		zap.String("run_id", result.RunID),
		zap.Float64("current_litres", result.CurrentLitres),
		zap.Float64("blended_rate_l", state.BlendedRate),
		zap.String("method", state.Method),
		zap.String("data_quality", result.DataQuality),
		zap.Bool("projection_known", result.Projection.Known),
	)

	return result, nil
}

// daysIn number of days in a month.
func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
