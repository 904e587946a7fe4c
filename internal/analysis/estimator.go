package analysis

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"kerotrack/internal/config"
	"kerotrack/internal/models"
)

// Sentinel errors for the insufficient-data taxonomy. Callers must
// branch on these rather than treat a zero rate as real.
var (
	ErrInsufficientData = errors.New("insufficient readings for estimation")
	ErrNoRefillHistory  = errors.New("no refill history available")
)

// dateKey formats a timestamp as the daily HDD map key.
func dateKey(t time.Time) string { return t.Format("2006-01-02") }

// Estimator blends several independent daily-rate estimators into the
// single figure used for projection. Stateless: every estimate is a
// pure function of the supplied reading window, HDD table, and config.
type Estimator struct {
	cfg             config.EstimatorConfig
	boiler          config.BoilerConfig
	refillThreshold float64
	logger          *zap.Logger
}

// NewEstimator creates an estimator. The refill threshold comes from
// the detection config so both components agree on what a refill is.
func NewEstimator(cfg config.EstimatorConfig, boiler config.BoilerConfig, detection config.DetectionConfig, logger *zap.Logger) *Estimator {
	return &Estimator{cfg: cfg, boiler: boiler, refillThreshold: detection.RefillThreshold, logger: logger}
}

// HotWaterBaseline the fixed daily litres for scheduled hot water
// heating plus the ad hoc buffer. A floor, not a measurement.
func (e *Estimator) HotWaterBaseline() float64 {
	scheduled := e.boiler.WeeklySessionCount * e.boiler.SessionDurationHrs * e.boiler.FuelRate / 7
	return scheduled * e.boiler.HotWaterBufferRatio
}

// EMARate folds consecutive-pair litres/day samples into an
// exponential moving average. The running average resets whenever a
// pair looks like a refill, so post-refill data dominates. Returns
// false when no valid pair produced a sample.
func (e *Estimator) EMARate(readings []models.Reading) (float64, bool) {
	var ema float64
	seeded := false

	for i := 1; i < len(readings); i++ {
		prev, curr := readings[i-1], readings[i]
		days := curr.Timestamp.Sub(prev.Timestamp).Hours() / 24
		if days <= 0 {
			continue
		}
		diff := prev.LitresRemaining - curr.LitresRemaining

		if curr.IsRefill() || -diff >= e.refillThreshold {
			// Refill: discard the running average, the cycle restarted.
			ema = 0
			seeded = false
			continue
		}
		if diff <= 0 {
			continue
		}

		rate := diff / days
		if !seeded {
			ema = rate
			seeded = true
		} else {
			ema = e.cfg.EMAAlpha*rate + (1-e.cfg.EMAAlpha)*ema
		}
	}

	if !seeded {
		return 0, false
	}
	if ema < e.cfg.MinimumConsumptionRate {
		ema = e.cfg.MinimumConsumptionRate
	}
	return ema, true
}

// RefillCycleRate averages litres/day over the last few refill-to-refill
// cycles. Only cycles ending in a significant refill (volume increase
// at or above the refill threshold) are counted. Used as a fallback
// when the current cycle has no usable data, e.g. just after a refill.
func (e *Estimator) RefillCycleRate(readings []models.Reading) (float64, error) {
	var cycles []float64

	// Find refill points with their immediate predecessors.
	var lastRefillIdx = -1
	for i := 1; i < len(readings); i++ {
		curr := readings[i]
		prev := readings[i-1]
		increase := curr.LitresRemaining - prev.LitresRemaining
		if !curr.IsRefill() && increase < e.refillThreshold {
			continue
		}
		if increase < e.refillThreshold {
			// Flagged but not significant; skip per the historical
			// average's significance rule.
			lastRefillIdx = i
			continue
		}
		if lastRefillIdx >= 0 {
			start := readings[lastRefillIdx]
			end := prev // reading just before this refill
			days := end.Timestamp.Sub(start.Timestamp).Hours() / 24
			consumed := start.LitresRemaining - end.LitresRemaining
			if days > 0 && consumed > 0 {
				cycles = append(cycles, consumed/days)
			}
		}
		lastRefillIdx = i
	}

	if len(cycles) == 0 {
		return 0, ErrNoRefillHistory
	}
	if len(cycles) > e.cfg.MaxRefillCycles {
		cycles = cycles[len(cycles)-e.cfg.MaxRefillCycles:]
	}
	var sum float64
	for _, r := range cycles {
		sum += r
	}
	return sum / float64(len(cycles)), nil
}

// dailyUsage measured positive consumption per calendar day, refill
// pairs excluded. Keys are YYYY-MM-DD.
func (e *Estimator) dailyUsage(readings []models.Reading) map[string]float64 {
	usage := make(map[string]float64)
	for i := 1; i < len(readings); i++ {
		prev, curr := readings[i-1], readings[i]
		diff := prev.LitresRemaining - curr.LitresRemaining
		if curr.IsRefill() || -diff >= e.refillThreshold {
			continue
		}
		if diff <= 0 {
			continue
		}
		usage[dateKey(curr.Timestamp)] += diff
	}
	return usage
}

// adjustedRate the HDD-adjusted daily rate over a window: days with
// zero HDD count as hot-water-only days floored at the baseline, all
// other days count their measured usage. Returns false under 2 readings
// or an empty window.
func (e *Estimator) adjustedRate(readings []models.Reading, hdd map[string]float64, from, to time.Time) (float64, bool) {
	var window []models.Reading
	for _, r := range readings {
		if !r.Timestamp.Before(from) && !r.Timestamp.After(to) {
			window = append(window, r)
		}
	}
	if len(window) < 2 {
		return 0, false
	}

	usage := e.dailyUsage(window)
	baseline := e.HotWaterBaseline()

	var total float64
	days := 0
	for d := truncateDay(window[0].Timestamp); !d.After(truncateDay(window[len(window)-1].Timestamp)); d = d.AddDate(0, 0, 1) {
		key := dateKey(d)
		measured := usage[key]
		if hdd[key] == 0 {
			// Hot-water-only day.
			if measured < baseline {
				measured = baseline
			}
		}
		total += measured
		days++
	}
	if days == 0 {
		return 0, false
	}
	return total / float64(days), true
}

// Estimate computes the component estimates and the blended daily rate
// from a reading window (ordered ascending, long enough to cover the
// long lookback and ideally the last few refill cycles) and a daily HDD
// table. Returns ErrInsufficientData only when not even the hot-water
// floor applies, which in practice is never: the floor is the last
// fallback.
func (e *Estimator) Estimate(readings []models.Reading, hdd map[string]float64, now time.Time) (models.EstimatorState, error) {
	state := models.EstimatorState{
		HotWaterBaseline: e.HotWaterBaseline(),
	}

	if ema, ok := e.EMARate(readings); ok {
		state.EMARate = ema
	}
	if cycleRate, err := e.RefillCycleRate(readings); err == nil {
		state.RefillCycleRate = cycleRate
	}
	state.ConsumptionPerHDD = e.consumptionPerHDD(readings, hdd)

	baseline := state.HotWaterBaseline
	todayHDD := hdd[dateKey(now)]

	// The adjusted-period path needs HDD coverage to tell heating days
	// from hot-water-only days; without any HDD data it is skipped and
	// measured rates take over.
	var heating float64
	var adjustedOK bool
	if len(hdd) > 0 {
		shortFrom := now.AddDate(0, 0, -e.cfg.ShortWindowDays)
		longFrom := now.AddDate(0, 0, -e.cfg.LongWindowDays)
		shortRate, shortOK := e.adjustedRate(readings, hdd, shortFrom, now)
		longRate, longOK := e.adjustedRate(readings, hdd, longFrom, now)

		switch {
		case shortOK && longOK:
			w := e.cfg.ShortWindowWeight
			heating = w*maxf(shortRate-baseline, 0) + (1-w)*maxf(longRate-baseline, 0)
			adjustedOK = true
		case shortOK:
			heating = maxf(shortRate-baseline, 0)
			adjustedOK = true
		case longOK:
			heating = maxf(longRate-baseline, 0)
			adjustedOK = true
		}
	}

	if adjustedOK {
		// Scale to today's heating demand relative to the recent week,
		// clamped so a single anomalous day cannot swing the estimate.
		avg7 := averageHDD(hdd, now, 7)
		if avg7 > 0 {
			ratio := clamp(todayHDD/avg7, e.cfg.HDDRatioFloor, e.cfg.HDDRatioCeil)
			heating *= ratio
		}
		if heating > 0 {
			heating = clamp(heating, e.cfg.MinHeatingLitres, e.cfg.MaxHeatingLitres)
		}
		if todayHDD == 0 {
			heating = 0
		}
		state.HeatingRate = heating
		state.BlendedRate = maxf(baseline+heating, baseline)
		state.Method = models.MethodAdjustedPeriod
	} else if state.EMARate > 0 {
		state.BlendedRate = maxf(state.EMARate, baseline)
		state.Method = models.MethodEMA
	} else if state.RefillCycleRate > 0 {
		state.BlendedRate = maxf(state.RefillCycleRate, baseline)
		state.Method = models.MethodRefillCycle
	} else {
		state.BlendedRate = baseline
		state.Method = models.MethodHotWaterFloor
	}

	e.logger.Debug("Estimated daily consumption",
		zap.Float64("ema_rate_l", state.EMARate),
		zap.Float64("refill_cycle_rate_l", state.RefillCycleRate),
		zap.Float64("heating_rate_l", state.HeatingRate),
		zap.Float64("hot_water_baseline_l", state.HotWaterBaseline),
		zap.Float64("blended_rate_l", state.BlendedRate),
		zap.String("method", state.Method),
	)

	return state, nil
}

// consumptionPerHDD the historical litres per heating degree day over
// the window, counting only days with non-zero HDD.
func (e *Estimator) consumptionPerHDD(readings []models.Reading, hdd map[string]float64) float64 {
	usage := e.dailyUsage(readings)
	var totalUsage, totalHDD float64
	for key, u := range usage {
		if h := hdd[key]; h > 0 {
			totalUsage += u
			totalHDD += h
		}
	}
	if totalHDD == 0 {
		return 0
	}
	return totalUsage / totalHDD
}

// HDDModelDaily projects a heating-specific daily rate for an upcoming
// period from the historical consumption-per-HDD ratio, combined
// additively with the hot-water baseline.
func (e *Estimator) HDDModelDaily(consumptionPerHDD, upcomingHDD float64, month, daysInMonth int) float64 {
	if daysInMonth <= 0 {
		daysInMonth = 30
	}
	heating := consumptionPerHDD * upcomingHDD * SeasonalHeatingFactor(month) / float64(daysInMonth)
	return heating + e.HotWaterBaseline()
}

// averageHDD mean daily HDD over the trailing n days ending at now.
func averageHDD(hdd map[string]float64, now time.Time, n int) float64 {
	var sum float64
	count := 0
	for i := 0; i < n; i++ {
		key := dateKey(now.AddDate(0, 0, -i))
		if v, ok := hdd[key]; ok {
			sum += v
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
