package analysis

import (
	"time"

	"go.uber.org/zap"

	"kerotrack/internal/config"
	"kerotrack/internal/models"
)

// Classification labels for one reading transition. Volume is the value
// to persist; RawVolume is the normalizer's output before the sanity
// clamp, kept visible so the rewrite is never hidden from consumers.
type Classification struct {
	Refill    bool
	Leak      bool
	Volume    float64
	RawVolume float64
	Clamped   bool
}

// Classifier labels a new reading against the immediately preceding
// stored reading. Pure: persistence is the caller's responsibility.
type Classifier struct {
	detection config.DetectionConfig
	thermal   config.ThermalConfig
	logger    *zap.Logger
}

// NewClassifier creates a classifier.
func NewClassifier(detection config.DetectionConfig, thermal config.ThermalConfig, logger *zap.Logger) *Classifier {
	return &Classifier{detection: detection, thermal: thermal, logger: logger}
}

// Classify labels the transition from prev to the current normalized
// sample. prev is nil for the very first reading, which is always
// normal. Rules, in order: refill (volume jump with air-gap
// corroboration), leak (short-interval unexplained loss), sanity clamp
// (bounds the persisted volume without touching the flags).
func (c *Classifier) Classify(current Normalized, at time.Time, prev *models.Reading) Classification {
	out := Classification{
		Volume:    current.Litres,
		RawVolume: current.Litres,
	}
	if prev == nil {
		return out
	}

	elapsed := at.Sub(prev.Timestamp)
	elapsedDays := elapsed.Hours() / 24

	volumeIncrease := current.Litres - prev.LitresRemaining
	airGapDecrease := prev.AirGapCM - current.AirGapCM

	// Refill needs the air gap to corroborate the volume jump; a jump
	// alone can be a single bad reading.
	if volumeIncrease >= c.detection.RefillThreshold && airGapDecrease > c.detection.RefillAirGapDropMin {
		out.Refill = true
		c.logger.Info("Refill detected",
			zap.Float64("volume_increase_l", volumeIncrease),
			zap.Float64("air_gap_decrease_cm", airGapDecrease),
		)
	}

	// Leak detection only within a one-day gap; across longer gaps
	// (sensor restarts, outages) the expected-loss model is meaningless.
	if !out.Refill && elapsed <= 24*time.Hour && elapsedDays > 0 {
		expectedLoss := c.detection.LeakRatePerDay * elapsedDays
		actualLoss := prev.LitresRemaining - current.Litres
		if actualLoss > expectedLoss && actualLoss >= c.detection.LeakThreshold {
			out.Leak = true
			c.logger.Warn("Leak detected",
				zap.Float64("actual_loss_l", actualLoss),
				zap.Float64("expected_loss_l", expectedLoss),
				zap.Float64("elapsed_days", elapsedDays),
			)
		}
	}

	// Sanity clamp: cap an implausible drop at the maximum plausible
	// consumption for the elapsed time. Applies to the stored volume
	// only, never the flags.
	if !out.Refill && elapsedDays > 0 {
		maxDaily := c.detection.MaxDailyConsumptionCold
		if current.TemperatureC > c.thermal.WarmTemperatureThreshold {
			maxDaily = c.detection.MaxDailyConsumptionWarm
		}
		expectedMax := maxDaily * elapsedDays
		actual := prev.LitresRemaining - current.Litres
		if actual > expectedMax {
			out.Volume = prev.LitresRemaining - expectedMax
			out.Clamped = true
			c.logger.Warn("Unusually high consumption, clamping stored volume",
				zap.Float64("actual_drop_l", actual),
				zap.Float64("expected_max_l", expectedMax),
				zap.Float64("raw_volume_l", out.RawVolume),
				zap.Float64("clamped_volume_l", out.Volume),
			)
		}
	}

	return out
}

// SuddenDropDetector flags a fast air-gap increase rate measured over a
// trailing hour. Independent of refill/leak labeling: a reading can
// carry both signals.
type SuddenDropDetector struct {
	detection config.DetectionConfig
	logger    *zap.Logger
}

// NewSuddenDropDetector creates a sudden-drop detector.
func NewSuddenDropDetector(detection config.DetectionConfig, logger *zap.Logger) *SuddenDropDetector {
	return &SuddenDropDetector{detection: detection, logger: logger}
}

// Check evaluates the current air gap against the trailing-hour window.
// history holds the readings from the last learning period, ordered by
// timestamp ascending; the detector stays silent until the window
// carries the minimum sample count, so a fresh install learns the
// normal cadence before alarming.
func (d *SuddenDropDetector) Check(airGapCM float64, at time.Time, history []models.Reading) bool {
	if airGapCM < d.detection.SuddenDropMinAirGapCM {
		// Too close to the sensor for the rate heuristic to be reliable.
		return false
	}
	if len(history) < d.detection.LearningMinReadings {
		return false
	}

	// Trailing hour only.
	var window []models.Reading
	cutoff := at.Add(-time.Hour)
	for _, r := range history {
		if !r.Timestamp.Before(cutoff) {
			window = append(window, r)
		}
	}
	if len(window) < 2 {
		return false
	}

	first := window[0]
	last := window[len(window)-1]
	hours := last.Timestamp.Sub(first.Timestamp).Hours()
	if hours <= 0 {
		return false
	}
	rate := (last.AirGapCM - first.AirGapCM) / hours
	if rate >= d.detection.SuddenDropRateCMPerHour {
		d.logger.Warn("Sudden drop detected",
			zap.Float64("rate_cm_per_hour", rate),
			zap.Float64("air_gap_cm", airGapCM),
		)
		return true
	}
	return false
}
