package analysis_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kerotrack/internal/analysis"
	"kerotrack/internal/config"
	"kerotrack/internal/models"
)

func testDetection() config.DetectionConfig {
	return config.DetectionConfig{
		RefillThreshold:         100,
		RefillAirGapDropMin:     5,
		LeakThreshold:           100,
		LeakRatePerDay:          10,
		MaxDailyConsumptionCold: 25,
		MaxDailyConsumptionWarm: 15,
		SuddenDropRateCMPerHour: 1.5,
		SuddenDropMinAirGapCM:   25,
		LearningPeriodHours:     24,
		LearningMinReadings:     48,
	}
}

func newTestClassifier(t *testing.T) *analysis.Classifier {
	t.Helper()
	return analysis.NewClassifier(testDetection(), testThermal(), zap.NewNop())
}

func prevReading(ts time.Time, litres, airGap float64) *models.Reading {
	return &models.Reading{
		Timestamp:       ts,
		LitresRemaining: litres,
		AirGapCM:        airGap,
		RefillDetected:  models.FlagNo,
		LeakDetected:    models.FlagNo,
		SuddenDrop:      models.FlagNo,
	}
}

func TestClassify_FirstReadingIsNormal(t *testing.T) {
	c := newTestClassifier(t)

	out := c.Classify(analysis.Normalized{Litres: 800, AirGapCM: 40}, time.Now(), nil)
	require.False(t, out.Refill)
	require.False(t, out.Leak)
	require.False(t, out.Clamped)
	require.Equal(t, 800.0, out.Volume)
}

func TestClassify_RefillWithAirGapCorroboration(t *testing.T) {
	c := newTestClassifier(t)
	t0 := time.Date(2025, 1, 14, 8, 0, 0, 0, time.UTC)

	current := analysis.Normalized{Litres: 950, AirGapCM: 30, TemperatureC: 8}
	out := c.Classify(current, t0.Add(6*time.Hour), prevReading(t0, 800, 40))

	require.True(t, out.Refill)
	require.False(t, out.Leak)
	require.False(t, out.Clamped)
	require.Equal(t, 950.0, out.Volume)
}

func TestClassify_VolumeJumpWithoutAirGapDropIsNotRefill(t *testing.T) {
	c := newTestClassifier(t)
	t0 := time.Date(2025, 1, 14, 8, 0, 0, 0, time.UTC)

	// 150L jump but the air gap barely moved: a lone bad reading, not
	// a delivery.
	current := analysis.Normalized{Litres: 950, AirGapCM: 38, TemperatureC: 8}
	out := c.Classify(current, t0.Add(6*time.Hour), prevReading(t0, 800, 40))

	require.False(t, out.Refill)
}

func TestClassify_LeakWithinOneDay(t *testing.T) {
	c := newTestClassifier(t)
	t0 := time.Date(2025, 1, 14, 8, 0, 0, 0, time.UTC)

	// 150L gone in half a day against an expected loss of 5L.
	current := analysis.Normalized{Litres: 750, AirGapCM: 55, TemperatureC: 5}
	out := c.Classify(current, t0.Add(12*time.Hour), prevReading(t0, 900, 42))

	require.True(t, out.Leak)
	require.False(t, out.Refill)

	// The sanity clamp caps the stored volume independently of the
	// leak flag: 25 L/day cold over half a day.
	require.True(t, out.Clamped)
	require.InDelta(t, 887.5, out.Volume, 0.001)
	require.InDelta(t, 750.0, out.RawVolume, 0.001)
}

func TestClassify_NoLeakAcrossLongGap(t *testing.T) {
	c := newTestClassifier(t)
	t0 := time.Date(2025, 1, 14, 8, 0, 0, 0, time.UTC)

	// Same 150L loss but over three days: could be normal burn after
	// an outage, the leak model does not apply.
	current := analysis.Normalized{Litres: 750, AirGapCM: 55, TemperatureC: 5}
	out := c.Classify(current, t0.Add(72*time.Hour), prevReading(t0, 900, 42))

	require.False(t, out.Leak)

	// 25 L/day over 3 days explains 75L; the rest is clamped.
	require.True(t, out.Clamped)
	require.InDelta(t, 825.0, out.Volume, 0.001)
}

func TestClassify_WarmWeatherClampBand(t *testing.T) {
	c := newTestClassifier(t)
	t0 := time.Date(2025, 6, 14, 8, 0, 0, 0, time.UTC)

	// 20L drop in one warm day exceeds the 15 L/day summer band.
	current := analysis.Normalized{Litres: 880, AirGapCM: 44, TemperatureC: 22}
	out := c.Classify(current, t0.Add(24*time.Hour), prevReading(t0, 900, 42))

	require.True(t, out.Clamped)
	require.InDelta(t, 885.0, out.Volume, 0.001)
}

func TestClassify_PlausibleDropNotClamped(t *testing.T) {
	c := newTestClassifier(t)
	t0 := time.Date(2025, 1, 14, 8, 0, 0, 0, time.UTC)

	current := analysis.Normalized{Litres: 890, AirGapCM: 43, TemperatureC: 5}
	out := c.Classify(current, t0.Add(24*time.Hour), prevReading(t0, 900, 42))

	require.False(t, out.Clamped)
	require.Equal(t, 890.0, out.Volume)
}

func TestSuddenDrop_SilentDuringLearningPeriod(t *testing.T) {
	d := analysis.NewSuddenDropDetector(testDetection(), zap.NewNop())
	t0 := time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC)

	history := make([]models.Reading, 10)
	for i := range history {
		history[i] = models.Reading{Timestamp: t0.Add(time.Duration(i) * 30 * time.Minute), AirGapCM: 50}
	}

	require.False(t, d.Check(60, t0.Add(5*time.Hour), history))
}

func TestSuddenDrop_DetectsFastAirGapRise(t *testing.T) {
	d := analysis.NewSuddenDropDetector(testDetection(), zap.NewNop())
	t0 := time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC)

	history := make([]models.Reading, 50)
	for i := range history {
		history[i] = models.Reading{Timestamp: t0.Add(time.Duration(i) * 30 * time.Minute), AirGapCM: 50}
	}
	// Last half hour: 2cm rise, 4 cm/hour.
	history[49].AirGapCM = 52

	require.True(t, d.Check(53, t0.Add(25*time.Hour), history))
}

func TestSuddenDrop_DetectsOnStoreShapedWindow(t *testing.T) {
	// A trailing-window query over the last 24h returns readings that
	// are all strictly younger than 24h; detection must not depend on
	// the oldest sample reaching back a full learning period.
	d := analysis.NewSuddenDropDetector(testDetection(), zap.NewNop())
	at := time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)
	start := at.Add(-23*time.Hour - 45*time.Minute)

	history := make([]models.Reading, 48)
	for i := range history {
		history[i] = models.Reading{Timestamp: start.Add(time.Duration(i) * 30 * time.Minute), AirGapCM: 50}
	}
	// 4cm rise over the last half hour: 8 cm/hour.
	history[47].AirGapCM = 54

	require.True(t, d.Check(55, at, history))
}

func TestSuddenDrop_SteadyLevelIsQuiet(t *testing.T) {
	d := analysis.NewSuddenDropDetector(testDetection(), zap.NewNop())
	t0 := time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC)

	history := make([]models.Reading, 50)
	for i := range history {
		history[i] = models.Reading{Timestamp: t0.Add(time.Duration(i) * 30 * time.Minute), AirGapCM: 50}
	}

	require.False(t, d.Check(50, t0.Add(25*time.Hour), history))
}

func TestSuddenDrop_TooCloseToSensor(t *testing.T) {
	d := analysis.NewSuddenDropDetector(testDetection(), zap.NewNop())
	t0 := time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC)

	history := make([]models.Reading, 50)
	for i := range history {
		history[i] = models.Reading{Timestamp: t0.Add(time.Duration(i) * 30 * time.Minute), AirGapCM: 10}
	}
	history[49].AirGapCM = 20

	require.False(t, d.Check(20, t0.Add(25*time.Hour), history))
}
