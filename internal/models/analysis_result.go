package models

import "time"

// Estimation methods recorded on an AnalysisResult so consumers can
// tell measured figures from modeled ones.
const (
	MethodAdjustedPeriod = "adjusted_period" // measured usage, HDD-adjusted
	MethodEMA            = "ema"             // measured exponential moving average
	MethodRefillCycle    = "refill_cycle"    // historical refill-to-refill average
	MethodHotWaterFloor  = "hot_water_floor" // fixed scheduled hot water baseline
)

// EstimatorState the component daily-rate estimates and their blend.
// Recomputed from a reading window on each invocation; nothing here is
// persisted by the engine itself.
type EstimatorState struct {
	EMARate           float64 `json:"ema_rate_l"`            // litres/day, 0 when unavailable
	RefillCycleRate   float64 `json:"refill_cycle_rate_l"`   // litres/day, 0 when no refill history
	HotWaterBaseline  float64 `json:"hot_water_baseline_l"`  // litres/day floor
	HeatingRate       float64 `json:"heating_rate_l"`        // litres/day HDD-scaled heating component
	ConsumptionPerHDD float64 `json:"consumption_per_hdd_l"` // litres per heating degree day
	BlendedRate       float64 `json:"blended_rate_l"`        // the figure used for projection
	Method            string  `json:"method"`                // which fallback produced BlendedRate
}

// Measured reports whether the blended rate came from observed
// consumption rather than the modeled hot-water floor.
func (s *EstimatorState) Measured() bool {
	return s.Method != MethodHotWaterFloor
}

// Projection days-remaining and empty-date, purely derived. Known is
// false when the daily rate was non-positive; consumers must branch on
// it rather than read the zero values.
type Projection struct {
	Known         bool      `json:"known"`
	DaysRemaining float64   `json:"days_remaining,omitempty"`
	EmptyDate     time.Time `json:"empty_date,omitempty"`
	Capped        bool      `json:"capped,omitempty"` // hit the policy ceiling
}

// PeriodUsage refill-aware usage over an ordered reading window.
type PeriodUsage struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	UsageLitres  float64   `json:"usage_litres"`
	RefillLitres float64   `json:"refill_litres"`
	RefillCount  int       `json:"refill_count"`
	AveragePPL   *float64  `json:"average_ppl,omitempty"` // nil when no reading carried a price
	ReadingCount int       `json:"reading_count"`
}

// AnalysisResult one analysis run's snapshot. Rows are an insert-only
// audit trail.
type AnalysisResult struct {
	RunID                  string         `json:"run_id"`
	AnalysisDate           time.Time      `json:"latest_analysis_date"`
	RefillObserved         bool           `json:"refill_observed"`
	DaysSinceRefill        int            `json:"days_since_refill"`
	ConsumptionSinceRefill float64        `json:"total_consumption_since_refill"`
	AvgDailyConsumption    float64        `json:"avg_daily_consumption_l"`
	Estimator              EstimatorState `json:"estimator"`
	Projection             Projection     `json:"projection"`
	CurrentLitres          float64        `json:"current_litres"`
	CurrentPercentage      float64        `json:"current_percentage"`
	ConsumptionPerHDD      float64        `json:"consumption_per_hdd_l"`
	UpcomingHDD            float64        `json:"upcoming_hdd"`
	SeasonalHeatingFactor  float64        `json:"seasonal_heating_factor"`
	EstimatedHeatingDaily  float64        `json:"estimated_daily_heating_consumption_l"`
	EstimatedHotWaterDaily float64        `json:"estimated_daily_hot_water_consumption_l"`
	CO2SinceRefillKg       float64        `json:"co2_since_refill_kg"`
	DataQuality            string         `json:"data_quality"` // "measured" or "modeled"
}

// Data quality tags.
const (
	QualityMeasured = "measured"
	QualityModeled  = "modeled"
)
