package models

import "time"

// Detection flag values persisted with each reading.
const (
	FlagYes = "y"
	FlagNo  = "n"
)

// Reading one normalized sensor sample. Rows are append-only: once a
// reading is classified and stored it is never mutated by the engine.
type Reading struct {
	ID                  string    `json:"id"`
	Timestamp           time.Time `json:"date"`
	TemperatureC        float64   `json:"temperature"`
	LitresRemaining     float64   `json:"litres_remaining"`
	RawLitres           float64   `json:"raw_litres"`
	LitresUsedSinceLast float64   `json:"litres_used_since_last"`
	PercentageRemaining float64   `json:"percentage_remaining"`
	OilDepthCM          float64   `json:"oil_depth_cm"`
	AirGapCM            float64   `json:"air_gap_cm"`
	CurrentPPL          *float64  `json:"current_ppl,omitempty"` // pence per litre, nil when no quote was available
	CostUsed            *float64  `json:"cost_used,omitempty"`
	CostToFill          *float64  `json:"cost_to_fill,omitempty"`
	HeatingDegreeDays   float64   `json:"heating_degree_days"`
	SeasonalEfficiency  float64   `json:"seasonal_efficiency"`
	RefillDetected      string    `json:"refill_detected"`     // "y"/"n"
	LeakDetected        string    `json:"leak_detected"`       // "y"/"n"
	SuddenDrop          string    `json:"sudden_drop"`         // "y"/"n", independent of refill/leak
	RawFlags            *int      `json:"raw_flags,omitempty"` // Watchman status byte
	LitresToOrder       float64   `json:"litres_to_order"`
	BarsRemaining       int       `json:"bars_remaining"`
}

// IsRefill reports whether this reading was labeled as a refill.
func (r *Reading) IsRefill() bool { return r.RefillDetected == FlagYes }

// IsLeak reports whether this reading was labeled as a leak.
func (r *Reading) IsLeak() bool { return r.LeakDetected == FlagYes }

// HDDSample one calendar day's heating degree day index, supplied
// externally (keyed by date, read-only scaling input).
type HDDSample struct {
	Date time.Time `json:"date"`
	HDD  float64   `json:"hdd"`
}
