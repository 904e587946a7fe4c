package analysis

import (
	"fmt"
	"math"

	"kerotrack/internal/config"
)

// Normalized a physically normalized sensor sample, before
// classification against history.
type Normalized struct {
	AirGapCM          float64
	TemperatureC      float64
	Litres            float64 // temperature-compensated, clamped to [0, capacity]
	RawLitres         float64 // geometric volume before thermal correction
	Percentage        float64
	OilDepthCM        float64
	LitresToOrder     float64
	BarsRemaining     int
	HeatingDegreeDays float64
}

// Normalizer converts raw (air gap, temperature) pairs into
// temperature-compensated volumes for a fixed tank geometry.
type Normalizer struct {
	tank    config.TankConfig
	thermal config.ThermalConfig
}

// NewNormalizer validates the geometry and returns a normalizer.
func NewNormalizer(tank config.TankConfig, thermal config.ThermalConfig) (*Normalizer, error) {
	if tank.Capacity <= 0 {
		return nil, fmt.Errorf("normalizer: tank capacity must be positive, got %v", tank.Capacity)
	}
	if tank.Height <= 0 {
		return nil, fmt.Errorf("normalizer: tank height must be positive, got %v", tank.Height)
	}
	return &Normalizer{tank: tank, thermal: thermal}, nil
}

// Normalize converts one raw sample. Deterministic and monotonic in
// airGapCM for a fixed temperature. Malformed numeric input (NaN, Inf)
// is a caller precondition violation and is not handled here.
func (n *Normalizer) Normalize(airGapCM, temperatureC float64) Normalized {
	out := Normalized{
		AirGapCM:          airGapCM,
		TemperatureC:      temperatureC,
		HeatingDegreeDays: math.Max(0, n.thermal.HDDBaseTemperature-temperatureC),
	}

	// Within 1cm of the sensor the ultrasonic headspace reading is
	// inside its own tolerance: treat as a full tank.
	if airGapCM <= 1 {
		out.Litres = n.tank.Capacity
		out.RawLitres = n.tank.Capacity
	} else {
		oilHeight := math.Max(0, n.tank.Height-airGapCM)
		raw := (oilHeight / n.tank.Height) * n.tank.Capacity
		compensated := raw / (1 + n.thermal.ExpansionCoefficient*(temperatureC-n.thermal.ReferenceTemperature))
		out.RawLitres = raw
		out.Litres = clamp(compensated, 0, n.tank.Capacity)
	}

	out.Percentage = out.Litres / n.tank.Capacity * 100
	out.OilDepthCM = math.Max(0, n.tank.Height-airGapCM)
	out.LitresToOrder = n.tank.Capacity - out.Litres
	out.BarsRemaining = barsForPercentage(out.Percentage)
	return out
}

// Capacity returns the configured tank capacity in litres.
func (n *Normalizer) Capacity() float64 { return n.tank.Capacity }

// DisplayFor re-derives the display fields for a volume rewritten after
// normalization, so percentage, order size and bars always agree with
// the litres actually stored.
func (n *Normalizer) DisplayFor(litres float64) (percentage, litresToOrder float64, bars int) {
	percentage = litres / n.tank.Capacity * 100
	litresToOrder = n.tank.Capacity - litres
	bars = barsForPercentage(percentage)
	return percentage, litresToOrder, bars
}

// barsForPercentage maps a fill percentage onto the 10-bar display
// scale used by the sensor's own receiver.
func barsForPercentage(percentage float64) int {
	thresholds := []float64{0, 15, 25, 35, 45, 55, 65, 75, 85, 95}
	for i, threshold := range thresholds {
		if percentage <= threshold {
			if i < 1 {
				return 1
			}
			return i
		}
	}
	return 10
}

// SeasonalEfficiency boiler efficiency factor by month: winter burns
// run longer and more efficiently, summer cycling wastes more.
func SeasonalEfficiency(month int) float64 {
	switch month {
	case 12, 1, 2:
		return 0.95
	case 6, 7, 8:
		return 0.99
	default:
		return 0.97
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
