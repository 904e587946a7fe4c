package models

import "fmt"

// RawReading is the payload a Watchman Sonic sensor emits via
// rtl_433. Only model, id, depth and temperature are guaranteed; rssi
// and status appear on the Advanced variant.
type RawReading struct {
	Model        string   `json:"model"`
	ID           int      `json:"id"`
	Time         string   `json:"time,omitempty"`
	DepthCM      float64  `json:"depth_cm"`
	TemperatureC float64  `json:"temperature_C"`
	RSSI         *float64 `json:"rssi,omitempty"`
	Status       *int     `json:"status,omitempty"`
}

// SignalQuality interprets the RSSI value.
func (r *RawReading) SignalQuality() string {
	if r.RSSI == nil {
		return ""
	}
	switch {
	case *r.RSSI >= -50:
		return "Excellent"
	case *r.RSSI >= -70:
		return "Good"
	case *r.RSSI >= -90:
		return "Fair"
	default:
		return "Poor"
	}
}

// Watchman Sonic Advanced status byte values.
var statusDescriptions = map[int]string{
	0xC0: "Initial sync (20min fast reporting)",
	0x80: "Post-sync calibration",
	0x90: "Transitional state",
	0x98: "Normal operation",
}

// StatusDescription decodes the sensor status byte.
func (r *RawReading) StatusDescription() string {
	if r.Status == nil {
		return ""
	}
	if desc, ok := statusDescriptions[*r.Status]; ok {
		return desc
	}
	return fmt.Sprintf("Unknown status: %d", *r.Status)
}
