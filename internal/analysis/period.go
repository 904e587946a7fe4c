package analysis

import (
	"kerotrack/internal/models"
)

// AggregateUsage computes refill-aware usage, refill volume, and the
// average unit price over an ordered reading window. Refill deltas are
// excluded from usage so a delivery inside the window never inflates
// consumption. Returns ErrInsufficientData under 2 readings; callers
// must treat that as "insufficient data", not zero usage.
func AggregateUsage(readings []models.Reading, refillThreshold float64) (models.PeriodUsage, error) {
	if len(readings) < 2 {
		return models.PeriodUsage{}, ErrInsufficientData
	}

	out := models.PeriodUsage{
		Start:        readings[0].Timestamp,
		End:          readings[len(readings)-1].Timestamp,
		ReadingCount: len(readings),
	}

	var totalDecrease float64
	for i := 1; i < len(readings); i++ {
		prev, curr := readings[i-1], readings[i]
		delta := curr.LitresRemaining - prev.LitresRemaining
		if curr.IsRefill() || delta >= refillThreshold {
			out.RefillLitres += delta
			out.RefillCount++
			continue
		}
		if delta < 0 {
			totalDecrease += -delta
		}
	}

	if out.RefillCount > 0 {
		out.UsageLitres = totalDecrease
	} else {
		// No refill in the window: the end-to-end drop absorbs sensor
		// noise better than summing per-pair decreases.
		usage := readings[0].LitresRemaining - readings[len(readings)-1].LitresRemaining
		if usage < 0 {
			usage = 0
		}
		out.UsageLitres = usage
	}

	var priceSum float64
	priceCount := 0
	for _, r := range readings {
		if r.CurrentPPL != nil {
			priceSum += *r.CurrentPPL
			priceCount++
		}
	}
	if priceCount > 0 {
		avg := priceSum / float64(priceCount)
		out.AveragePPL = &avg
	}

	return out, nil
}
