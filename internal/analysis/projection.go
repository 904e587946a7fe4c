package analysis

import (
	"time"

	"kerotrack/internal/config"
	"kerotrack/internal/models"
)

// Projector turns a current volume and daily rate into days-remaining
// and an empty date, with policy caps on the horizon.
type Projector struct {
	cfg config.AnalysisConfig
}

// NewProjector creates a projector.
func NewProjector(cfg config.AnalysisConfig) *Projector {
	return &Projector{cfg: cfg}
}

// Project computes the forecast. A non-positive rate yields an
// explicit unknown result, never infinity. Zero-HDD projections are
// less reliable over long horizons, so they get the looser cap.
func (p *Projector) Project(currentVolume, dailyRate, currentHDD float64, now time.Time) models.Projection {
	if dailyRate <= 0 {
		return models.Projection{Known: false}
	}

	days := currentVolume / dailyRate
	cap := p.cfg.ProjectionCapHDD
	if currentHDD == 0 {
		cap = p.cfg.ProjectionCapOff
	}

	out := models.Projection{Known: true, DaysRemaining: days}
	if days > cap {
		out.DaysRemaining = cap
		out.Capped = true
	}
	out.EmptyDate = now.Add(time.Duration(out.DaysRemaining * 24 * float64(time.Hour)))
	return out
}
