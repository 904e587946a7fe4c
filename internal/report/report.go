package report

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"kerotrack/internal/analysis"
	"kerotrack/internal/config"
	"kerotrack/internal/models"
)

// PeriodSummary describes consumption between two refills.
type PeriodSummary struct {
	Start        time.Time
	End          time.Time
	Days         float64
	UsageLitres  float64
	RefillLitres float64
	AvgDailyL    float64
	AvgPPL       *float64
	CostGBP      *float64
	TotalHDD     float64
	LitresPerHDD *float64
	CO2Kg        float64
}

// MonthlySummary aggregates consumption per calendar month.
type MonthlySummary struct {
	Month       string // YYYY-MM
	UsageLitres float64
	AvgDailyL   float64
	TotalHDD    float64
	CostGBP     *float64
	CO2Kg       float64
}

// Builder derives refill-period and monthly summaries from the
// reading history.
type Builder struct {
	refillThreshold float64
	co2PerLitre     float64
	logger          *zap.Logger
}

// NewBuilder creates a summary builder.
func NewBuilder(detection config.DetectionConfig, co2PerLitre float64, logger *zap.Logger) *Builder {
	return &Builder{
		refillThreshold: detection.RefillThreshold,
		co2PerLitre:     co2PerLitre,
		logger:          logger,
	}
}

// RefillPeriods splits the history at each detected refill and
// summarises the consumption of every complete segment. Readings must
// be in ascending time order.
func (b *Builder) RefillPeriods(readings []models.Reading) []PeriodSummary {
	if len(readings) < 2 {
		return nil
	}

	var segments [][]models.Reading
	start := 0
	for i := 1; i < len(readings); i++ {
		if readings[i].IsRefill() {
			segments = append(segments, readings[start:i+1])
			start = i
		}
	}
	segments = append(segments, readings[start:])

	var periods []PeriodSummary
	for _, segment := range segments {
		usage, err := analysis.AggregateUsage(segment, b.refillThreshold)
		if err != nil {
			continue
		}
		periods = append(periods, b.summarise(segment, usage))
	}
	return periods
}

func (b *Builder) summarise(segment []models.Reading, usage models.PeriodUsage) PeriodSummary {
	days := usage.End.Sub(usage.Start).Hours() / 24

	summary := PeriodSummary{
		Start:        usage.Start,
		End:          usage.End,
		Days:         days,
		UsageLitres:  usage.UsageLitres,
		RefillLitres: usage.RefillLitres,
		AvgPPL:       usage.AveragePPL,
		CO2Kg:        usage.UsageLitres * b.co2PerLitre,
	}
	if days > 0 {
		summary.AvgDailyL = usage.UsageLitres / days
	}
	for _, r := range segment {
		summary.TotalHDD += r.HeatingDegreeDays
	}
	if summary.TotalHDD > 0 {
		perHDD := usage.UsageLitres / summary.TotalHDD
		summary.LitresPerHDD = &perHDD
	}
	if usage.AveragePPL != nil {
		cost := usage.UsageLitres * *usage.AveragePPL / 100
		summary.CostGBP = &cost
	}
	return summary
}

// Monthly aggregates consumption per calendar month from the
// litres_used_since_last deltas, so refills do not show up as
// negative usage.
func (b *Builder) Monthly(readings []models.Reading) []MonthlySummary {
	type bucket struct {
		usage   float64
		hdd     float64
		cost    float64
		hasCost bool
		days    map[string]struct{}
	}

	buckets := make(map[string]*bucket)
	var order []string

	for _, r := range readings {
		month := r.Timestamp.Format("2006-01")
		bkt, ok := buckets[month]
		if !ok {
			bkt = &bucket{days: make(map[string]struct{})}
			buckets[month] = bkt
			order = append(order, month)
		}
		bkt.usage += r.LitresUsedSinceLast
		bkt.hdd += r.HeatingDegreeDays
		bkt.days[r.Timestamp.Format("2006-01-02")] = struct{}{}
		if r.CurrentPPL != nil {
			bkt.cost += r.LitresUsedSinceLast * *r.CurrentPPL / 100
			bkt.hasCost = true
		}
	}

	summaries := make([]MonthlySummary, 0, len(order))
	for _, month := range order {
		bkt := buckets[month]
		summary := MonthlySummary{
			Month:       month,
			UsageLitres: bkt.usage,
			TotalHDD:    bkt.hdd,
			CO2Kg:       bkt.usage * b.co2PerLitre,
		}
		if n := len(bkt.days); n > 0 {
			summary.AvgDailyL = bkt.usage / float64(n)
		}
		if bkt.hasCost {
			cost := bkt.cost
			summary.CostGBP = &cost
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

func formatOptional(v *float64, format string) any {
	if v == nil {
		return ""
	}
	return fmt.Sprintf(format, *v)
}
