package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"kerotrack/internal/models"
)

var refillPeriodHeader = []string{
	"Period Start",
	"Period End",
	"Days",
	"Usage (L)",
	"Refill (L)",
	"Avg Daily (L)",
	"Avg PPL (p)",
	"Cost (GBP)",
	"Total HDD",
	"Litres per HDD",
	"CO2 (kg)",
}

var monthlyHeader = []string{
	"Month",
	"Usage (L)",
	"Avg Daily (L)",
	"Total HDD",
	"Cost (GBP)",
	"CO2 (kg)",
}

var trendHeader = []string{
	"Run Date",
	"Litres",
	"% Remaining",
	"Daily Rate (L)",
	"Method",
	"Quality",
	"Days Remaining",
}

// GenerateWorkbook builds an Excel workbook with one sheet of
// refill-period summaries, one of monthly summaries, and, when run
// history is supplied, one tracing how the estimate moved run over
// run.
func GenerateWorkbook(periods []PeriodSummary, monthly []MonthlySummary, trend []models.AnalysisResult) ([]byte, error) {
	f := excelize.NewFile()
	// Don't defer Close() here, WriteTo needs the file open.

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	periodRows := make([][]any, len(periods))
	for i, p := range periods {
		periodRows[i] = []any{
			p.Start.Format("2006-01-02 15:04"),
			p.End.Format("2006-01-02 15:04"),
			fmt.Sprintf("%.1f", p.Days),
			fmt.Sprintf("%.1f", p.UsageLitres),
			fmt.Sprintf("%.1f", p.RefillLitres),
			fmt.Sprintf("%.2f", p.AvgDailyL),
			formatOptional(p.AvgPPL, "%.2f"),
			formatOptional(p.CostGBP, "%.2f"),
			fmt.Sprintf("%.1f", p.TotalHDD),
			formatOptional(p.LitresPerHDD, "%.3f"),
			fmt.Sprintf("%.1f", p.CO2Kg),
		}
	}
	if err := writeSheet(f, "Refill Periods", refillPeriodHeader, periodRows, headerStyle); err != nil {
		f.Close()
		return nil, err
	}

	monthlyRows := make([][]any, len(monthly))
	for i, m := range monthly {
		monthlyRows[i] = []any{
			m.Month,
			fmt.Sprintf("%.1f", m.UsageLitres),
			fmt.Sprintf("%.2f", m.AvgDailyL),
			fmt.Sprintf("%.1f", m.TotalHDD),
			formatOptional(m.CostGBP, "%.2f"),
			fmt.Sprintf("%.1f", m.CO2Kg),
		}
	}
	if err := writeSheet(f, "Monthly", monthlyHeader, monthlyRows, headerStyle); err != nil {
		f.Close()
		return nil, err
	}

	if len(trend) > 0 {
		trendRows := make([][]any, len(trend))
		for i, r := range trend {
			daysRemaining := "n/a"
			if r.Projection.Known {
				daysRemaining = fmt.Sprintf("%.0f", r.Projection.DaysRemaining)
			}
			trendRows[i] = []any{
				r.AnalysisDate.Format("2006-01-02 15:04"),
				fmt.Sprintf("%.1f", r.CurrentLitres),
				fmt.Sprintf("%.1f", r.CurrentPercentage),
				fmt.Sprintf("%.2f", r.AvgDailyConsumption),
				r.Estimator.Method,
				r.DataQuality,
				daysRemaining,
			}
		}
		if err := writeSheet(f, "Analysis Trend", trendHeader, trendRows, headerStyle); err != nil {
			f.Close()
			return nil, err
		}
	}

	f.DeleteSheet("Sheet1")

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, name string, headers []string, rows [][]any, headerStyle int) error {
	index, err := f.NewSheet(name)
	if err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}
	f.SetActiveSheet(index)

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(name, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(name, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to style header cell %s: %w", cell, err)
		}
	}

	for rowIdx, row := range rows {
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			if err != nil {
				return fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(name, cell, value); err != nil {
				return fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	return nil
}
