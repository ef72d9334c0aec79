package charts

import (
	"strconv"

	"salesdash/internal/models"
)

const (
	TrendTitle     = "Sales Trend Over Time by Selected Region"
	BreakdownTitle = "Total Sales by Continent"

	periodAxis = "Year"
	groupAxis  = "Continent"
	totalAxis  = "Total Sales"
)

// palette is plotly's default qualitative sequence.
var palette = []string{
	"636EFA", "EF553B", "00CC96", "AB63FA", "FFA15A",
	"19D3F3", "FF6692", "B6E880", "FF97FF", "FECB52",
}

func colorAt(i int) string { return palette[i%len(palette)] }

// TrendSeries is one entity's line: parallel period/value slices in trend order.
type TrendSeries struct {
	Entity  string
	Periods []int32
	Totals  []float64
}

// SplitTrend groups trend rows into one series per entity, in order of first appearance.
func SplitTrend(rows []models.TrendRow) []TrendSeries {
	pos := make(map[string]int)
	var out []TrendSeries
	for _, r := range rows {
		i, ok := pos[r.Entity]
		if !ok {
			i = len(out)
			pos[r.Entity] = i
			out = append(out, TrendSeries{Entity: r.Entity})
		}
		out[i].Periods = append(out[i].Periods, r.Period)
		out[i].Totals = append(out[i].Totals, r.DerivedTotal)
	}
	return out
}

// TrendConfig describes the line chart: x=period, y=derived_total, one series per entity.
func TrendConfig(rows []models.TrendRow) *models.ChartConfig {
	cfg := &models.ChartConfig{
		ChartType:  "line",
		Title:      TrendTitle,
		XAxis:      periodAxis,
		YAxis:      totalAxis,
		Series:     make([]models.ChartSeries, 0),
		ShowLegend: true,
	}
	for i, s := range SplitTrend(rows) {
		points := make([]models.ChartPoint, len(s.Periods))
		for j := range s.Periods {
			points[j] = models.ChartPoint{Label: strconv.Itoa(int(s.Periods[j])), Value: s.Totals[j]}
		}
		cfg.Series = append(cfg.Series, models.ChartSeries{Name: s.Entity, Data: points, Color: "#" + colorAt(i)})
	}
	return cfg
}

// BreakdownConfig describes the bar chart: x=group, y=summed derived_total, one colored series per group.
func BreakdownConfig(rows []models.BreakdownRow) *models.ChartConfig {
	cfg := &models.ChartConfig{
		ChartType:  "bar",
		Title:      BreakdownTitle,
		XAxis:      groupAxis,
		YAxis:      totalAxis,
		Series:     make([]models.ChartSeries, 0, len(rows)),
		ShowLegend: true,
	}
	for i, r := range rows {
		cfg.Series = append(cfg.Series, models.ChartSeries{
			Name:  r.Group,
			Data:  []models.ChartPoint{{Label: r.Group, Value: r.DerivedTotal}},
			Color: "#" + colorAt(i),
		})
	}
	return cfg
}
