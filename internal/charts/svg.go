package charts

import (
	"fmt"
	"html"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"salesdash/internal/models"
)

const (
	DefaultWidth  = 640
	DefaultHeight = 400
)

func periodFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return strconv.Itoa(int(math.Round(f)))
	}
	return fmt.Sprint(v)
}

// CompactNumber renders large totals as 1.2 T, 340 G and so on.
func CompactNumber(f float64) string {
	return strings.TrimSpace(humanize.SIWithDigits(f, 1, ""))
}

func compactFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return CompactNumber(f)
	}
	return fmt.Sprint(v)
}

// paddedRange widens a degenerate range; go-chart rejects zero-width ranges.
func paddedRange(lo, hi float64) *chart.ContinuousRange {
	if hi <= lo {
		hi = lo + 1
	}
	return &chart.ContinuousRange{Min: lo, Max: hi}
}

// RenderTrendSVG draws the trend line chart. No rows renders an empty-state image.
func RenderTrendSVG(w io.Writer, rows []models.TrendRow, width, height int) error {
	split := SplitTrend(rows)
	if len(split) == 0 {
		return writeEmptySVG(w, TrendTitle, width, height)
	}

	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := 0.0, 0.0
	series := make([]chart.Series, 0, len(split))
	for i, s := range split {
		xs := make([]float64, len(s.Periods))
		for j, p := range s.Periods {
			xs[j] = float64(p)
			minX = math.Min(minX, xs[j])
			maxX = math.Max(maxX, xs[j])
			minY = math.Min(minY, s.Totals[j])
			maxY = math.Max(maxY, s.Totals[j])
		}
		col := drawing.ColorFromHex(colorAt(i))
		series = append(series, chart.ContinuousSeries{
			Name:    s.Entity,
			XValues: xs,
			YValues: s.Totals,
			Style:   chart.Style{StrokeColor: col, StrokeWidth: 2, DotColor: col, DotWidth: 3},
		})
	}

	ch := chart.Chart{
		Title:      TrendTitle,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Name: periodAxis, Range: paddedRange(minX, maxX), ValueFormatter: periodFormatter},
		YAxis:      chart.YAxis{Name: totalAxis, Range: paddedRange(minY, maxY*1.05), ValueFormatter: compactFormatter},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch.Render(chart.SVG, w)
}

// RenderBreakdownSVG draws the breakdown bar chart, one colored bar per group.
func RenderBreakdownSVG(w io.Writer, rows []models.BreakdownRow, width, height int) error {
	if len(rows) == 0 {
		return writeEmptySVG(w, BreakdownTitle, width, height)
	}

	minY, maxY := 0.0, 0.0
	bars := make([]chart.Value, 0, len(rows))
	for i, r := range rows {
		minY = math.Min(minY, r.DerivedTotal)
		maxY = math.Max(maxY, r.DerivedTotal)
		col := drawing.ColorFromHex(colorAt(i))
		bars = append(bars, chart.Value{
			Label: r.Group,
			Value: r.DerivedTotal,
			Style: chart.Style{FillColor: col, StrokeColor: col, StrokeWidth: 1},
		})
	}

	barWidth := (width - 120) / (2 * len(rows))
	if barWidth < 8 {
		barWidth = 8
	}
	if barWidth > 80 {
		barWidth = 80
	}

	bc := chart.BarChart{
		Title:      BreakdownTitle,
		Width:      width,
		Height:     height,
		BarWidth:   barWidth,
		Background: chart.Style{Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16}},
		YAxis:      chart.YAxis{Name: totalAxis, Range: paddedRange(minY, maxY*1.05), ValueFormatter: compactFormatter},
		Bars:       bars,
	}
	return bc.Render(chart.SVG, w)
}

// writeEmptySVG produces the placeholder shown when the selection matches nothing.
func writeEmptySVG(w io.Writer, title string, width, height int) error {
	_, err := fmt.Fprintf(w,
		`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+
			`<rect width="100%%" height="100%%" fill="white"/>`+
			`<text x="50%%" y="24" text-anchor="middle" font-family="sans-serif" font-size="16">%s</text>`+
			`<text x="50%%" y="50%%" text-anchor="middle" font-family="sans-serif" font-size="13" fill="#6b7280">No data for the current selection</text>`+
			`</svg>`,
		width, height, width, height, html.EscapeString(title))
	return err
}
