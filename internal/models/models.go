package models

// Record is one dataset row with its derived measures filled in.
type Record struct {
	Entity        string  `json:"entity"`
	Group         string  `json:"group"`
	Period        int32   `json:"period"`
	Quantity      float64 `json:"quantity"`
	UnitValue     float64 `json:"unit_value"`
	DerivedMargin float64 `json:"derived_margin"`
	DerivedTotal  float64 `json:"derived_total"`
}

type TrendRow struct {
	Period       int32   `json:"period"`
	Entity       string  `json:"entity"`
	DerivedTotal float64 `json:"derived_total"`
}

type BreakdownRow struct {
	Group        string  `json:"group"`
	DerivedTotal float64 `json:"derived_total"`
}

// Summary backs the KPI cards. It is computed over the whole dataset, not the selection.
type Summary struct {
	Rows              int     `json:"rows"`
	Entities          int     `json:"entities"`
	Groups            int     `json:"groups"`
	FirstPeriod       int32   `json:"first_period"`
	LastPeriod        int32   `json:"last_period"`
	TotalDerivedTotal float64 `json:"total_derived_total"`
	MeanDerivedMargin float64 `json:"mean_derived_margin"`
}

type DashboardData struct {
	Selection      []string       `json:"selection"`
	Trend          []TrendRow     `json:"trend"`
	Breakdown      []BreakdownRow `json:"breakdown"`
	SelectedTotal  float64        `json:"selected_total"`
	TrendChart     *ChartConfig   `json:"trend_chart"`
	BreakdownChart *ChartConfig   `json:"breakdown_chart"`
}

// ChartConfig is a render-ready chart description consumed by the browser.
type ChartConfig struct {
	ChartType  string        `json:"chartType"`
	Title      string        `json:"title"`
	XAxis      string        `json:"xAxis,omitempty"`
	YAxis      string        `json:"yAxis,omitempty"`
	Series     []ChartSeries `json:"series"`
	ShowLegend bool          `json:"showLegend"`
}

type ChartSeries struct {
	Name  string       `json:"name"`
	Data  []ChartPoint `json:"data"`
	Color string       `json:"color,omitempty"`
}

type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}
