package api

import (
	"context"
	"time"

	"salesdash/internal/charts"
	"salesdash/internal/engine"
	applog "salesdash/internal/log"
	"salesdash/internal/models"
)

// dashboard runs the transform for sel and builds both figures. Results are
// cached by canonical selection; the dataset never changes once published.
// The returned value is shared and must not be mutated.
func (h *Handler) dashboard(ctx context.Context, ds *engine.Dataset, sel engine.Selection) *models.DashboardData {
	key := sel.Canonical()
	if data, ok := h.cache.Get(key); ok {
		return data
	}

	start := time.Now()
	trend, breakdown := engine.Transform(ds, sel)
	elapsed := time.Since(start)

	var total float64
	for _, b := range breakdown {
		total += b.DerivedTotal
	}

	data := &models.DashboardData{
		Selection:      sel.Keys(),
		Trend:          trend,
		Breakdown:      breakdown,
		SelectedTotal:  total,
		TrendChart:     charts.TrendConfig(trend),
		BreakdownChart: charts.BreakdownConfig(breakdown),
	}
	h.cache.Set(key, data)

	if h.metrics != nil {
		h.metrics.ObserveTransform(sel.Len(), elapsed)
	}
	applog.FromContext(ctx).WithComponent(applog.ComponentEngine).Debug("Selection transformed",
		applog.FieldOperation, applog.OpTransform,
		applog.FieldSelection, sel.Len(),
		applog.FieldTrendRows, len(trend),
		applog.FieldBreakdown, len(breakdown),
		applog.FieldCacheHit, false,
		applog.FieldDuration, float64(elapsed.Microseconds())/1000)
	return data
}
