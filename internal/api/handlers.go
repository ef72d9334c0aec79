package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"salesdash/internal/cache"
	"salesdash/internal/charts"
	"salesdash/internal/engine"
	applog "salesdash/internal/log"
	"salesdash/internal/metrics"
	"salesdash/internal/models"

	"github.com/labstack/echo/v4"
)

var (
	ErrNotReady      = errors.New("dataset is still loading")
	ErrAlreadyLoaded = errors.New("dataset already loaded")
)

// Handler serves the dashboard. It starts empty and answers 503 on data
// routes until SetDataset publishes the dataset.
type Handler struct {
	state atomic.Pointer[published]

	cache            *cache.Cache[*models.DashboardData]
	metrics          *metrics.Metrics
	logger           *applog.Logger
	defaultSelection int
}

type Options struct {
	Cache                *cache.Cache[*models.DashboardData]
	Metrics              *metrics.Metrics
	Logger               *applog.Logger
	DefaultSelectionSize int
}

func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Handler{
		cache:            opts.Cache,
		metrics:          opts.Metrics,
		logger:           logger.WithComponent(applog.ComponentHTTP),
		defaultSelection: opts.DefaultSelectionSize,
	}
}

// published pairs the dataset with its summary so both become visible together.
type published struct {
	ds      *engine.Dataset
	summary models.Summary
}

// SetDataset publishes ds. Only the first call succeeds.
func (h *Handler) SetDataset(ds *engine.Dataset) error {
	if ds == nil {
		return engine.ErrEmptyDataset
	}
	if h.state.Load() != nil {
		return ErrAlreadyLoaded
	}
	if !h.state.CompareAndSwap(nil, &published{ds: ds, summary: ds.Summarize()}) {
		return ErrAlreadyLoaded
	}
	if h.metrics != nil {
		h.metrics.DatasetRows.Set(float64(ds.Len()))
	}
	return nil
}

func (h *Handler) Ready() bool { return h.state.Load() != nil }

func (h *Handler) loaded() (*engine.Dataset, error) {
	p := h.state.Load()
	if p == nil {
		return nil, ErrNotReady
	}
	return p.ds, nil
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Index)
	e.GET("/healthz", h.Healthz)
	e.GET("/readyz", h.Readyz)
	e.GET("/ws", h.ServeWS)

	api := e.Group("/api")
	api.GET("/entities", h.GetEntities)
	api.GET("/summary", h.GetSummary)
	api.GET("/dashboard", h.GetDashboard)

	ch := e.Group("/charts")
	ch.GET("/trend.svg", h.GetTrendSVG)
	ch.GET("/breakdown.svg", h.GetBreakdownSVG)

	if h.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.metrics.Handler()))
	}
}

// --- HELPERS ---

func notReady(c echo.Context) error {
	c.Response().Header().Set("Retry-After", "5")
	return echo.NewHTTPError(http.StatusServiceUnavailable, ErrNotReady.Error()).WithInternal(ErrNotReady)
}

// selectionParams reads entity=X repeated and entities=X,Y. Absent params mean an empty selection.
func selectionParams(c echo.Context) engine.Selection {
	q := c.QueryParams()
	keys := append([]string(nil), q["entity"]...)
	for _, v := range q["entities"] {
		keys = append(keys, strings.Split(v, ",")...)
	}
	return engine.NewSelection(keys...)
}

func getSizeParams(c echo.Context) (int, int) {
	width, err := strconv.Atoi(c.QueryParam("width"))
	if err != nil || width < 100 || width > 4000 {
		width = charts.DefaultWidth
	}
	height, err := strconv.Atoi(c.QueryParam("height"))
	if err != nil || height < 100 || height > 4000 {
		height = charts.DefaultHeight
	}
	return width, height
}

// defaultKeys is the first n entities in dataset order.
func (h *Handler) defaultKeys(ds *engine.Dataset) []string {
	entities := ds.Entities()
	if h.defaultSelection < len(entities) {
		entities = entities[:h.defaultSelection]
	}
	return entities
}

func svgBlob(c echo.Context, svg []byte) error {
	c.Response().Header().Set("Cache-Control", "no-cache")
	return c.Blob(http.StatusOK, "image/svg+xml", svg)
}

// --- HANDLERS ---

func (h *Handler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Readyz(c echo.Context) error {
	if !h.Ready() {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "loading"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) GetEntities(c echo.Context) error {
	ds, err := h.loaded()
	if err != nil {
		return notReady(c)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"entities": ds.Entities(),
		"groups":   ds.Groups(),
		"default":  h.defaultKeys(ds),
	})
}

func (h *Handler) GetSummary(c echo.Context) error {
	p := h.state.Load()
	if p == nil {
		return notReady(c)
	}
	return c.JSON(http.StatusOK, p.summary)
}

func (h *Handler) GetDashboard(c echo.Context) error {
	ds, err := h.loaded()
	if err != nil {
		return notReady(c)
	}
	return c.JSON(http.StatusOK, h.dashboard(c.Request().Context(), ds, selectionParams(c)))
}

func (h *Handler) GetTrendSVG(c echo.Context) error {
	ds, err := h.loaded()
	if err != nil {
		return notReady(c)
	}
	data := h.dashboard(c.Request().Context(), ds, selectionParams(c))
	width, height := getSizeParams(c)

	var buf bytes.Buffer
	if err := charts.RenderTrendSVG(&buf, data.Trend, width, height); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "chart render failed").WithInternal(err)
	}
	return svgBlob(c, buf.Bytes())
}

func (h *Handler) GetBreakdownSVG(c echo.Context) error {
	ds, err := h.loaded()
	if err != nil {
		return notReady(c)
	}
	data := h.dashboard(c.Request().Context(), ds, selectionParams(c))
	width, height := getSizeParams(c)

	var buf bytes.Buffer
	if err := charts.RenderBreakdownSVG(&buf, data.Breakdown, width, height); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "chart render failed").WithInternal(err)
	}
	return svgBlob(c, buf.Bytes())
}
