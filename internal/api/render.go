package api

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"net/url"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"

	"salesdash/internal/charts"
	"salesdash/internal/engine"
	applog "salesdash/internal/log"
	"salesdash/internal/models"
)

const pageTitle = "Interactive Sales Performance Dashboard"

// Renderer implements echo.Renderer over templates parsed from an embedded FS.
type Renderer struct {
	templates *template.Template
}

var templateFuncs = template.FuncMap{
	"compact": charts.CompactNumber,
	"comma":   func(n int) string { return humanize.Comma(int64(n)) },
	"money":   func(f float64) string { return "$" + charts.CompactNumber(f) },
	"fixed":   func(f float64) string { return humanize.CommafWithDigits(f, 2) },
}

func NewRenderer(fsys fs.FS) (*Renderer, error) {
	t, err := template.New("").Funcs(templateFuncs).ParseFS(fsys, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{templates: t}, nil
}

func (r *Renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

type entityOption struct {
	Name     string
	Selected bool
}

type indexPage struct {
	Title        string
	Ready        bool
	Summary      models.Summary
	Entities     []entityOption
	Dashboard    *models.DashboardData
	TrendSrc     string
	BreakdownSrc string
}

func chartSrc(path string, keys []string) string {
	if len(keys) == 0 {
		return path
	}
	return path + "?" + url.Values{"entity": keys}.Encode()
}

// Index renders the page. Query selection params override the default selection.
func (h *Handler) Index(c echo.Context) error {
	page := indexPage{Title: pageTitle}
	p := h.state.Load()
	if p == nil {
		c.Response().Header().Set("Retry-After", "5")
		return h.renderPage(c, http.StatusServiceUnavailable, page)
	}

	sel := selectionParams(c)
	if sel.Len() == 0 && !c.QueryParams().Has("entity") && !c.QueryParams().Has("entities") {
		sel = engine.NewSelection(h.defaultKeys(p.ds)...)
	}

	page.Ready = true
	page.Summary = p.summary
	page.Dashboard = h.dashboard(c.Request().Context(), p.ds, sel)
	for _, name := range p.ds.Entities() {
		page.Entities = append(page.Entities, entityOption{Name: name, Selected: sel.Contains(name)})
	}
	page.TrendSrc = chartSrc("/charts/trend.svg", page.Dashboard.Selection)
	page.BreakdownSrc = chartSrc("/charts/breakdown.svg", page.Dashboard.Selection)
	return h.renderPage(c, http.StatusOK, page)
}

// renderPage buffers the template so a failed render still produces a clean 500.
func (h *Handler) renderPage(c echo.Context, code int, page indexPage) error {
	if c.Echo().Renderer == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "templates not loaded")
	}
	var buf bytes.Buffer
	if err := c.Echo().Renderer.Render(&buf, "index.html", page, c); err != nil {
		applog.FromContext(c.Request().Context()).WithComponent(applog.ComponentTemplate).Error("Index template execution failed",
			applog.FieldOperation, applog.OpRender,
			applog.FieldError, err)
		return echo.NewHTTPError(http.StatusInternalServerError, "template render failed").WithInternal(err)
	}
	return c.HTMLBlob(code, buf.Bytes())
}
