package api

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"

	"salesdash/internal/cache"
	"salesdash/internal/engine"
	applog "salesdash/internal/log"
	"salesdash/internal/metrics"
	"salesdash/internal/models"
	"salesdash/web"
)

func testDataset(t *testing.T) *engine.Dataset {
	t.Helper()
	b := engine.NewBuilder(6)
	rows := []struct {
		entity, group string
		period        int32
		qty, unit     float64
	}{
		{"Chile", "Americas", 2002, 10, 2},
		{"Benin", "Africa", 2002, 5, 1},
		{"Chile", "Americas", 2007, 12, 3},
		{"Benin", "Africa", 2007, 6, 1},
		{"Norway", "Europe", 2002, 2, 50},
		{"Norway", "Europe", 2007, 2, 60},
	}
	for _, r := range rows {
		if err := b.Add(r.entity, r.group, r.period, r.qty, r.unit); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	ds, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return ds
}

type testServer struct {
	e       *echo.Echo
	h       *Handler
	metrics *metrics.Metrics
	cache   *cache.Cache[*models.DashboardData]
}

func newTestServer(t *testing.T, rps float64) *testServer {
	t.Helper()
	logger := applog.New(applog.Config{Level: applog.DefaultConfig().Level, Format: "text", Component: applog.ComponentApp, Output: io.Discard})
	c := cache.New[*models.DashboardData](16, time.Minute)
	m := metrics.New(c.Stats)

	e := echo.New()
	e.JSONSerializer = JSONSerializer{}
	r, err := NewRenderer(web.TemplatesFS)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	e.Renderer = r
	UseMiddleware(e, MiddlewareConfig{Logger: logger, Metrics: m, RateLimitRPS: rps})

	h := NewHandler(Options{Cache: c, Metrics: m, Logger: logger, DefaultSelectionSize: 2})
	h.RegisterRoutes(e)
	return &testServer{e: e, h: h, metrics: m, cache: c}
}

func (s *testServer) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestNotReady(t *testing.T) {
	s := newTestServer(t, 0)

	for _, path := range []string{
		"/api/dashboard?entity=Chile",
		"/api/entities",
		"/api/summary",
		"/charts/trend.svg",
		"/charts/breakdown.svg",
		"/readyz",
		"/ws",
	} {
		if rec := s.get(t, path); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s = %d, want 503", path, rec.Code)
		}
	}
	if rec := s.get(t, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d, want 200 while loading", rec.Code)
	}

	rec := s.get(t, "/")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("index = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Loading dataset") {
		t.Error("index should show the loading notice")
	}
}

func TestSetDatasetOnce(t *testing.T) {
	s := newTestServer(t, 0)
	ds := testDataset(t)

	if err := s.h.SetDataset(nil); !errors.Is(err, engine.ErrEmptyDataset) {
		t.Errorf("SetDataset(nil) = %v", err)
	}
	if err := s.h.SetDataset(ds); err != nil {
		t.Fatalf("SetDataset: %v", err)
	}
	if err := s.h.SetDataset(ds); !errors.Is(err, ErrAlreadyLoaded) {
		t.Errorf("second SetDataset = %v, want ErrAlreadyLoaded", err)
	}
	if rec := s.get(t, "/readyz"); rec.Code != http.StatusOK {
		t.Errorf("readyz = %d after load", rec.Code)
	}
}

func TestGetDashboard(t *testing.T) {
	s := newTestServer(t, 0)
	if err := s.h.SetDataset(testDataset(t)); err != nil {
		t.Fatal(err)
	}

	rec := s.get(t, "/api/dashboard?entity=Chile&entities=Benin,Atlantis")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var data models.DashboardData
	if err := json.Unmarshal(rec.Body.Bytes(), &data); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got := strings.Join(data.Selection, ","); got != "Atlantis,Benin,Chile" {
		t.Errorf("selection = %q", got)
	}
	if len(data.Trend) != 4 {
		t.Fatalf("expected 4 trend rows, got %d", len(data.Trend))
	}
	if data.Trend[0].Entity != "Chile" || data.Trend[0].DerivedTotal != 20 {
		t.Errorf("first trend row = %+v", data.Trend[0])
	}
	want := []models.BreakdownRow{{Group: "Americas", DerivedTotal: 56}, {Group: "Africa", DerivedTotal: 11}}
	if len(data.Breakdown) != len(want) {
		t.Fatalf("breakdown = %+v", data.Breakdown)
	}
	for i := range want {
		if data.Breakdown[i] != want[i] {
			t.Errorf("breakdown[%d] = %+v, want %+v", i, data.Breakdown[i], want[i])
		}
	}
	if data.SelectedTotal != 67 {
		t.Errorf("selected total = %v", data.SelectedTotal)
	}
	if data.TrendChart == nil || len(data.TrendChart.Series) != 2 {
		t.Errorf("trend chart = %+v", data.TrendChart)
	}
	if data.BreakdownChart == nil || data.BreakdownChart.ChartType != "bar" {
		t.Errorf("breakdown chart = %+v", data.BreakdownChart)
	}
}

func TestGetDashboardEmptySelection(t *testing.T) {
	s := newTestServer(t, 0)
	if err := s.h.SetDataset(testDataset(t)); err != nil {
		t.Fatal(err)
	}

	rec := s.get(t, "/api/dashboard")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"trend":[]`) || !strings.Contains(body, `"breakdown":[]`) {
		t.Errorf("empty selection should yield empty arrays, got %s", body)
	}
}

func TestDashboardIsCached(t *testing.T) {
	s := newTestServer(t, 0)
	if err := s.h.SetDataset(testDataset(t)); err != nil {
		t.Fatal(err)
	}

	s.get(t, "/api/dashboard?entity=Chile&entity=Benin")
	s.get(t, "/api/dashboard?entities=Benin,Chile")

	hits, misses := s.cache.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("cache stats = %d hits, %d misses; want 1, 1", hits, misses)
	}
}

func TestDashboardCacheKeepsSelectionsApart(t *testing.T) {
	s := newTestServer(t, 0)
	if err := s.h.SetDataset(testDataset(t)); err != nil {
		t.Fatal(err)
	}

	decode := func(target string) models.DashboardData {
		t.Helper()
		rec := s.get(t, target)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s = %d", target, rec.Code)
		}
		var data models.DashboardData
		if err := json.Unmarshal(rec.Body.Bytes(), &data); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return data
	}

	if got := decode("/api/dashboard?entity=Benin&entity=Chile"); len(got.Trend) != 4 {
		t.Fatalf("expected 4 trend rows for Benin and Chile, got %d", len(got.Trend))
	}

	// One unknown key whose bytes spell the two-key selection above.
	got := decode("/api/dashboard?entity=Benin%1FChile")
	if len(got.Trend) != 0 || len(got.Breakdown) != 0 {
		t.Errorf("unknown key served cached rows: trend=%d breakdown=%d", len(got.Trend), len(got.Breakdown))
	}
	if len(got.Selection) != 1 || got.Selection[0] != "Benin\x1fChile" {
		t.Errorf("selection = %q", got.Selection)
	}

	if again := decode("/api/dashboard?entities=Chile,Benin"); len(again.Trend) != 4 {
		t.Errorf("Benin and Chile result was overwritten: %d trend rows", len(again.Trend))
	}
}

func TestGetEntitiesAndSummary(t *testing.T) {
	s := newTestServer(t, 0)
	if err := s.h.SetDataset(testDataset(t)); err != nil {
		t.Fatal(err)
	}

	rec := s.get(t, "/api/entities")
	var ents struct {
		Entities []string `json:"entities"`
		Groups   []string `json:"groups"`
		Default  []string `json:"default"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ents); err != nil {
		t.Fatal(err)
	}
	if strings.Join(ents.Entities, ",") != "Chile,Benin,Norway" {
		t.Errorf("entities = %v", ents.Entities)
	}
	if strings.Join(ents.Default, ",") != "Chile,Benin" {
		t.Errorf("default = %v", ents.Default)
	}
	if len(ents.Groups) != 3 {
		t.Errorf("groups = %v", ents.Groups)
	}

	rec = s.get(t, "/api/summary")
	var sum models.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Rows != 6 || sum.Entities != 3 || sum.FirstPeriod != 2002 || sum.LastPeriod != 2007 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.TotalDerivedTotal != 20+5+36+6+100+120 {
		t.Errorf("total = %v", sum.TotalDerivedTotal)
	}
}

func TestChartsSVG(t *testing.T) {
	s := newTestServer(t, 0)
	if err := s.h.SetDataset(testDataset(t)); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{
		"/charts/trend.svg?entity=Chile&entity=Norway",
		"/charts/breakdown.svg?entity=Chile&entity=Norway&width=800&height=500",
		"/charts/trend.svg",
	} {
		rec := s.get(t, path)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, rec.Code)
			continue
		}
		if ct := rec.Header().Get(echo.HeaderContentType); ct != "image/svg+xml" {
			t.Errorf("GET %s content type %q", path, ct)
		}
		if !strings.Contains(rec.Body.String(), "<svg") {
			t.Errorf("GET %s did not return svg", path)
		}
	}
}

func TestIndex(t *testing.T) {
	s := newTestServer(t, 0)
	if err := s.h.SetDataset(testDataset(t)); err != nil {
		t.Fatal(err)
	}

	rec := s.get(t, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{
		pageTitle,
		"Total Global Sales",
		`<option value="Chile" selected>`,
		`<option value="Benin" selected>`,
		`<option value="Norway">`,
		"/charts/trend.svg?entity=Benin&amp;entity=Chile",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing %q", want)
		}
	}

	rec = s.get(t, "/?entity=Norway")
	if !strings.Contains(rec.Body.String(), `<option value="Norway" selected>`) {
		t.Error("query selection should override the default")
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	s := newTestServer(t, 0)
	rec := s.get(t, "/healthz")
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff header")
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Error("missing request id")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, 0)
	if err := s.h.SetDataset(testDataset(t)); err != nil {
		t.Fatal(err)
	}
	s.get(t, "/api/dashboard?entity=Chile")

	rec := s.get(t, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"salesdash_dataset_rows 6",
		"salesdash_transforms_total 1",
		`salesdash_http_requests_total{code="200",method="GET",route="/api/dashboard"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, 1)
	if err := s.h.SetDataset(testDataset(t)); err != nil {
		t.Fatal(err)
	}

	limited := false
	for i := 0; i < 10; i++ {
		if rec := s.get(t, "/api/summary"); rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("expected a 429 after exceeding the burst")
	}
	if rec := s.get(t, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("healthz should bypass the limiter, got %d", rec.Code)
	}
}
