package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	gommonlog "github.com/labstack/gommon/log"
	"golang.org/x/sync/errgroup"

	"salesdash/internal/api"
	"salesdash/internal/cache"
	"salesdash/internal/config"
	applog "salesdash/internal/log"
	"salesdash/internal/metrics"
	"salesdash/internal/models"
	"salesdash/internal/source"
	"salesdash/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", applog.FieldError, err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, _ := applog.ParseLevel(cfg.LogLevel)
	logger := applog.New(applog.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: applog.ComponentApp,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = applog.NewContext(ctx, logger)

	// 1. Initialize Echo (starts instantly)
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(echoLevel(level))
	e.JSONSerializer = api.JSONSerializer{}

	renderer, err := api.NewRenderer(web.TemplatesFS)
	if err != nil {
		return err
	}
	e.Renderer = renderer
	e.StaticFS("/static", echo.MustSubFS(web.StaticFS, "static"))

	resultCache := cache.New[*models.DashboardData](cfg.CacheSize, cfg.CacheTTL)
	m := metrics.New(resultCache.Stats)
	api.UseMiddleware(e, api.MiddlewareConfig{
		Logger:       logger,
		Metrics:      m,
		RateLimitRPS: cfg.RateLimitRPS,
	})

	// 2. Handler starts without data; data routes answer 503 until the load finishes
	h := api.NewHandler(api.Options{
		Cache:                resultCache,
		Metrics:              m,
		Logger:               logger,
		DefaultSelectionSize: cfg.DefaultSelectionSize,
	})
	h.RegisterRoutes(e)

	g, gctx := errgroup.WithContext(ctx)

	// 3. Serve immediately
	g.Go(func() error {
		logger.Info("Server listening",
			applog.FieldOperation, applog.OpStartup,
			"port", cfg.Port,
			applog.FieldSource, cfg.DataSource)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// 4. Load the dataset in the background
	g.Go(func() error {
		t0 := time.Now()
		ds, err := source.Load(gctx, cfg.DataSource, source.Options{
			Columns:  cfg.Columns,
			SQLQuery: cfg.SQLQuery,
			S3: source.S3Config{
				Region:          cfg.S3Region,
				Endpoint:        cfg.S3Endpoint,
				AccessKeyID:     cfg.S3AccessKeyID,
				SecretAccessKey: cfg.S3SecretAccessKey,
				PathStyle:       cfg.S3PathStyle,
			},
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("load dataset %q: %w", cfg.DataSource, err)
		}
		if err := h.SetDataset(ds); err != nil {
			return err
		}
		m.DatasetLoadSecs.Set(time.Since(t0).Seconds())
		logger.Info("Dataset ready, API fully available",
			applog.FieldOperation, applog.OpLoad,
			applog.FieldRows, ds.Len(),
			applog.FieldDuration, time.Since(t0).Milliseconds())
		return nil
	})

	// 5. Shut down on signal or on the first failure
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", applog.FieldOperation, applog.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func echoLevel(l slog.Level) gommonlog.Lvl {
	switch {
	case l <= slog.LevelDebug:
		return gommonlog.DEBUG
	case l <= slog.LevelInfo:
		return gommonlog.INFO
	case l <= slog.LevelWarn:
		return gommonlog.WARN
	default:
		return gommonlog.ERROR
	}
}
