package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	applog "salesdash/internal/log"
	"salesdash/internal/metrics"
)

type MiddlewareConfig struct {
	Logger       *applog.Logger
	Metrics      *metrics.Metrics
	RateLimitRPS float64 // 0 disables rate limiting
}

// UseMiddleware installs the standard stack on e. Order matters: request IDs
// are assigned before logging, and recovery wraps everything below it.
func UseMiddleware(e *echo.Echo, cfg MiddlewareConfig) {
	logger := cfg.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(contextLogger(logger))
	if cfg.Metrics != nil {
		e.Use(requestMetrics(cfg.Metrics))
	}
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; img-src 'self' data:; connect-src 'self' ws: wss:",
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
	}))
	if cfg.RateLimitRPS > 0 {
		e.Use(rateLimiter(cfg.RateLimitRPS))
	}
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level:   5,
		Skipper: skipPaths("/ws", "/metrics"),
	}))
}

func skipPaths(paths ...string) middleware.Skipper {
	return func(c echo.Context) bool {
		p := c.Request().URL.Path
		for _, s := range paths {
			if p == s {
				return true
			}
		}
		return false
	}
}

func requestLogger(logger *applog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		Skipper:      skipPaths("/healthz", "/metrics"),
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			switch {
			case v.Status >= 500:
				level = slog.LevelError
			case v.Status >= 400:
				level = slog.LevelWarn
			}
			attrs := []any{
				applog.FieldRequestID, v.RequestID,
				applog.FieldMethod, v.Method,
				applog.FieldPath, v.URI,
				applog.FieldStatusCode, v.Status,
				applog.FieldClientIP, v.RemoteIP,
				applog.FieldDuration, float64(v.Latency.Microseconds()) / 1000,
			}
			if v.Error != nil {
				attrs = append(attrs, applog.FieldError, v.Error.Error())
			}
			logger.Log(c.Request().Context(), level, "HTTP request", attrs...)
			return nil
		},
	})
}

// contextLogger puts a request-scoped logger carrying the request ID into the request context.
func contextLogger(logger *applog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := applog.NewContext(c.Request().Context(), logger.With(applog.FieldRequestID, id))
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func requestMetrics(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			code := c.Response().Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				code = he.Code
			} else if err != nil && !c.Response().Committed {
				code = http.StatusInternalServerError
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.ObserveRequest(route, c.Request().Method, code)
			return err
		}
	}
}

func rateLimiter(rps float64) echo.MiddlewareFunc {
	burst := int(rps * 2)
	if burst < 1 {
		burst = 1
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			p := c.Request().URL.Path
			return p == "/healthz" || p == "/readyz" || p == "/metrics" || strings.HasPrefix(p, "/static/")
		},
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(rps),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			c.Response().Header().Set("Retry-After", "1")
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		},
	})
}
