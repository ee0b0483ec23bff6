package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/LeventeLantos/listsync/internal/logger"
	"github.com/LeventeLantos/listsync/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

func Router(h *Handler, m *metrics.Metrics, gatherer prometheus.Gatherer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(requestID(h.logger))
	e.Use(accessLog(m))

	v1 := e.Group("/v1")
	v1.GET("/health", h.Health)

	v1.GET("/scheduler/status", h.SchedulerStatus)
	v1.POST("/scheduler/start", h.SchedulerStart)
	v1.POST("/scheduler/stop", h.SchedulerStop)
	v1.POST("/scheduler/run", h.SchedulerRun)

	lists := v1.Group("/tenants/:tenantId/contact-lists/:listId")
	lists.POST("/filtered-contacts", h.AddFilteredContacts)
	lists.POST("/sync", h.SyncList)
	lists.PUT("/saved-filter", h.SetSavedFilter)
	lists.DELETE("/saved-filter", h.ClearSavedFilter)
	lists.GET("/items", h.ListItems)
	lists.GET("/last-sync", h.LastSync)

	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "listsync")
	})

	return e
}

// requestID tags the request with an id and a logger carrying it.
func requestID(base *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.New().String()
				c.Request().Header.Set(requestIDHeader, id)
			}
			c.Response().Header().Set(requestIDHeader, id)
			logger.WithEcho(c, base.With(zap.String("request_id", id)))
			return next(c)
		}
	}
}

func accessLog(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			latency := time.Since(start)
			status := c.Response().Status
			m.RecordHTTP(c.Request().Method, c.Path(), strconv.Itoa(status), latency)

			logger.FromEcho(c, zap.NewNop()).Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", status),
				zap.Duration("latency", latency),
				zap.String("ip", c.RealIP()),
			)
			return nil
		}
	}
}
