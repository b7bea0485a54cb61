// Package httpapi serves the operational endpoints: liveness and scheduler status.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ykvlv/legendalf-bot/internal/scheduler"
)

const pingTimeout = 2 * time.Second

// Pinger checks the store connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the HTTP handlers.
type Deps struct {
	Store    Pinger
	Metrics  *scheduler.Metrics
	Interval time.Duration // scheduler poll interval
	Clock    clockwork.Clock
	Log      *zap.Logger
}

type handler struct {
	Deps
}

// NewEngine builds the gin engine with /healthz and /status.
func NewEngine(d Deps) *gin.Engine {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	h := &handler{Deps: d}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(requestLogging(d.Log), gin.Recovery())
	r.GET("/healthz", h.health)
	r.GET("/status", h.status)
	return r
}

func (h *handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
	defer cancel()

	if err := h.Store.Ping(ctx); err != nil {
		h.Log.Warn("store ping failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "store": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// status reports scheduler counters. The scheduler counts as stale when no
// tick finished within three poll intervals.
func (h *handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"scheduler": h.Metrics.Summary(),
		"healthy":   h.Metrics.Healthy(h.Clock.Now(), 3*h.Interval),
	})
}

func requestLogging(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.New().String()
		c.Set("request_id", requestID)
		start := time.Now()

		c.Next()

		log.Debug("http request",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}
