package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"AlertFuse/internal/domain/models"
	domrepo "AlertFuse/internal/domain/repository"
	"AlertFuse/internal/service/ratelimit"
	"AlertFuse/internal/usecase"
	xlogger "AlertFuse/pkg/logger"
)

// triggerResponse is the envelope returned to the external scheduler.
// Failures carry a retryable flag so the scheduler never has to parse
// the error string to decide whether to re-enqueue.
type triggerResponse struct {
	Success    bool   `json:"success"`
	Skipped    bool   `json:"skipped,omitempty"`
	Processed  int    `json:"processed,omitempty"`
	Published  int    `json:"published,omitempty"`
	Duplicates int    `json:"duplicates,omitempty"`
	Fused      int    `json:"fused,omitempty"`
	Errors     int    `json:"errors,omitempty"`
	Error      string `json:"error,omitempty"`
	Retryable  *bool  `json:"retryable,omitempty"`
	Timestamp  string `json:"timestamp"`
}

func triggerOK(c echo.Context, fill func(*triggerResponse)) error {
	resp := &triggerResponse{Success: true, Timestamp: time.Now().UTC().Format(time.RFC3339)}
	fill(resp)
	return c.JSON(http.StatusOK, resp)
}

func triggerFail(c echo.Context, status int, err error, retryable bool) error {
	return c.JSON(status, &triggerResponse{
		Success:   false,
		Error:     err.Error(),
		Retryable: &retryable,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// TriggersHandler exposes the scheduler-facing endpoints: one per
// collector run and one per fusion tick.
type TriggersHandler struct {
	collector *usecase.Collector
	fusion    *usecase.Fusion
	limiter   *ratelimit.Limiter
	metrics   domrepo.Metrics
	log       *xlogger.Logger
}

func NewTriggersHandler(collector *usecase.Collector, fusion *usecase.Fusion, limiter *ratelimit.Limiter, metrics domrepo.Metrics, log *xlogger.Logger) *TriggersHandler {
	return &TriggersHandler{collector: collector, fusion: fusion, limiter: limiter, metrics: metrics, log: log}
}

func (h *TriggersHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	if h.limiter != nil {
		var onReject func(string)
		if h.metrics != nil {
			onReject = h.metrics.RecordRateLimitHit
		}
		g.Use(ratelimit.Middleware(h.limiter, onReject))
	}
	g.POST("/collect", h.Collect)
	g.POST("/fuse", h.Fuse)
}

// Collect runs one collect job. Validation problems are terminal (400);
// anything else that surfaces here is retryable (500). Exhausted retries
// downstream never reach this handler, they land in the DLQ.
func (h *TriggersHandler) Collect(c echo.Context) error {
	job := &models.CollectJob{}
	if err := c.Bind(job); err != nil {
		return triggerFail(c, http.StatusBadRequest, err, false)
	}

	res, err := h.collector.Run(c.Request().Context(), job)
	if err != nil {
		// Run only errors on malformed jobs and unknown platforms.
		h.log.Warn("collect trigger rejected",
			xlogger.String("platform", job.Platform),
			xlogger.Error(err))
		return triggerFail(c, http.StatusBadRequest, err, false)
	}

	return triggerOK(c, func(r *triggerResponse) {
		r.Skipped = res.Skipped
		r.Processed = res.Processed
		r.Published = res.Published
		r.Duplicates = res.Duplicates
		r.Errors = res.Errors
	})
}

// Fuse runs one fusion tick across all active tenants.
func (h *TriggersHandler) Fuse(c echo.Context) error {
	res, err := h.fusion.Run(c.Request().Context())
	if err != nil {
		h.log.Error("fusion trigger failed", xlogger.Error(err))
		return triggerFail(c, http.StatusInternalServerError, err, true)
	}

	return triggerOK(c, func(r *triggerResponse) {
		r.Processed = res.Processed
		r.Fused = res.Fused
		r.Errors = res.Errors
	})
}
