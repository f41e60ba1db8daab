package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	domrepo "AlertFuse/internal/domain/repository"
	"AlertFuse/internal/service/dlq"
	xhttp "AlertFuse/pkg/http"
	xlogger "AlertFuse/pkg/logger"
)

// AdminHandler exposes the operator surface: DLQ inspection and replay,
// the hourly metrics read model, fused event queries, and health.
type AdminHandler struct {
	dlq    *dlq.Manager
	hourly domrepo.HourlyMetrics
	fused  domrepo.FusedStore
	posts  domrepo.PostStore
	log    *xlogger.Logger
}

func NewAdminHandler(dlqMgr *dlq.Manager, hourly domrepo.HourlyMetrics, fused domrepo.FusedStore, posts domrepo.PostStore, log *xlogger.Logger) *AdminHandler {
	return &AdminHandler{dlq: dlqMgr, hourly: hourly, fused: fused, posts: posts, log: log}
}

func (h *AdminHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/dlq/stats", h.DLQStats)
	g.POST("/dlq/replay", h.DLQReplay)
	g.GET("/metrics/summary", h.MetricsSummary)
	g.GET("/events/fused", h.FusedEvents)
}

func (h *AdminHandler) Health(c echo.Context) error {
	if err := h.posts.Health(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AdminHandler) DLQStats(c echo.Context) error {
	topic := c.QueryParam("topic")
	if topic == "" {
		return xhttp.BadRequestResponse(c, "topic is required")
	}
	pending, err := h.dlq.Stats(c.Request().Context(), topic)
	if err != nil {
		h.log.Error("dlq stats failed", xlogger.String("topic", topic), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"topic":           topic,
		"pendingMessages": pending,
	})
}

type dlqReplayRequest struct {
	Topic string `json:"topic" validate:"required"`
	Limit int    `json:"limit" default:"10" validate:"gte=1,lte=1000"`
}

func (h *AdminHandler) DLQReplay(c echo.Context) error {
	req := &dlqReplayRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.dlq.Replay(c.Request().Context(), req.Topic, dlq.ReplayOptions{Limit: req.Limit})
	if err != nil {
		h.log.Error("dlq replay failed", xlogger.String("topic", req.Topic), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AdminHandler) MetricsSummary(c echo.Context) error {
	tenant := c.QueryParam("tenant")
	if tenant == "" {
		return xhttp.BadRequestResponse(c, "tenant is required")
	}
	hours := xhttp.ParseIntDefault(c.QueryParam("hours"), 24)

	summary, err := h.hourly.Summary(c.Request().Context(), tenant, hours)
	if err != nil {
		h.log.Error("metrics summary failed", xlogger.String("tenant", tenant), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"tenant":   tenant,
		"hours":    hours,
		"counters": summary,
	})
}

func (h *AdminHandler) FusedEvents(c echo.Context) error {
	tenant := c.QueryParam("tenant")
	if tenant == "" {
		return xhttp.BadRequestResponse(c, "tenant is required")
	}
	now := time.Now().UTC()
	from := xhttp.ParseTimeDefault(c.QueryParam("from"), now.Add(-24*time.Hour))
	to := xhttp.ParseTimeDefault(c.QueryParam("to"), now)
	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 100)

	events, err := h.fused.Query(c.Request().Context(), tenant, from, to, limit)
	if err != nil {
		h.log.Error("fused query failed", xlogger.String("tenant", tenant), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, events, int64(len(events)))
}
