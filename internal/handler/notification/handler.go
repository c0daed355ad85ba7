package notification

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/rdv-api/internal/model"
	apperrors "github.com/jwalitptl/rdv-api/pkg/errors"
	"github.com/jwalitptl/rdv-api/pkg/httputil"
)

// Queue is the admin view of the email retry queue.
type Queue interface {
	ProcessQueue(ctx context.Context, limit int) (*model.QueueResult, error)
	CleanupOldFailures(ctx context.Context, days int) (int64, error)
	Stats(ctx context.Context) (*model.EmailFailureStats, error)
}

type Handler struct {
	queue        Queue
	defaultLimit int
}

func NewHandler(queue Queue, defaultLimit int) *Handler {
	return &Handler{queue: queue, defaultLimit: defaultLimit}
}

func (h *Handler) RegisterRoutes(admin *gin.RouterGroup) {
	failures := admin.Group("/notifications/failures")
	{
		failures.GET("/stats", h.GetStats)
		failures.POST("/process", h.ProcessQueue)
		failures.POST("/cleanup", h.Cleanup)
	}
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.queue.Stats(c.Request.Context())
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, stats)
}

func (h *Handler) ProcessQueue(c *gin.Context) {
	limit, err := intQuery(c, "limit", h.defaultLimit)
	if err != nil {
		httputil.Fail(c, err)
		return
	}

	result, err := h.queue.ProcessQueue(c.Request.Context(), limit)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, result)
}

func (h *Handler) Cleanup(c *gin.Context) {
	days, err := intQuery(c, "days", 30)
	if err != nil {
		httputil.Fail(c, err)
		return
	}

	deleted, err := h.queue.CleanupOldFailures(c.Request.Context(), days)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"deleted": deleted})
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, apperrors.NewBadRequest(name+" must be a positive integer", err)
	}
	return n, nil
}
