package availability

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/rdv-api/internal/model"
	"github.com/jwalitptl/rdv-api/pkg/httputil"
)

type Service interface {
	AvailableSlots(ctx context.Context, providerID, serviceID int64, date string) ([]model.TimeSlot, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(public *gin.RouterGroup) {
	public.GET("/availability/slots", h.GetSlots)
}

type slotsQuery struct {
	ProviderID int64  `form:"provider_id" binding:"required,gt=0"`
	ServiceID  int64  `form:"service_id" binding:"required,gt=0"`
	Date       string `form:"date" binding:"required,rdvdate"`
}

func (h *Handler) GetSlots(c *gin.Context) {
	var q slotsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httputil.Fail(c, httputil.BindError(err))
		return
	}

	slots, err := h.service.AvailableSlots(c.Request.Context(), q.ProviderID, q.ServiceID, q.Date)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	if slots == nil {
		slots = []model.TimeSlot{}
	}
	httputil.RespondWithSuccess(c, slots)
}
