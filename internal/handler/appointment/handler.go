package appointment

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/rdv-api/internal/model"
	apperrors "github.com/jwalitptl/rdv-api/pkg/errors"
	"github.com/jwalitptl/rdv-api/pkg/httputil"
)

type Service interface {
	Create(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error)
	Get(ctx context.Context, id int64) (*model.Appointment, error)
	List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, int, error)
	History(ctx context.Context, id int64) ([]*model.AppointmentLog, error)
	UpdateStatus(ctx context.Context, id int64, status string) (*model.Appointment, error)
	Cancel(ctx context.Context, id int64, reason string) (*model.Appointment, error)
	Reschedule(ctx context.Context, id int64, req *model.RescheduleAppointmentRequest) (*model.Appointment, error)
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context, startDate, endDate string) (*model.AppointmentStats, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(public, admin *gin.RouterGroup) {
	public.POST("/appointments", h.CreateAppointment)

	appointments := admin.Group("/appointments")
	{
		appointments.GET("", h.ListAppointments)
		appointments.GET("/stats", h.GetStats)
		appointments.GET("/:id", h.GetAppointment)
		appointments.GET("/:id/history", h.GetHistory)
		appointments.PUT("/:id/status", h.UpdateStatus)
		appointments.POST("/:id/cancel", h.CancelAppointment)
		appointments.POST("/:id/reschedule", h.RescheduleAppointment)
		appointments.DELETE("/:id", h.DeleteAppointment)
	}
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.Fail(c, httputil.BindError(err))
		return
	}

	appointment, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithCreated(c, appointment)
}

type listQuery struct {
	ProviderID int64  `form:"provider_id"`
	ServiceID  int64  `form:"service_id"`
	Status     string `form:"status"`
	StartDate  string `form:"start_date" binding:"omitempty,rdvdate"`
	EndDate    string `form:"end_date" binding:"omitempty,rdvdate"`
	Search     string `form:"search" binding:"max=200"`
	model.Pagination
}

func (h *Handler) ListAppointments(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httputil.Fail(c, httputil.BindError(err))
		return
	}

	filters := &model.AppointmentFilters{
		ProviderID: q.ProviderID,
		ServiceID:  q.ServiceID,
		StartDate:  q.StartDate,
		EndDate:    q.EndDate,
		Search:     q.Search,
		Pagination: q.Pagination,
	}
	if q.Status != "" {
		status, err := model.ParseStatus(q.Status)
		if err != nil {
			httputil.Fail(c, apperrors.NewValidation(apperrors.CodeInvalidStatus, err.Error()))
			return
		}
		filters.Status = status
	}

	appointments, total, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithPagination(c, appointments, filters.Page, filters.PageSize, total)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, err := httputil.ParseID(c, "id")
	if err != nil {
		httputil.Fail(c, err)
		return
	}

	appointment, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointment)
}

func (h *Handler) GetHistory(c *gin.Context) {
	id, err := httputil.ParseID(c, "id")
	if err != nil {
		httputil.Fail(c, err)
		return
	}

	logs, err := h.service.History(c.Request.Context(), id)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, logs)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := httputil.ParseID(c, "id")
	if err != nil {
		httputil.Fail(c, err)
		return
	}

	var req model.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.Fail(c, httputil.BindError(err))
		return
	}

	appointment, err := h.service.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointment)
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	id, err := httputil.ParseID(c, "id")
	if err != nil {
		httputil.Fail(c, err)
		return
	}

	var req model.CancelAppointmentRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httputil.Fail(c, httputil.BindError(err))
			return
		}
	}

	appointment, err := h.service.Cancel(c.Request.Context(), id, req.Reason)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointment)
}

func (h *Handler) RescheduleAppointment(c *gin.Context) {
	id, err := httputil.ParseID(c, "id")
	if err != nil {
		httputil.Fail(c, err)
		return
	}

	var req model.RescheduleAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.Fail(c, httputil.BindError(err))
		return
	}

	appointment, err := h.service.Reschedule(c.Request.Context(), id, &req)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointment)
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	id, err := httputil.ParseID(c, "id")
	if err != nil {
		httputil.Fail(c, err)
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithMessage(c, "appointment deleted")
}

type statsQuery struct {
	StartDate string `form:"start_date" binding:"omitempty,rdvdate"`
	EndDate   string `form:"end_date" binding:"omitempty,rdvdate"`
}

func (h *Handler) GetStats(c *gin.Context) {
	var q statsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httputil.Fail(c, httputil.BindError(err))
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), q.StartDate, q.EndDate)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, stats)
}
