package catalog

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/rdv-api/internal/model"
	"github.com/jwalitptl/rdv-api/pkg/httputil"
)

type Service interface {
	CreateProvider(ctx context.Context, req *model.ProviderRequest) (*model.Provider, error)
	GetProvider(ctx context.Context, id int64) (*model.Provider, error)
	ListProviders(ctx context.Context, filters *model.ProviderFilters) ([]*model.Provider, error)
	UpdateProvider(ctx context.Context, id int64, req *model.ProviderRequest) (*model.Provider, error)
	DeactivateProvider(ctx context.Context, id int64) error

	CreateService(ctx context.Context, req *model.ServiceRequest) (*model.Service, error)
	GetService(ctx context.Context, id int64) (*model.Service, error)
	ListServices(ctx context.Context, activeOnly bool) ([]*model.Service, error)
	UpdateService(ctx context.Context, id int64, req *model.ServiceRequest) (*model.Service, error)
	DeactivateService(ctx context.Context, id int64) error
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(public, admin *gin.RouterGroup) {
	public.GET("/providers", h.ListProviders)
	public.GET("/providers/:id", h.GetProvider)
	public.GET("/services", h.ListServices)
	public.GET("/services/:id", h.GetService)

	admin.POST("/providers", h.CreateProvider)
	admin.PUT("/providers/:id", h.UpdateProvider)
	admin.DELETE("/providers/:id", h.DeactivateProvider)
	admin.POST("/services", h.CreateService)
	admin.PUT("/services/:id", h.UpdateService)
	admin.DELETE("/services/:id", h.DeactivateService)
}

// includeInactive reads ?all=true; callers see active entries otherwise.
func includeInactive(c *gin.Context) bool {
	all, _ := strconv.ParseBool(c.Query("all"))
	return all
}

func (h *Handler) ListProviders(c *gin.Context) {
	filters := &model.ProviderFilters{ActiveOnly: !includeInactive(c)}
	if raw := c.Query("service_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httputil.Fail(c, httputil.BindError(err))
			return
		}
		filters.ServiceID = id
	}

	providers, err := h.service.ListProviders(c.Request.Context(), filters)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, providers)
}

func (h *Handler) GetProvider(c *gin.Context) {
	id, err := httputil.ParseID(c, "id")
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	provider, err := h.service.GetProvider(c.Request.Context(), id)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, provider)
}

func (h *Handler) CreateProvider(c *gin.Context) {
	var req model.ProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.Fail(c, httputil.BindError(err))
		return
	}
	provider, err := h.service.CreateProvider(c.Request.Context(), &req)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithCreated(c, provider)
}

func (h *Handler) UpdateProvider(c *gin.Context) {
	id, err := httputil.ParseID(c, "id")
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	var req model.ProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.Fail(c, httputil.BindError(err))
		return
	}
	provider, err := h.service.UpdateProvider(c.Request.Context(), id, &req)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, provider)
}

func (h *Handler) DeactivateProvider(c *gin.Context) {
	id, err := httputil.ParseID(c, "id")
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	if err := h.service.DeactivateProvider(c.Request.Context(), id); err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithMessage(c, "provider deactivated")
}

func (h *Handler) ListServices(c *gin.Context) {
	services, err := h.service.ListServices(c.Request.Context(), !includeInactive(c))
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, services)
}

func (h *Handler) GetService(c *gin.Context) {
	id, err := httputil.ParseID(c, "id")
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	service, err := h.service.GetService(c.Request.Context(), id)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, service)
}

func (h *Handler) CreateService(c *gin.Context) {
	var req model.ServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.Fail(c, httputil.BindError(err))
		return
	}
	service, err := h.service.CreateService(c.Request.Context(), &req)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithCreated(c, service)
}

func (h *Handler) UpdateService(c *gin.Context) {
	id, err := httputil.ParseID(c, "id")
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	var req model.ServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.Fail(c, httputil.BindError(err))
		return
	}
	service, err := h.service.UpdateService(c.Request.Context(), id, &req)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, service)
}

func (h *Handler) DeactivateService(c *gin.Context) {
	id, err := httputil.ParseID(c, "id")
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	if err := h.service.DeactivateService(c.Request.Context(), id); err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithMessage(c, "service deactivated")
}
