package auth

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/rdv-api/internal/model"
	"github.com/jwalitptl/rdv-api/pkg/httputil"
)

type Service interface {
	Login(ctx context.Context, email, password string) (*model.TokenResponse, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(public *gin.RouterGroup) {
	public.POST("/auth/login", h.Login)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.Fail(c, httputil.BindError(err))
		return
	}

	tokens, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, tokens)
}
