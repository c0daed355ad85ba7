package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/rdv-api/internal/service/export"
	"github.com/jwalitptl/rdv-api/pkg/httputil"
)

type Service interface {
	Validate(req *export.Request) error
	Filename(req *export.Request) string
	Write(ctx context.Context, w io.Writer, req *export.Request) error
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.GET("/exports", h.Export)
}

func (h *Handler) Export(c *gin.Context) {
	var req export.Request
	if err := c.ShouldBindQuery(&req); err != nil {
		httputil.Fail(c, httputil.BindError(err))
		return
	}
	if err := h.service.Validate(&req); err != nil {
		httputil.Fail(c, err)
		return
	}

	var buf bytes.Buffer
	if err := h.service.Write(c.Request.Context(), &buf, &req); err != nil {
		httputil.Fail(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.service.Filename(&req)))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
