package audit

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/careloop/patient-api/internal/handler"
	"github.com/careloop/patient-api/internal/middleware"
	"github.com/careloop/patient-api/internal/model"
	"github.com/careloop/patient-api/internal/service/audit"
)

// Handler exposes the audit trail to administrators. Read-only: audit
// records are never mutated or deleted through any surface.
type Handler struct {
	service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	r.GET("/audit-logs", auth.RequirePermission(model.PermissionAuditRead), h.ListAuditLogs)
}

func (h *Handler) ListAuditLogs(c *gin.Context) {
	var filters model.AuditFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid query parameters"))
		return
	}
	filters.Normalize()

	logs, total, err := h.service.ListWithPagination(c.Request.Context(), &filters)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("internal server error"))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(model.NewPagedResult(logs, total, filters.Pagination)))
}
