package handler

import (
	"net/http"

	"invoicedesk/internal/middleware"
	"invoicedesk/internal/model"
	"invoicedesk/internal/repository"
	"invoicedesk/internal/service"
	"invoicedesk/pkg/pagination"
	"invoicedesk/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuditHandler struct {
	auditService service.AuditService
	auth         *middleware.Auth
	log          *zap.Logger
}

func NewAuditHandler(auditService service.AuditService, auth *middleware.Auth, log *zap.Logger) *AuditHandler {
	return &AuditHandler{auditService: auditService, auth: auth, log: log.Named("audit_handler")}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/audit_logs", h.auth.RequireRole(model.RoleAdmin), h.GetAuditLogs)
}

// GetAuditLogs handles GET /audit_logs?action&division&username&page&per_page.
// @Summary      List audit logs
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        action    query     string  false  "Action, e.g. APPROVE_INVOICE"
// @Param        division  query     string  false  "Division"
// @Param        username  query     string  false  "Acting user"
// @Param        page      query     int     false  "Page number (default 1)"
// @Param        per_page  query     int     false  "Items per page (default 10, max 100)"
// @Success      200       {object}  response.Response{data=response.Page}
// @Failure      403       {object}  response.Response
// @Router       /audit_logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)
	filter := repository.AuditFilter{
		Action:   c.Query("action"),
		Division: c.Query("division"),
		Username: c.Query("username"),
	}

	page, err := h.auditService.GetAuditLogs(c.Request.Context(), middleware.Principal(c), filter, p.Page, p.Limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, response.Page{
		Items:       page.Logs,
		Total:       page.Total,
		Pages:       page.Pages,
		CurrentPage: page.Page,
		PerPage:     page.Limit,
	}))
}
