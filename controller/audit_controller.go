// controller/audit_controller.go
package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/verdictd/verdict/audit"
	"github.com/verdictd/verdict/util"
	helper_util "github.com/verdictd/verdict/util/helper"
)

type AuditController struct {
	auditService audit.Service
}

func NewAuditController(auditService audit.Service) *AuditController {
	return &AuditController{
		auditService: auditService,
	}
}

// RegisterRoutes registers the API routes
func (ac *AuditController) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/audit/decisions", ac.QueryDecisions)
}

// QueryDecisions endpoint
func (ac *AuditController) QueryDecisions(c *gin.Context) {
	from, to, err := helper_util.GetTimeRangeParams(c)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid time range parameters", err)
		return
	}

	limit, offset, err := helper_util.GetPaginationParams(c)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid pagination parameters", err)
		return
	}

	events, err := ac.auditService.QueryDecisions(c, from, to, c.Query("principal_id"), c.Query("resource_id"), limit, offset)
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to query decision events", err)
		return
	}

	c.JSON(http.StatusOK, events)
}
