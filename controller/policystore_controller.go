// controller/policystore_controller.go
package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	verdict_errors "github.com/verdictd/verdict/errors"
	"github.com/verdictd/verdict/model"
	"github.com/verdictd/verdict/service"
	"github.com/verdictd/verdict/util"
)

type PolicyStoreController struct {
	policyStoreService service.IPolicyStoreService
}

func NewPolicyStoreController(policyStoreService service.IPolicyStoreService) *PolicyStoreController {
	return &PolicyStoreController{
		policyStoreService: policyStoreService,
	}
}

// RegisterRoutes registers the API routes
func (pc *PolicyStoreController) RegisterRoutes(r *gin.RouterGroup) {
	policies := r.Group("/policies")
	{
		policies.GET("/:store_id", pc.GetSnapshot)
		policies.POST("/:store_id", pc.ReplaceSnapshot)
		policies.GET("/:store_id/schema", pc.GetSchema)
	}
}

// GetSnapshot endpoint
func (pc *PolicyStoreController) GetSnapshot(c *gin.Context) {
	storeID := c.Param("store_id")

	snapshot, err := pc.policyStoreService.GetSnapshot(c, storeID)
	if err != nil {
		if errors.Is(err, verdict_errors.ErrStoreNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Policy store not found", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve policy store", err)
		}
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// GetSchema endpoint
func (pc *PolicyStoreController) GetSchema(c *gin.Context) {
	storeID := c.Param("store_id")

	schema, err := pc.policyStoreService.GetSchema(c, storeID)
	if err != nil {
		if errors.Is(err, verdict_errors.ErrStoreNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Policy store not found", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve schema", err)
		}
		return
	}

	c.JSON(http.StatusOK, schema)
}

type ReplaceSnapshotRequest struct {
	Policies []model.Policy `json:"policies" binding:"required"`
	Schema   model.Schema   `json:"schema" binding:"required"`
}

// ReplaceSnapshot endpoint. Replaces the store's whole policy set
// atomically; creates the store if it does not exist yet.
func (pc *PolicyStoreController) ReplaceSnapshot(c *gin.Context) {
	storeID := c.Param("store_id")

	var request ReplaceSnapshotRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid policy store data", verdict_errors.ErrInvalidPolicyData)
		return
	}

	snapshot, err := pc.policyStoreService.ReplaceSnapshot(c, storeID, request.Policies, request.Schema)
	if err != nil {
		switch {
		case errors.Is(err, verdict_errors.ErrInvalidPolicyData):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid policy store data", err)
		case errors.Is(err, verdict_errors.ErrSchemaMismatch):
			util.RespondWithError(c, http.StatusUnprocessableEntity, "Policy references undeclared schema entity", err)
		case errors.Is(err, verdict_errors.ErrDatabaseOperation):
			util.RespondWithError(c, http.StatusInternalServerError, "Database operation failed", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to replace policy store", verdict_errors.ErrInternalServer)
		}
		return
	}

	c.JSON(http.StatusOK, snapshot)
}
