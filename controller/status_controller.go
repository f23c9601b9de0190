// controller/status_controller.go
package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/verdictd/verdict/service"
)

type StatusController struct {
	policyStoreService service.IPolicyStoreService
	startedAt          time.Time
}

func NewStatusController(policyStoreService service.IPolicyStoreService) *StatusController {
	return &StatusController{
		policyStoreService: policyStoreService,
		startedAt:          time.Now(),
	}
}

// RegisterRoutes registers the API routes
func (sc *StatusController) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/status", sc.GetStatus)
}

// GetStatus endpoint
func (sc *StatusController) GetStatus(c *gin.Context) {
	stores := make(map[string]string)
	for _, storeID := range sc.policyStoreService.StoreIDs() {
		snapshot, err := sc.policyStoreService.GetSnapshot(c, storeID)
		if err != nil {
			continue
		}
		stores[storeID] = snapshot.Version
	}

	c.JSON(http.StatusOK, gin.H{
		"service":        "verdict-decision-service",
		"status":         "running",
		"uptime_seconds": int(time.Since(sc.startedAt).Seconds()),
		"policy_stores":  stores,
	})
}
