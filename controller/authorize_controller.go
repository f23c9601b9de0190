// controller/authorize_controller.go
package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/verdictd/verdict/logging"
	"github.com/verdictd/verdict/model"
	"github.com/verdictd/verdict/service"
	"github.com/verdictd/verdict/util"
)

type AuthorizeController struct {
	authorizationService service.IAuthorizationService
}

func NewAuthorizeController(authorizationService service.IAuthorizationService) *AuthorizeController {
	return &AuthorizeController{
		authorizationService: authorizationService,
	}
}

// RegisterRoutes registers the API routes
func (ac *AuthorizeController) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/authorize", ac.Authorize)
}

type AuthorizeRequest struct {
	Token     string                 `json:"token" binding:"required"`
	Principal string                 `json:"principal"`
	Action    string                 `json:"action" binding:"required"`
	Resource  string                 `json:"resource" binding:"required"`
	Context   map[string]interface{} `json:"context"`
	StoreID   string                 `json:"store_id" binding:"required"`
}

// Authorize endpoint. A malformed request body is the caller's error and
// gets a 400; every authorization failure beyond that point is a DENY
// decision with a reason code, never an HTTP fault.
func (ac *AuthorizeController) Authorize(c *gin.Context) {
	var request AuthorizeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid authorization request", err)
		return
	}

	decision, err := ac.authorizationService.Authorize(c, service.AuthorizeRequest{
		Token:     request.Token,
		Principal: request.Principal,
		Action:    request.Action,
		Resource:  request.Resource,
		Context:   request.Context,
		StoreID:   request.StoreID,
	})
	if err != nil {
		// Fail closed: an internal fault is still a DENY to the caller.
		logger.Error("Authorization failed internally",
			zap.Error(err),
			zap.String("resource", request.Resource))
		c.JSON(http.StatusOK, model.Decision{
			Outcome:          model.OutcomeDeny,
			Reason:           model.ReasonInternalError,
			MatchedPolicyIDs: []string{},
		})
		return
	}

	c.JSON(http.StatusOK, decision)
}
