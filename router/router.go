// router/router.go

package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/verdictd/verdict/controller"
	"github.com/verdictd/verdict/middleware"
)

func SetupRouter(
	controllers *controller.Controllers,
	rateLimitRequests int,
	rateLimitWindow time.Duration,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.RateLimiter(rateLimitRequests, rateLimitWindow))

	api := router.Group("/api/v1")

	controllers.Authorize.RegisterRoutes(api)
	controllers.PolicyStore.RegisterRoutes(api)
	controllers.Status.RegisterRoutes(api)
	controllers.Audit.RegisterRoutes(api)

	return router
}
