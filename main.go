package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/verdictd/verdict/audit"
	"github.com/verdictd/verdict/config"
	"github.com/verdictd/verdict/controller"
	"github.com/verdictd/verdict/dao"
	"github.com/verdictd/verdict/db"
	"github.com/verdictd/verdict/engine"
	logger "github.com/verdictd/verdict/logging"
	"github.com/verdictd/verdict/router"
	"github.com/verdictd/verdict/service"
	"github.com/verdictd/verdict/store"
	"github.com/verdictd/verdict/token"
	"github.com/verdictd/verdict/util"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	// Initialize logger
	logger.InitLogger("logging")
	defer logger.Sync()

	// Initialize Neo4j
	if err := db.InitNeo4j(); err != nil {
		logger.Fatal("Failed to initialize Neo4j", zap.Error(err))
	}
	defer db.CloseNeo4j()

	// Initialize Redis
	if err := db.InitRedis(); err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer db.CloseRedis()

	// Initialize EventBus
	eventBus := util.NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eventBus.Start(ctx)

	// Initialize services and utilities
	validationUtil := util.NewValidationUtil()
	auditRepository, err := audit.NewElasticsearchRepository(config.GetString("elasticsearch.url"))
	if err != nil {
		logger.Fatal("Failed to initialize audit repository", zap.Error(err))
	}
	auditService := audit.NewService(auditRepository)

	// Initialize the policy store
	storeDAO := dao.NewPolicyStoreDAO(db.Neo4jDriver)
	storeManager := store.NewManager()
	policyStoreService := service.NewPolicyStoreService(storeDAO, db.NewSnapshotCache(), storeManager, validationUtil, eventBus)

	if err := policyStoreService.LoadPersisted(ctx); err != nil {
		logger.Fatal("Failed to load persisted policy stores", zap.Error(err))
	}

	// Initialize the token verifier
	trustBundle := token.NewTrustBundle(
		config.GetString("token.jwksURL"),
		config.GetDuration("token.jwksFetchTimeout"),
	)
	verifier := token.NewVerifier(
		config.GetString("token.issuer"),
		config.GetString("token.audience"),
		config.GetDuration("token.leeway"),
		trustBundle,
	)
	resolver := token.NewClaimsResolver(verifier)

	// Initialize the decision engine
	evaluator := engine.NewEvaluator(config.GetInt("engine.decisionCacheSize"))

	authorizationService := service.NewAuthorizationService(resolver, storeManager, evaluator, auditService, eventBus)

	// Initialize controllers
	controllers := controller.NewControllers(authorizationService, policyStoreService, auditService)

	// Set up Gin
	gin.SetMode(gin.ReleaseMode)
	r := router.SetupRouter(
		controllers,
		config.GetInt("ratelimit.requests"),
		config.GetDuration("ratelimit.window"),
	)

	// Set up the server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", config.GetString("server.port")),
		Handler: r,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", config.GetString("server.port")))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
