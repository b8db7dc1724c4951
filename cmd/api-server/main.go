package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/college-eapproval-api/api/swagger"
	"github.com/noah-isme/college-eapproval-api/internal/document"
	"github.com/noah-isme/college-eapproval-api/internal/handler"
	"github.com/noah-isme/college-eapproval-api/internal/middleware"
	"github.com/noah-isme/college-eapproval-api/internal/models"
	"github.com/noah-isme/college-eapproval-api/internal/repository"
	"github.com/noah-isme/college-eapproval-api/internal/service"
	"github.com/noah-isme/college-eapproval-api/pkg/cache"
	"github.com/noah-isme/college-eapproval-api/pkg/config"
	"github.com/noah-isme/college-eapproval-api/pkg/database"
	"github.com/noah-isme/college-eapproval-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/college-eapproval-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/college-eapproval-api/pkg/middleware/requestid"
	"github.com/noah-isme/college-eapproval-api/pkg/storage"
)

// Documents embed a fixed creation date so a render of the same request is
// byte-for-byte reproducible.
var documentCreationDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// @title College E-Approval API
// @version 1.0.0
// @description Sequential approval workflow for student requests (class teacher, HOD, principal)
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Dashboard.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, dashboard cache disabled", "error", err)
		} else {
			defer redisClient.Close() //nolint:errcheck
			cacheRepo := repository.NewCacheRepository(redisClient)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, true)
		}
	}

	documentStore, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare document storage", "error", err)
	}

	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	authSvc := service.NewAuthService(userRepo, auditRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "college-eapproval-api",
	})

	documentSvc := service.NewDocumentService(
		documentStore,
		document.NewPDFRenderer(documentCreationDate),
		document.NewDirSignatureResolver(cfg.Documents.SignatureDir),
		storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL),
		auditRepo,
		metricsSvc,
		logr,
	)

	approvalSvc := service.NewApprovalService(requestRepo, documentSvc, auditRepo, cacheSvc, metricsSvc, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	requestHandler := handler.NewRequestHandler(approvalSvc, documentSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

		requests := api.Group("/requests", middleware.JWT(authSvc))
		requests.GET("", requestHandler.List)
		requests.POST("", middleware.RequireRoles(models.RoleStudent), requestHandler.Create)
		requests.GET("/:id", requestHandler.Get)
		requests.POST("/:id/approve", middleware.RequireStaff(), requestHandler.Approve)
		requests.POST("/:id/reject", middleware.RequireStaff(), requestHandler.Reject)
		requests.GET("/:id/document", requestHandler.Download)
		requests.GET("/:id/document/link", requestHandler.Link)

		// The signed token is the credential, so no JWT gate here.
		api.GET("/documents/:token", requestHandler.Redeem)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
