package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/azhur-katering/katering-api/api/swagger"
	"github.com/azhur-katering/katering-api/migrations"
	"github.com/azhur-katering/katering-api/pkg/cache"
	"github.com/azhur-katering/katering-api/pkg/config"
	"github.com/azhur-katering/katering-api/pkg/database"
	"github.com/azhur-katering/katering-api/pkg/hash"
	"github.com/azhur-katering/katering-api/pkg/logger"
	"github.com/azhur-katering/katering-api/pkg/mailer"
	corsmiddleware "github.com/azhur-katering/katering-api/pkg/middleware/cors"
	reqidmiddleware "github.com/azhur-katering/katering-api/pkg/middleware/requestid"
	"github.com/azhur-katering/katering-api/pkg/storage"

	"github.com/azhur-katering/katering-api/internal/handler"
	"github.com/azhur-katering/katering-api/internal/middleware"
	"github.com/azhur-katering/katering-api/internal/models"
	"github.com/azhur-katering/katering-api/internal/repository"
	"github.com/azhur-katering/katering-api/internal/service"
)

// @title Azhur Katering API
// @version 1.0.0
// @description Catering service backend: accounts, email verification and menu management
// @BasePath /api/v1
// @schemes http https

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	if err := migrations.Up(db); err != nil {
		logr.Sugar().Fatalw("failed to run migrations", "error", err)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, menu cache disabled", "error", err)
		redisClient = nil
	}

	var imageStore *storage.ImageStore
	if cfg.S3.Bucket != "" {
		s3Client, err := storage.NewS3Client(ctx, cfg.S3)
		if err != nil {
			logr.Sugar().Fatalw("failed to init object storage", "error", err)
		}
		imageStore = storage.NewImageStore(s3Client, cfg.S3, logr)
	}

	userRepo := repository.NewUserRepository(db)
	verificationRepo := repository.NewVerificationRepository(db)
	authLogRepo := repository.NewAuthLogRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	dishRepo := repository.NewDishRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metrics := service.NewMetrics()

	tokenService := service.NewTokenService(service.TokenConfig{
		Secret:        cfg.JWT.Secret,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		AccessExpiry:  cfg.JWT.Expiration,
		RefreshExpiry: cfg.JWT.RefreshExpiration,
	})

	emailService := service.NewEmailService(verificationRepo, userRepo, authLogRepo, mailer.NewSMTPMailer(cfg.SMTP), logr, metrics, service.EmailConfig{
		CodeTTL:     cfg.Email.CodeTTL,
		Workers:     cfg.Email.Workers,
		QueueBuffer: cfg.Email.QueueBuffer,
	})
	emailService.Start(ctx)
	defer emailService.Stop()

	authService := service.NewAuthService(userRepo, authLogRepo, hash.NewBcryptHasher(0), tokenService, emailService, nil, logr, metrics, service.LockoutConfig{
		MaxFailedAttempts: cfg.Lockout.MaxFailedAttempts,
		LockDuration:      cfg.Lockout.LockDuration,
	})
	categoryService := service.NewCategoryService(categoryRepo, cacheRepo, nil, logr, metrics)

	var dishService *service.DishService
	if imageStore != nil {
		dishService = service.NewDishService(dishRepo, categoryRepo, imageStore, cacheRepo, nil, logr, metrics, cfg.Dishes.CacheTTL)
	} else {
		dishService = service.NewDishService(dishRepo, categoryRepo, nil, cacheRepo, nil, logr, metrics, cfg.Dishes.CacheTTL)
	}

	cleanupService := service.NewCleanupService(userRepo, verificationRepo, authLogRepo, logr, service.CleanupConfig{
		Interval: cfg.Cleanup.Interval,
	})
	cleanupService.Start(ctx)
	defer cleanupService.Stop()

	authHandler := handler.NewAuthHandler(authService, emailService, cfg.Cookie)
	categoryHandler := handler.NewCategoryHandler(categoryService)
	dishHandler := handler.NewDishHandler(dishService, cfg.Dishes.MaxImageSizeBytes)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.NewRateLimiter(cfg.RateLimit.GeneralPerMinute, time.Minute).Middleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authLimit := middleware.NewRateLimiter(cfg.RateLimit.AuthPerMinute, time.Minute)
	refreshLimit := middleware.NewRateLimiter(cfg.RateLimit.RefreshPerMinute, time.Minute)
	emailLimit := middleware.NewRateLimiter(cfg.RateLimit.EmailPer5Minutes, 5*time.Minute)
	passwordLimit := middleware.NewRateLimiter(cfg.RateLimit.PasswordPerHour, time.Hour)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", authLimit.Middleware(), authHandler.Register)
	auth.POST("/login", authLimit.Middleware(), authHandler.Login)
	auth.POST("/refresh", refreshLimit.Middleware(), authHandler.Refresh)
	auth.POST("/logout", authHandler.Logout)
	auth.POST("/send-verification", emailLimit.Middleware(), authHandler.SendVerification)
	auth.POST("/verify-email", emailLimit.Middleware(), authHandler.VerifyEmail)
	auth.POST("/change-password", passwordLimit.Middleware(), middleware.JWT(tokenService), authHandler.ChangePassword)
	auth.GET("/me", middleware.JWT(tokenService), authHandler.Me)

	menu := api.Group("")
	menu.GET("/categories", categoryHandler.List)
	menu.GET("/categories/:id", categoryHandler.Get)
	menu.GET("/dishes", dishHandler.List)
	menu.GET("/dishes/available", dishHandler.Available)
	menu.GET("/dishes/search", dishHandler.Search)
	menu.GET("/dishes/export", dishHandler.Export)
	menu.GET("/dishes/:id", dishHandler.Get)

	admin := api.Group("", middleware.JWT(tokenService), middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/categories/all", categoryHandler.ListAll)
	admin.POST("/categories", categoryHandler.Create)
	admin.PUT("/categories/:id", categoryHandler.Update)
	admin.PATCH("/categories/:id/status", categoryHandler.UpdateStatus)
	admin.DELETE("/categories/:id", categoryHandler.Delete)
	admin.POST("/dishes", dishHandler.Create)
	admin.PUT("/dishes/:id", dishHandler.Update)
	admin.DELETE("/dishes/:id", dishHandler.Delete)
	admin.POST("/dishes/:id/image", dishHandler.UploadImage)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
