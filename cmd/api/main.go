package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "invoicedesk/api/swagger" // swagger docs
	"invoicedesk/internal/auth"
	"invoicedesk/internal/config"
	"invoicedesk/internal/database"
	"invoicedesk/internal/extraction"
	"invoicedesk/internal/handler"
	"invoicedesk/internal/logger"
	"invoicedesk/internal/metrics"
	"invoicedesk/internal/middleware"
	"invoicedesk/internal/ocr"
	"invoicedesk/internal/repository"
	"invoicedesk/internal/service"
	"invoicedesk/internal/storage"
	"invoicedesk/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Invoice Intake API
// @version         1.0
// @description     Scans supplier invoices per division, extracts their fields and runs the approval workflow.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "invoicedesk:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(cfg.Database.DSN(), log)
	if err != nil {
		return err
	}
	log.Info("connected to database", zap.String("host", cfg.Database.Host), zap.String("name", cfg.Database.Name))

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := database.SeedUsers(ctx, db, cfg.Seed, log); err != nil {
		return fmt.Errorf("seed users: %w", err)
	}

	store, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}
	recognizer := ocr.NewRecognizer(ocr.Config{
		Pdftoppm:    cfg.OCR.Pdftoppm,
		Tesseract:   cfg.OCR.Tesseract,
		Language:    cfg.OCR.Language,
		TessdataDir: cfg.OCR.TessdataDir,
		DPI:         cfg.OCR.DPI,
		MaxPages:    cfg.OCR.MaxPages,
	}, log)
	generator, err := extraction.NewLLMGenerator(cfg.LLM, log)
	if err != nil {
		return err
	}
	extractor := extraction.NewExtractor(generator, cfg.LLM.Timeout, log)
	invoiceMetrics := metrics.New(nil)

	wsHub := websocket.NewHub(cfg.Server.AllowedOrigins, log)
	go wsHub.Run(ctx)

	// Repository -> Service -> Handler
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	tokens := auth.NewTokenManager(cfg.JWT)
	authMW := middleware.NewAuth(tokens, cfg.Server.Mode == gin.ReleaseMode, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)

	userService := service.NewUserService(userRepo, auditRepo, txManager, tokens, cfg.JWT.RefreshTTL, log)
	auditService := service.NewAuditService(auditRepo)
	invoiceService := service.NewInvoiceService(service.InvoiceDeps{
		Invoices:   invoiceRepo,
		Audit:      auditRepo,
		Tx:         txManager,
		Workflow:   service.NewWorkflow(invoiceRepo, auditRepo, txManager, invoiceMetrics),
		Store:      store,
		Recognizer: recognizer,
		Extractor:  extractor,
		Events:     wsHub,
		Metrics:    invoiceMetrics,
		Logger:     log,
		Divisions:  cfg.Divisions,
	})

	userHandler := handler.NewUserHandler(userService, authMW, log)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService, authMW, cfg.Server.MaxUploadMB<<20, log)
	auditHandler := handler.NewAuditHandler(auditService, authMW, log)

	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinMiddleware(log.Named("http")))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", logger.RequestIDHeader}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.ExposeHeaders = []string{"Content-Disposition", logger.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", wsHub.ServeWs(tokens))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	userHandler.RegisterRoutes(router.Group(""))
	invoiceHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))

	go purgeExpiredTokens(ctx, userRepo, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	return nil
}

func purgeExpiredTokens(ctx context.Context, users repository.UserRepository, log *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := users.DeleteExpiredRefreshTokens(ctx, now)
			if err != nil {
				log.Warn("failed to purge refresh tokens", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("purged expired refresh tokens", zap.Int64("count", n))
			}
		}
	}
}
