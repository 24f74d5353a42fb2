package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/winery_ingest/config"
	"github.com/mmdatafocus/winery_ingest/imports"
	"github.com/mmdatafocus/winery_ingest/middlewares"
	"github.com/mmdatafocus/winery_ingest/service"
	"github.com/mmdatafocus/winery_ingest/utils"
	"github.com/sirupsen/logrus"
)

// App is everything the HTTP handlers need.
type App struct {
	Service   *service.Service
	Processor *imports.Processor
	Settings  *config.Settings
	Logger    *logrus.Logger
	// SignUpload issues signed upload URLs; replaced in tests.
	SignUpload func(ctx context.Context, bucket, objectKey, contentType string, expires time.Duration) (*utils.SignedUpload, error)
}

func main() {
	logger := config.GetLogger()

	settings, err := config.LoadSettings()
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "settings"}).Fatal(err.Error())
	}
	if settings.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := service.Open(sigCtx, settings, logger)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "service"}).Fatal(err.Error())
	}
	defer svc.Close()

	fetcher, err := utils.NewGCSFetcher(sigCtx, settings.MaxUploadBytes)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "storage"}).Fatal(err.Error())
	}
	defer fetcher.Close()

	app := &App{
		Service:    svc,
		Processor:  &imports.Processor{Router: svc.Router, Fetcher: fetcher, Logger: logger},
		Settings:   settings,
		Logger:     logger,
		SignUpload: utils.SignUpload,
	}

	srv := &http.Server{
		Addr:    ":" + settings.Port,
		Handler: newRouter(app),
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()
	logger.WithFields(logrus.Fields{"port": settings.Port, "backend": settings.Backend}).Info("[server.start]")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Imports and jobs can run for minutes; give them time to finish their current batch.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
}

func newRouter(app *App) *gin.Engine {
	r := gin.New()

	corsConfig := cors.DefaultConfig()
	// In production only the configured origins may call the job endpoints.
	if app.Settings.IsProduction() {
		corsConfig.AllowOrigins = app.Settings.CORSAllowedOrigins
		if len(corsConfig.AllowOrigins) == 0 {
			corsConfig.AllowOriginFunc = func(string) bool { return false }
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", middlewares.CorrelationIdHeader)
	corsConfig.AddExposeHeaders("Content-Length", middlewares.CorrelationIdHeader)
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins

	r.Use(cors.New(corsConfig))
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(customErrorLogger(app.Logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/pubsub/uploads", uploadPushHandler(app))

	api := r.Group("/api", middlewares.AuthMiddleware())
	api.POST("/uploads/sign", signUploadHandler(app))

	jobs := api.Group("/jobs")
	jobs.POST("/reindex-invoices", jobHandler(app.Service.Jobs.ReindexInvoices))
	jobs.POST("/sync-bottle-types", jobHandler(app.Service.Jobs.SyncBottleTypes))
	jobs.POST("/collapse-bottle-types", jobHandler(app.Service.Jobs.CollapseBottleTypes))
	jobs.POST("/normalize-bottle-info", normalizeHandler(app))
	jobs.POST("/index-invoices", jobHandler(app.Service.Jobs.MirrorInvoices))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody(utils.KindNotFound, "route not found"))
	})
	return r
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}
