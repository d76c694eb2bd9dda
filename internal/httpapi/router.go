package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/w3a11y-artisan/internal/app"
	"github.com/suPer8Hu/w3a11y-artisan/internal/apperr"
	"github.com/suPer8Hu/w3a11y-artisan/internal/common"
	"github.com/suPer8Hu/w3a11y-artisan/internal/config"
	"github.com/suPer8Hu/w3a11y-artisan/internal/httpapi/handlers"
	"github.com/suPer8Hu/w3a11y-artisan/internal/httpapi/middleware"
)

func NewRouter(svc *app.Services, cfg config.Config, queue handlers.SessionPublisher, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.HandleMethodNotAllowed = true
	// image payloads arrive as base64 form fields
	r.MaxMultipartMemory = 64 << 20
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(logger))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, apperr.NotFound("route not found"))
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, apperr.New(apperr.CodeValidation, "method not allowed", http.StatusMethodNotAllowed))
	})

	h := handlers.NewHandler(svc, queue, logger)

	r.GET("/ping", h.Ping)
	if cfg.UploadDir != "" {
		r.Static("/uploads", cfg.UploadDir)
	}

	ajax := r.Group("/")
	ajax.Use(middleware.AuthRequired(cfg.JWTSecret), middleware.RequireCapability(middleware.CapUploadFiles))
	ajax.POST("/wp-admin/admin-ajax.php", h.Ajax)
	ajax.POST("/ajax", h.Ajax)
	return r
}
