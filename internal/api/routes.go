package api

import (
	"net/http"
	"strings"

	"alcyxob/course-media/internal/domain"
	"alcyxob/course-media/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Services bundles what the HTTP layer calls into.
type Services struct {
	Media           service.MediaService
	Sessions        service.UploadSessionService
	Delivery        service.DeliveryService
	StorageSettings service.StorageSettingsService
}

// StaticMount serves local-disk media at the public URLs LocalDisk hands out.
type StaticMount struct {
	Path string // URL prefix, e.g. /uploads
	Dir  string // storage.local_path
}

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	services Services,
	static StaticMount,
	log zerolog.Logger,
) {
	mediaHandler := NewMediaHandler(services.Media, log)
	sessionHandler := NewUploadSessionHandler(services.Sessions, log)
	streamHandler := NewStreamHandler(services.Delivery, log)
	storageHandler := NewStorageHandler(services.StorageSettings, log)

	authMiddleware := AuthMiddleware(jwtSecret)
	uploaders := RoleMiddleware(domain.RoleInstructor, domain.RoleAdmin)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if mount := "/" + strings.Trim(static.Path, "/"); mount != "/" && static.Dir != "" {
		router.Static(mount, static.Dir)
	}

	apiV1 := router.Group("/api/v1")
	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			caller, err := getPrincipal(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user from token")
				return
			}
			c.JSON(http.StatusOK, gin.H{"userId": caller.UserID, "role": caller.Role})
		})

		// --- Chunked uploads ---
		sessions := protected.Group("/uploads/sessions")
		sessions.Use(uploaders)
		{
			sessions.POST("", sessionHandler.InitSession)
			sessions.GET("/:uploadId", sessionHandler.GetSession)
			sessions.DELETE("/:uploadId", sessionHandler.AbortSession)
			sessions.PUT("/:uploadId/parts/:partNumber", sessionHandler.PutPart)
			sessions.POST("/:uploadId/complete", sessionHandler.CompleteSession)
			sessions.POST("/:uploadId/finalize", sessionHandler.FinalizeSession)
		}

		// --- Direct uploads and delivery ---
		media := protected.Group("/media")
		{
			media.POST("", uploaders, mediaHandler.UploadMedia)
			// Any authenticated user may watch.
			media.GET("/stream/*key", streamHandler.StreamMedia)
			media.HEAD("/stream/*key", streamHandler.StreamMedia)
			media.DELETE("/*key", uploaders, mediaHandler.DeleteMedia)
		}

		// --- Admin ---
		admin := protected.Group("/admin")
		admin.Use(RoleMiddleware(domain.RoleAdmin))
		{
			admin.GET("/storage", storageHandler.GetStorageSettings)
			admin.PUT("/storage", storageHandler.UpdateStorageSettings)
		}
	}
}
