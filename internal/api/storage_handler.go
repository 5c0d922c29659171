package api

import (
	"net/http"

	"alcyxob/course-media/internal/domain"
	"alcyxob/course-media/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type StorageHandler struct {
	settings service.StorageSettingsService
	log      zerolog.Logger
}

func NewStorageHandler(settings service.StorageSettingsService, log zerolog.Logger) *StorageHandler {
	return &StorageHandler{
		settings: settings,
		log:      log.With().Str("component", "storage-handler").Logger(),
	}
}

type UpdateStorageRequest struct {
	Provider    string                     `json:"provider" binding:"required"`
	Credentials *domain.StorageCredentials `json:"credentials"`
}

// GetStorageSettings godoc
// @Summary Get the active storage configuration
// @Description The secret access key is masked.
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} domain.StorageSettings
// @Failure 403 {object} gin.H
// @Router /admin/storage [get]
func (h *StorageHandler) GetStorageSettings(c *gin.Context) {
	settings, err := h.settings.Get(c.Request.Context())
	if err != nil {
		respondWithServiceError(c, h.log, err, "Failed to load storage configuration.")
		return
	}
	c.JSON(http.StatusOK, settings)
}

// UpdateStorageSettings godoc
// @Summary Switch the storage provider
// @Description Takes effect for operations started after the update. Send the masked secret back unchanged to keep the stored one.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateStorageRequest true "New configuration"
// @Success 200 {object} domain.StorageSettings
// @Failure 400 {object} gin.H
// @Failure 403 {object} gin.H
// @Router /admin/storage [put]
func (h *StorageHandler) UpdateStorageSettings(c *gin.Context) {
	var req UpdateStorageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	adminID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	saved, err := h.settings.Update(c.Request.Context(), domain.StorageSettings{
		Provider:    domain.Provider(req.Provider),
		Credentials: req.Credentials,
	}, adminID)
	if err != nil {
		respondWithServiceError(c, h.log, err, "Failed to save storage configuration.")
		return
	}
	c.JSON(http.StatusOK, saved)
}
