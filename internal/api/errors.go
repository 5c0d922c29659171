package api

import (
	"errors"
	"net/http"

	"alcyxob/course-media/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// respondWithServiceError maps service errors to HTTP status codes. Anything
// unrecognized is logged and answered with a generic message so storage
// paths and credentials never reach the client.
func respondWithServiceError(c *gin.Context, log zerolog.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrFileTooLarge):
		abortWithError(c, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, service.ErrUnsupportedType):
		abortWithError(c, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, service.ErrForbidden):
		abortWithError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrMediaNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidSessionState):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrValidationFailed),
		errors.Is(err, service.ErrUnknownContext),
		errors.Is(err, service.ErrMissingEntityID),
		errors.Is(err, service.ErrInvalidPartNumber),
		errors.Is(err, service.ErrNoParts),
		errors.Is(err, service.ErrInvalidStorageConfig):
		abortWithError(c, http.StatusBadRequest, err.Error())
	default:
		_ = c.Error(err)
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg(fallback)
		abortWithError(c, http.StatusInternalServerError, fallback)
	}
}
