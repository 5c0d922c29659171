package api

import (
	"net/http"
	"strings"

	"alcyxob/course-media/internal/domain"
	"alcyxob/course-media/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type MediaHandler struct {
	mediaService service.MediaService
	log          zerolog.Logger
}

func NewMediaHandler(mediaService service.MediaService, log zerolog.Logger) *MediaHandler {
	return &MediaHandler{
		mediaService: mediaService,
		log:          log.With().Str("component", "media-handler").Logger(),
	}
}

// UploadMedia godoc
// @Summary Upload a file for a context
// @Description Validates size and type against the upload context, stores the file on the active provider and returns its descriptor.
// @Tags Media
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "File to upload"
// @Param context formData string true "profilePic, certificate, courseThumbnail, courseGuidelines, courseIntroduction or lessonResource"
// @Param userId formData string false "Owner for user-scoped contexts (defaults to the caller)"
// @Param courseId formData string false "Course for course-scoped contexts"
// @Param lessonId formData string false "Lesson for lessonResource"
// @Param replaceKey formData string false "Key of the media this upload replaces"
// @Success 201 {object} domain.MediaDescriptor
// @Failure 400 {object} gin.H
// @Failure 403 {object} gin.H
// @Failure 413 {object} gin.H
// @Failure 415 {object} gin.H
// @Router /media [post]
func (h *MediaHandler) UploadMedia(c *gin.Context) {
	caller, err := getPrincipal(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "File is required in 'file' form field.")
		return
	}

	uploadContext := domain.UploadContext(strings.TrimSpace(c.PostForm("context")))
	if !uploadContext.Valid() {
		abortWithError(c, http.StatusBadRequest, "Unknown upload context '"+string(uploadContext)+"'.")
		return
	}

	userID := strings.TrimSpace(c.PostForm("userId"))
	if userID == "" {
		userID = caller.UserID
	}
	if userID != caller.UserID && !caller.IsAdmin() {
		abortWithError(c, http.StatusForbidden, "Only admins can upload on behalf of another user.")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondWithServiceError(c, h.log, err, "Failed to read uploaded file.")
		return
	}
	defer file.Close()

	desc, err := h.mediaService.Upload(c.Request.Context(), service.MediaUpload{
		Context:      uploadContext,
		Filename:     fileHeader.Filename,
		DeclaredType: fileHeader.Header.Get("Content-Type"),
		Size:         fileHeader.Size,
		Body:         file,
		UserID:       userID,
		CourseID:     c.PostForm("courseId"),
		LessonID:     c.PostForm("lessonId"),
		ReplaceKey:   strings.TrimPrefix(c.PostForm("replaceKey"), "/"),
		OwnerID:      caller.UserID,
	})
	if err != nil {
		respondWithServiceError(c, h.log, err, "Failed to store file.")
		return
	}

	c.JSON(http.StatusCreated, desc)
}

// DeleteMedia godoc
// @Summary Delete stored media by key
// @Tags Media
// @Security BearerAuth
// @Param key path string true "Storage key"
// @Success 204
// @Failure 403 {object} gin.H
// @Failure 404 {object} gin.H
// @Router /media/{key} [delete]
func (h *MediaHandler) DeleteMedia(c *gin.Context) {
	caller, err := getPrincipal(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	key := strings.TrimPrefix(c.Param("key"), "/")
	if err := h.mediaService.Delete(c.Request.Context(), key, caller); err != nil {
		respondWithServiceError(c, h.log, err, "Failed to delete media.")
		return
	}
	c.Status(http.StatusNoContent)
}
