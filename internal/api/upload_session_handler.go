package api

import (
	"net/http"
	"strconv"

	"alcyxob/course-media/internal/domain"
	"alcyxob/course-media/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type UploadSessionHandler struct {
	sessions service.UploadSessionService
	log      zerolog.Logger
}

func NewUploadSessionHandler(sessions service.UploadSessionService, log zerolog.Logger) *UploadSessionHandler {
	return &UploadSessionHandler{
		sessions: sessions,
		log:      log.With().Str("component", "upload-session-handler").Logger(),
	}
}

// --- DTOs ---
type InitSessionRequest struct {
	CourseID string `json:"courseId" binding:"required"`
	LessonID string `json:"lessonId"`
	Kind     string `json:"kind" binding:"required"`
	Filename string `json:"filename" binding:"required"`
	Mime     string `json:"mime"`
	Size     int64  `json:"size" binding:"gte=0"`
	Sha256   string `json:"sha256"`
}

type InitSessionResponse struct {
	UploadID string `json:"uploadId"`
}

type PartResponse struct {
	UploadID   string `json:"uploadId"`
	PartNumber int    `json:"partNumber"`
}

// InitSession godoc
// @Summary Open a chunked upload session
// @Tags Uploads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body InitSessionRequest true "Session metadata"
// @Success 201 {object} InitSessionResponse
// @Failure 400 {object} gin.H
// @Router /uploads/sessions [post]
func (h *UploadSessionHandler) InitSession(c *gin.Context) {
	var req InitSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	id, err := h.sessions.Init(c.Request.Context(), service.SessionInit{
		CourseID: req.CourseID,
		LessonID: req.LessonID,
		Kind:     domain.UploadKind(req.Kind),
		Filename: req.Filename,
		Mime:     req.Mime,
		Size:     req.Size,
		Sha256:   req.Sha256,
		OwnerID:  userID,
	})
	if err != nil {
		respondWithServiceError(c, h.log, err, "Failed to create upload session.")
		return
	}
	c.JSON(http.StatusCreated, InitSessionResponse{UploadID: id})
}

// PutPart godoc
// @Summary Upload one part of a session
// @Description The raw request body is the part. Re-sending a part number replaces it.
// @Tags Uploads
// @Accept octet-stream
// @Produce json
// @Security BearerAuth
// @Param uploadId path string true "Session ID"
// @Param partNumber path int true "Part number, starting at 1"
// @Success 200 {object} PartResponse
// @Failure 400 {object} gin.H
// @Failure 404 {object} gin.H
// @Failure 409 {object} gin.H
// @Failure 413 {object} gin.H
// @Router /uploads/sessions/{uploadId}/parts/{partNumber} [put]
func (h *UploadSessionHandler) PutPart(c *gin.Context) {
	uploadID := c.Param("uploadId")
	partNumber, err := strconv.Atoi(c.Param("partNumber"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, service.ErrInvalidPartNumber.Error())
		return
	}

	if err := h.sessions.PutPart(c.Request.Context(), uploadID, partNumber, c.Request.Body); err != nil {
		respondWithServiceError(c, h.log, err, "Failed to store part.")
		return
	}
	c.JSON(http.StatusOK, PartResponse{UploadID: uploadID, PartNumber: partNumber})
}

// CompleteSession godoc
// @Summary Merge the uploaded parts
// @Tags Uploads
// @Produce json
// @Security BearerAuth
// @Param uploadId path string true "Session ID"
// @Success 200 {object} service.CompleteResult
// @Failure 400 {object} gin.H "No parts uploaded"
// @Failure 404 {object} gin.H
// @Failure 409 {object} gin.H
// @Router /uploads/sessions/{uploadId}/complete [post]
func (h *UploadSessionHandler) CompleteSession(c *gin.Context) {
	result, err := h.sessions.Complete(c.Request.Context(), c.Param("uploadId"))
	if err != nil {
		respondWithServiceError(c, h.log, err, "Failed to merge parts.")
		return
	}
	c.JSON(http.StatusOK, result)
}

// FinalizeSession godoc
// @Summary Move the merged file to storage
// @Tags Uploads
// @Produce json
// @Security BearerAuth
// @Param uploadId path string true "Session ID"
// @Success 200 {object} domain.MediaDescriptor
// @Failure 404 {object} gin.H
// @Failure 409 {object} gin.H
// @Router /uploads/sessions/{uploadId}/finalize [post]
func (h *UploadSessionHandler) FinalizeSession(c *gin.Context) {
	desc, err := h.sessions.Finalize(c.Request.Context(), c.Param("uploadId"))
	if err != nil {
		respondWithServiceError(c, h.log, err, "Failed to store uploaded file.")
		return
	}
	c.JSON(http.StatusOK, desc)
}

func (h *UploadSessionHandler) GetSession(c *gin.Context) {
	session, err := h.sessions.Status(c.Request.Context(), c.Param("uploadId"))
	if err != nil {
		respondWithServiceError(c, h.log, err, "Failed to read upload session.")
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *UploadSessionHandler) AbortSession(c *gin.Context) {
	if err := h.sessions.Abort(c.Request.Context(), c.Param("uploadId")); err != nil {
		respondWithServiceError(c, h.log, err, "Failed to abort upload session.")
		return
	}
	c.Status(http.StatusNoContent)
}
