package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"alcyxob/course-media/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type StreamHandler struct {
	delivery service.DeliveryService
	log      zerolog.Logger
}

func NewStreamHandler(delivery service.DeliveryService, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		delivery: delivery,
		log:      log.With().Str("component", "stream-handler").Logger(),
	}
}

type LinkResponse struct {
	URL      string `json:"url"`
	Provider string `json:"provider"`
}

// StreamMedia godoc
// @Summary Stream stored media
// @Description Local files are served with HTTP Range support. Object storage and external links are answered with a URL instead of bytes.
// @Tags Media
// @Produce octet-stream
// @Produce json
// @Security BearerAuth
// @Param key path string true "Storage key"
// @Param url query string false "External link, used instead of the path key"
// @Param Range header string false "bytes=start-end"
// @Success 200 "Full content, or LinkResponse JSON"
// @Success 206 "Partial content"
// @Failure 404 {object} gin.H
// @Router /media/stream/{key} [get]
func (h *StreamHandler) StreamMedia(c *gin.Context) {
	// Links carry their own query strings, which cannot ride in the path.
	key := c.Query("url")
	if key == "" {
		key = strings.TrimPrefix(c.Param("key"), "/")
	}

	d, err := h.delivery.Stream(c.Request.Context(), key, c.GetHeader("Range"))
	if err != nil {
		respondWithServiceError(c, h.log, err, "Failed to stream media.")
		return
	}

	switch d.Mode {
	case service.DeliveryExternal, service.DeliveryRemote:
		c.JSON(http.StatusOK, LinkResponse{URL: d.URL, Provider: string(d.Provider)})
		return
	}
	defer d.Body.Close()

	header := c.Writer.Header()
	header.Set("Accept-Ranges", "bytes")
	header.Set("Content-Type", d.ContentType)
	header.Set("Content-Length", strconv.FormatInt(d.Length(), 10))

	status := http.StatusOK
	if d.Mode == service.DeliveryPartial {
		header.Set("Content-Range", d.ContentRange())
		status = http.StatusPartialContent
	}
	c.Status(status)

	if c.Request.Method == http.MethodHead {
		return
	}
	if _, err := io.CopyN(c.Writer, d.Body, d.Length()); err != nil {
		// Headers are already sent; usually the client went away.
		h.log.Debug().Err(err).Str("key", key).Msg("stream interrupted")
	}
}
