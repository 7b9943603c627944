package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"frequency/logger"
	"frequency/narrative"
)

// ContentLister reports what a user can currently reach.
type ContentLister interface {
	AvailableContent(ctx context.Context, userID string) (*narrative.Available, error)
}

type ContentHandler struct {
	narrative ContentLister
	log       *logger.Logger
}

func NewContentHandler(narrative ContentLister, log *logger.Logger) *ContentHandler {
	return &ContentHandler{narrative: narrative, log: log.With("service", "ContentHandler")}
}

// AvailableContent is a diagnostics view of the user's unlocked characters,
// signals and frequencies.
func (h *ContentHandler) AvailableContent(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	userID := c.Param("userId")
	available, err := h.narrative.AvailableContent(ctx, userID)
	if err != nil {
		h.log.Error("available content failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch content"})
		return
	}
	c.JSON(http.StatusOK, available)
}
