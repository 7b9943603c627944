package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"frequency/logger"
	"frequency/models"
)

// FrequencyMapper is the part of the frequency directory the map needs.
type FrequencyMapper interface {
	FrequencyMap(ctx context.Context, userID string) ([]models.FrequencyInfo, error)
}

type FrequencyMapResponse struct {
	Frequencies []models.FrequencyInfo `json:"frequencies"`
	Count       int                    `json:"count"`
}

type FrequencyHandler struct {
	directory FrequencyMapper
	log       *logger.Logger
}

func NewFrequencyHandler(directory FrequencyMapper, log *logger.Logger) *FrequencyHandler {
	return &FrequencyHandler{directory: directory, log: log.With("service", "FrequencyHandler")}
}

// FrequencyMap lists discoverable slots. With ?userId= the slots that user
// has not unlocked are left out.
func (h *FrequencyHandler) FrequencyMap(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	userID := c.Query("userId")
	slots, err := h.directory.FrequencyMap(ctx, userID)
	if err != nil {
		h.log.Error("frequency map failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch frequencies"})
		return
	}

	c.JSON(http.StatusOK, FrequencyMapResponse{
		Frequencies: slots,
		Count:       len(slots),
	})
}
