package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"frequency/db"
	"frequency/logger"
	"frequency/models"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

// HistoryStore is the slice of conversation storage the history page reads.
type HistoryStore interface {
	FindConversation(ctx context.Context, userID, characterID string) (*models.Conversation, error)
	MessageHistory(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, int64, error)
}

type HistoryMessage struct {
	Role      models.Role `json:"role"`
	Content   string      `json:"content"`
	Index     int         `json:"index"`
	Timestamp time.Time   `json:"timestamp"`
}

type HistoryResponse struct {
	CharacterID string           `json:"character_id"`
	Messages    []HistoryMessage `json:"messages"`
	Total       int64            `json:"total"`
	HasMore     bool             `json:"has_more"`
}

type HistoryHandler struct {
	store HistoryStore
	log   *logger.Logger
}

func NewHistoryHandler(store HistoryStore, log *logger.Logger) *HistoryHandler {
	return &HistoryHandler{store: store, log: log.With("service", "HistoryHandler")}
}

// History pages through one user's conversation with a character, oldest first.
func (h *HistoryHandler) History(c *gin.Context) {
	characterID := c.Param("characterId")
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	resp := HistoryResponse{CharacterID: characterID, Messages: []HistoryMessage{}}

	conv, err := h.store.FindConversation(ctx, userID, characterID)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusOK, resp)
		return
	}
	if err != nil {
		h.log.Error("find conversation failed", "user_id", userID, "character_id", characterID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}

	messages, total, err := h.store.MessageHistory(ctx, conv.ID, limit, offset)
	if err != nil {
		h.log.Error("message history failed", "conversation_id", conv.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}

	for _, m := range messages {
		resp.Messages = append(resp.Messages, HistoryMessage{
			Role:      m.Role,
			Content:   m.Content,
			Index:     m.Index,
			Timestamp: m.CreatedAt,
		})
	}
	resp.Total = total
	resp.HasMore = int64(offset+limit) < total
	c.JSON(http.StatusOK, resp)
}
