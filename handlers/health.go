package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SessionCounter reports open radio sessions.
type SessionCounter interface {
	Len() int
}

type HealthHandler struct {
	sessions SessionCounter
	store    string
}

// NewHealthHandler reports store as the persistence mode ("mongodb" or "memory").
func NewHealthHandler(sessions SessionCounter, store string) *HealthHandler {
	return &HealthHandler{sessions: sessions, store: store}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"store":    h.store,
		"sessions": h.sessions.Len(),
	})
}
