package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ideaforge/ideaforge-backend/internal/sse"
)

type SSEHandler struct {
	hub *sse.SSEHub
}

func NewSSEHandler(hub *sse.SSEHub) *SSEHandler {
	return &SSEHandler{hub: hub}
}

// GET /api/sse/stream
func (h *SSEHandler) Stream(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	client := h.hub.NewSSEClient(userID)
	defer h.hub.CloseClient(client)
	h.hub.ServeHTTP(c.Writer, c.Request, client)
}
