package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ideaforge/ideaforge-backend/internal/apierr"
	"github.com/ideaforge/ideaforge-backend/internal/repos"
)

type GenerationRunHandler struct {
	runs repos.GenerationRunRepo
}

func NewGenerationRunHandler(runs repos.GenerationRunRepo) *GenerationRunHandler {
	return &GenerationRunHandler{runs: runs}
}

// GET /api/generation-runs/:id
func (h *GenerationRunHandler) Get(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	runID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	run, err := h.runs.GetByID(c.Request.Context(), nil, runID)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	if run == nil || run.UserID != userID {
		RespondAPIError(c, apierr.NotFound("generation run"))
		return
	}
	RespondOK(c, gin.H{"run": run})
}
