package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ideaforge/ideaforge-backend/internal/services"
)

type FeatureHandler struct {
	features services.FeatureService
}

func NewFeatureHandler(features services.FeatureService) *FeatureHandler {
	return &FeatureHandler{features: features}
}

// GET /api/features/:id
func (h *FeatureHandler) Get(c *gin.Context) {
	if _, ok := requestUserID(c); !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	featureID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	feature, err := h.features.Get(c.Request.Context(), featureID)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"feature": feature})
}

// PATCH /api/features/:id
func (h *FeatureHandler) Update(c *gin.Context) {
	if _, ok := requestUserID(c); !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	featureID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	feature, err := h.features.Update(c.Request.Context(), featureID, body)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"feature": feature})
}

// PATCH /api/features/:id/status
func (h *FeatureHandler) UpdateStatus(c *gin.Context) {
	if _, ok := requestUserID(c); !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	featureID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	feature, err := h.features.UpdateStatus(c.Request.Context(), featureID, body.Status)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"feature": feature})
}
