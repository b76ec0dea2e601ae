package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ideaforge/ideaforge-backend/internal/services"
	"github.com/ideaforge/ideaforge-backend/internal/types"
)

type DocumentHandler struct {
	documents services.DocumentService
}

func NewDocumentHandler(documents services.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

func docTypeParam(c *gin.Context) (types.ArtifactType, bool) {
	t := types.ArtifactType(strings.ToUpper(c.Param("type")))
	if types.DocumentIndex(t) < 0 {
		RespondError(c, http.StatusBadRequest, "invalid_input", fmt.Errorf("unknown document type %q", c.Param("type")))
		return "", false
	}
	return t, true
}

// POST /api/ideas/:id/documents/:type/questions
func (h *DocumentHandler) GetQuestions(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	ideaID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	docType, ok := docTypeParam(c)
	if !ok {
		return
	}
	questions, err := h.documents.GetQuestions(c.Request.Context(), userID, ideaID, docType)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"questions": questions})
}

// POST /api/ideas/:id/documents/:type
func (h *DocumentHandler) Generate(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	ideaID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	docType, ok := docTypeParam(c)
	if !ok {
		return
	}
	var body struct {
		Answers []string `json:"answers"`
	}
	// Body is optional; only a present-but-malformed one is rejected.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_input", err)
			return
		}
	}
	run, err := h.documents.EnqueueGeneration(c.Request.Context(), userID, ideaID, docType, body.Answers)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondAccepted(c, gin.H{"run": run})
}

// POST /api/ideas/:id/documents/:type/chat
func (h *DocumentHandler) Chat(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	ideaID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	docType, ok := docTypeParam(c)
	if !ok {
		return
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	artifact, err := h.documents.Chat(c.Request.Context(), userID, ideaID, docType, body.Message)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"artifact": artifact})
}

// POST /api/ideas/:id/documents/:type/section
func (h *DocumentHandler) RegenerateSection(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	ideaID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	docType, ok := docTypeParam(c)
	if !ok {
		return
	}
	var body struct {
		Section      string `json:"section"`
		Instructions string `json:"instructions"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	artifact, err := h.documents.RegenerateSection(c.Request.Context(), userID, ideaID, docType, body.Section, body.Instructions)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"artifact": artifact})
}

// GET /api/ideas/:id/documents/:type/links
func (h *DocumentHandler) Links(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	ideaID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	docType, ok := docTypeParam(c)
	if !ok {
		return
	}
	links, err := h.documents.Links(c.Request.Context(), userID, ideaID, docType)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"links": links})
}
