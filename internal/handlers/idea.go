package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ideaforge/ideaforge-backend/internal/requestdata"
	"github.com/ideaforge/ideaforge-backend/internal/services"
)

type IdeaHandler struct {
	ideas        services.IdeaService
	validation   services.ValidationService
	blueprint    services.BlueprintService
	materializer services.MaterializerService
}

func NewIdeaHandler(
	ideas services.IdeaService,
	validation services.ValidationService,
	blueprint services.BlueprintService,
	materializer services.MaterializerService,
) *IdeaHandler {
	return &IdeaHandler{
		ideas:        ideas,
		validation:   validation,
		blueprint:    blueprint,
		materializer: materializer,
	}
}

func requestUserID(c *gin.Context) (uuid.UUID, bool) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, false
	}
	return rd.UserID, true
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", fmt.Errorf("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

// POST /api/ideas
func (h *IdeaHandler) Submit(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	idea, err := h.ideas.Submit(c.Request.Context(), userID, body.Text)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"idea": idea})
}

// GET /api/ideas
func (h *IdeaHandler) List(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	ideas, err := h.ideas.List(c.Request.Context(), userID)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"ideas": ideas})
}

// GET /api/ideas/:id
func (h *IdeaHandler) Get(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	ideaID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	idea, artifacts, err := h.ideas.Get(c.Request.Context(), userID, ideaID)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"idea": idea, "artifacts": artifacts})
}

// POST /api/ideas/:id/clarifications
func (h *IdeaHandler) AnswerClarifications(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	ideaID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Answers []string `json:"answers"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	idea, err := h.ideas.AnswerClarifications(c.Request.Context(), userID, ideaID, body.Answers)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"idea": idea})
}

// POST /api/ideas/:id/validate
func (h *IdeaHandler) Validate(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	ideaID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	run, err := h.validation.EnqueueValidation(c.Request.Context(), userID, ideaID)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondAccepted(c, gin.H{"run": run})
}

// GET /api/ideas/:id/validation
func (h *IdeaHandler) GetValidation(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	ideaID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	report, err := h.validation.GetReport(c.Request.Context(), userID, ideaID)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"report": report})
}

// POST /api/ideas/:id/validation/regenerate
func (h *IdeaHandler) RegenerateValidationField(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	ideaID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Field string `json:"field"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	report, err := h.validation.RegenerateField(c.Request.Context(), userID, ideaID, body.Field)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"report": report})
}

// POST /api/ideas/:id/blueprint
func (h *IdeaHandler) GenerateBlueprint(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	ideaID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	artifacts, err := h.blueprint.Generate(c.Request.Context(), userID, ideaID)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"artifacts": artifacts})
}

// POST /api/ideas/:id/convert
func (h *IdeaHandler) Convert(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	ideaID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var body services.ConvertRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	project, err := h.materializer.ConvertIdea(c.Request.Context(), userID, ideaID, body)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"project": project})
}
