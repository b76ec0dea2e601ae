package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ideaforge/ideaforge-backend/internal/apierr"
	"github.com/ideaforge/ideaforge-backend/internal/logger"
	"github.com/ideaforge/ideaforge-backend/internal/repos"
	"github.com/ideaforge/ideaforge-backend/internal/sse"
	"github.com/ideaforge/ideaforge-backend/internal/types"
)

// documentTitles drive prompts and export headings per pipeline document.
var documentTitles = map[types.ArtifactType]string{
	types.ArtifactPRD:                "Product Requirements Document",
	types.ArtifactAppFlow:            "App Flow",
	types.ArtifactTechStack:          "Tech Stack",
	types.ArtifactFrontendGuidelines: "Frontend Guidelines",
	types.ArtifactBackendSchema:      "Backend Schema",
	types.ArtifactImplementationPlan: "Implementation Plan",
}

const documentSystemPrompt = `You write planning documents for software
projects. Produce a complete, well-structured markdown document with clear
headings. Ground everything in the provided idea, validation report, and
earlier documents; stay consistent with them. No preamble before the first
heading.`

const documentQuestionsPrompt = `Before writing the document, ask 2-3 short
questions whose answers would most improve it. Only ask what the provided
context does not already answer.`

var documentQuestionsSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"questions": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
	"required":             []string{"questions"},
	"additionalProperties": false,
}

type DocumentLinks struct {
	Markdown string `json:"markdown"`
	PDF      string `json:"pdf"`
	Docx     string `json:"docx"`
}

type DocumentService interface {
	// EnqueueGeneration gate-checks and creates a generation run. The
	// artifact row is upserted PENDING so the client has a poll target.
	EnqueueGeneration(ctx context.Context, userID uuid.UUID, ideaID uuid.UUID, docType types.ArtifactType, answers []string) (*types.GenerationRun, error)
	// Generate is the job body: gather context, generate markdown, render
	// and upload exports, then mark the artifact COMPLETED.
	Generate(ctx context.Context, ideaID uuid.UUID, docType types.ArtifactType, answers []string) error
	GetQuestions(ctx context.Context, userID uuid.UUID, ideaID uuid.UUID, docType types.ArtifactType) ([]string, error)
	Chat(ctx context.Context, userID uuid.UUID, ideaID uuid.UUID, docType types.ArtifactType, message string) (*types.Artifact, error)
	RegenerateSection(ctx context.Context, userID uuid.UUID, ideaID uuid.UUID, docType types.ArtifactType, section string, instructions string) (*types.Artifact, error)
	Links(ctx context.Context, userID uuid.UUID, ideaID uuid.UUID, docType types.ArtifactType) (*DocumentLinks, error)
}

type documentService struct {
	log       *logger.Logger
	db        *gorm.DB
	ideas     IdeaService
	artifacts repos.ArtifactRepo
	reports   repos.ValidationReportRepo
	runs      repos.GenerationRunRepo
	ai        AIClient
	renderer  RenderService
	bucket    BucketService
	notifier  Notifier
}

func NewDocumentService(
	log *logger.Logger,
	db *gorm.DB,
	ideas IdeaService,
	artifacts repos.ArtifactRepo,
	reports repos.ValidationReportRepo,
	runs repos.GenerationRunRepo,
	ai AIClient,
	renderer RenderService,
	bucket BucketService,
	notifier Notifier,
) DocumentService {
	return &documentService{
		log:       log.With("service", "DocumentService"),
		db:        db,
		ideas:     ideas,
		artifacts: artifacts,
		reports:   reports,
		runs:      runs,
		ai:        ai,
		renderer:  renderer,
		bucket:    bucket,
		notifier:  notifier,
	}
}

// checkPredecessor enforces the pipeline gate: only the immediate
// predecessor must be COMPLETED, earlier gaps are not re-checked.
func (s *documentService) checkPredecessor(ctx context.Context, ideaID uuid.UUID, docType types.ArtifactType) error {
	idx := types.DocumentIndex(docType)
	if idx < 0 {
		return apierr.InvalidInput(fmt.Sprintf("unknown document type %q", docType))
	}
	if idx == 0 {
		return nil
	}
	prev := types.DocumentOrder[idx-1]
	artifact, err := s.artifacts.GetByIdeaAndType(ctx, nil, ideaID, prev)
	if err != nil {
		return err
	}
	if artifact == nil || artifact.Status != types.ArtifactStatusCompleted {
		return apierr.DependencyNotMet(string(prev))
	}
	return nil
}

func (s *documentService) EnqueueGeneration(ctx context.Context, userID uuid.UUID, ideaID uuid.UUID, docType types.ArtifactType, answers []string) (*types.GenerationRun, error) {
	if _, err := s.ideas.LoadOwned(ctx, nil, userID, ideaID); err != nil {
		return nil, err
	}
	if err := s.checkPredecessor(ctx, ideaID, docType); err != nil {
		return nil, err
	}

	run := &types.GenerationRun{
		ID:      uuid.New(),
		UserID:  userID,
		IdeaID:  ideaID,
		JobType: types.JobTypeDocumentGenerate,
		Status:  types.RunStatusQueued,
		Stage:   "queued",
		Payload: mustJSON(map[string]any{
			"idea_id":  ideaID.String(),
			"doc_type": string(docType),
			"answers":  answers,
		}),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.artifacts.Upsert(ctx, tx, &types.Artifact{
			IdeaID:      ideaID,
			Type:        docType,
			Status:      types.ArtifactStatusPending,
			ChatHistory: types.EncodeChatHistory(nil),
		}); err != nil {
			return err
		}
		_, err := s.runs.Create(ctx, tx, []*types.GenerationRun{run})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue document run: %w", err)
	}
	return run, nil
}

func (s *documentService) Generate(ctx context.Context, ideaID uuid.UUID, docType types.ArtifactType, answers []string) error {
	idea, err := s.loadIdea(ctx, ideaID)
	if err != nil {
		return err
	}
	if err := s.checkPredecessor(ctx, ideaID, docType); err != nil {
		return err
	}
	if err := s.artifacts.UpdateFieldsByKey(ctx, nil, ideaID, docType, map[string]interface{}{
		"status": types.ArtifactStatusGenerating,
	}); err != nil {
		return err
	}

	markdown, genErr := s.generateMarkdown(ctx, idea, docType, answers)
	if genErr == nil {
		genErr = s.finishDocument(ctx, idea, docType, markdown, answers)
	}
	if genErr != nil {
		// The row must not stay GENERATING; the client needs a terminal state
		// to re-invoke against.
		if updErr := s.artifacts.UpdateFieldsByKey(ctx, nil, ideaID, docType, map[string]interface{}{
			"status": types.ArtifactStatusFailed,
		}); updErr != nil {
			s.log.Error("failed to mark artifact failed", "idea_id", ideaID, "type", docType, "error", updErr)
		}
		s.notifier.Notify(ctx, idea.UserID, sse.SSEEventGenerationFailed, map[string]any{
			"idea_id": ideaID.String(),
			"type":    string(docType),
		})
		return apierr.GenerationFailed(genErr)
	}

	s.notifier.Notify(ctx, idea.UserID, sse.SSEEventGenerationCompleted, map[string]any{
		"idea_id": ideaID.String(),
		"type":    string(docType),
	})
	return nil
}

func (s *documentService) generateMarkdown(ctx context.Context, idea *types.Idea, docType types.ArtifactType, answers []string) (string, error) {
	docContext, err := s.gatherContext(ctx, idea, docType)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString(docContext)
	if len(answers) > 0 {
		sb.WriteString("\nAuthor answers to pre-generation questions:\n")
		for _, a := range answers {
			sb.WriteString("- " + a + "\n")
		}
	}
	fmt.Fprintf(&sb, "\nWrite the %s.\n", documentTitles[docType])
	markdown, err := s.ai.GenerateText(ctx, documentSystemPrompt, sb.String())
	if err != nil {
		return "", fmt.Errorf("document generation: %w", err)
	}
	if strings.TrimSpace(markdown) == "" {
		return "", fmt.Errorf("document generation returned empty output")
	}
	return markdown, nil
}

// finishDocument renders and uploads all three exports before the artifact
// flips to COMPLETED, so COMPLETED always implies downloadable files. The
// generation exchange is appended to the document's chat history so later
// revisions see how the document came to be.
func (s *documentService) finishDocument(ctx context.Context, idea *types.Idea, docType types.ArtifactType, markdown string, answers []string) error {
	title := documentTitles[docType]
	pdf, err := s.renderer.RenderPDF(title, markdown)
	if err != nil {
		return err
	}
	docx, err := s.renderer.RenderDOCX(title, markdown)
	if err != nil {
		return err
	}

	mdKey := documentKey(idea.ID, docType, "md")
	pdfKey := documentKey(idea.ID, docType, "pdf")
	docxKey := documentKey(idea.ID, docType, "docx")
	if err := s.bucket.UploadFile(ctx, mdKey, strings.NewReader(markdown), "text/markdown"); err != nil {
		return err
	}
	if err := s.bucket.UploadFile(ctx, pdfKey, bytes.NewReader(pdf), "application/pdf"); err != nil {
		return err
	}
	if err := s.bucket.UploadFile(ctx, docxKey, bytes.NewReader(docx), "application/vnd.openxmlformats-officedocument.wordprocessingml.document"); err != nil {
		return err
	}

	existing, err := s.artifacts.GetByIdeaAndType(ctx, nil, idea.ID, docType)
	if err != nil {
		return err
	}
	var history []types.ChatMessage
	if existing != nil {
		history = types.DecodeChatHistory(existing.ChatHistory)
	}
	request := fmt.Sprintf("generate the %s", title)
	if len(answers) > 0 {
		request += "; author answers: " + strings.Join(answers, "; ")
	}
	history = append(history,
		types.ChatMessage{Role: "user", Text: request},
		types.ChatMessage{Role: "assistant", Text: summarizeRevision(markdown)},
	)

	return s.artifacts.UpdateFieldsByKey(ctx, nil, idea.ID, docType, map[string]interface{}{
		"content":      markdown,
		"status":       types.ArtifactStatusCompleted,
		"markdown_key": mdKey,
		"pdf_key":      pdfKey,
		"docx_key":     docxKey,
		"chat_history": types.EncodeChatHistory(history),
	})
}

func (s *documentService) gatherContext(ctx context.Context, idea *types.Idea, docType types.ArtifactType) (string, error) {
	var sb strings.Builder
	sb.WriteString("Product idea:\n")
	sb.WriteString(ideaDescription(idea))
	sb.WriteString("\n")

	report, err := s.reports.GetByIdeaID(ctx, nil, idea.ID)
	if err != nil {
		return "", err
	}
	if report != nil {
		sb.WriteString("\nValidation report:\n")
		appendJSONSection(&sb, "market_feasibility", report.MarketFeasibility)
		appendJSONSection(&sb, "improvements", report.Improvements)
		appendJSONSection(&sb, "core_features", report.CoreFeatures)
		appendJSONSection(&sb, "tech_stack", report.TechStack)
		appendJSONSection(&sb, "pricing_model", report.PricingModel)
	}

	blueprint, err := s.artifacts.GetByIdeaAndType(ctx, nil, idea.ID, types.ArtifactDiagramUserFlow)
	if err != nil {
		return "", err
	}
	if blueprint != nil && len(blueprint.ContentJSON) > 0 {
		sb.WriteString("\nUser flow blueprint:\n")
		sb.Write(blueprint.ContentJSON)
		sb.WriteString("\n")
	}

	for i := 0; i < types.DocumentIndex(docType); i++ {
		prev, err := s.artifacts.GetByIdeaAndType(ctx, nil, idea.ID, types.DocumentOrder[i])
		if err != nil {
			return "", err
		}
		if prev == nil || prev.Status != types.ArtifactStatusCompleted {
			continue
		}
		fmt.Fprintf(&sb, "\nEarlier document (%s):\n%s\n", documentTitles[prev.Type], prev.Content)
	}
	return sb.String(), nil
}

func (s *documentService) GetQuestions(ctx context.Context, userID uuid.UUID, ideaID uuid.UUID, docType types.ArtifactType) ([]string, error) {
	idea, err := s.ideas.LoadOwned(ctx, nil, userID, ideaID)
	if err != nil {
		return nil, err
	}
	if err := s.checkPredecessor(ctx, ideaID, docType); err != nil {
		return nil, err
	}
	docContext, err := s.gatherContext(ctx, idea, docType)
	if err != nil {
		return nil, err
	}
	system := documentSystemPrompt + "\n" + documentQuestionsPrompt
	user := docContext + fmt.Sprintf("\nThe document to be written: %s.\n", documentTitles[docType])
	out, err := s.ai.GenerateJSON(ctx, system, user, "document_questions", documentQuestionsSchema)
	if err != nil {
		return nil, apierr.GenerationFailed(fmt.Errorf("document question round: %w", err))
	}
	return stringSlice(out["questions"]), nil
}

func (s *documentService) Chat(ctx context.Context, userID uuid.UUID, ideaID uuid.UUID, docType types.ArtifactType, message string) (*types.Artifact, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apierr.InvalidInput("message is required")
	}
	idea, artifact, err := s.loadCompletedDocument(ctx, userID, ideaID, docType)
	if err != nil {
		return nil, err
	}

	history := types.DecodeChatHistory(artifact.ChatHistory)
	var sb strings.Builder
	fmt.Fprintf(&sb, "Current %s:\n%s\n", documentTitles[docType], artifact.Content)
	if len(history) > 0 {
		sb.WriteString("\nRevision conversation so far:\n")
		for _, m := range history {
			fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Text)
		}
	}
	fmt.Fprintf(&sb, "\nRevision request: %s\n\nReturn the full revised document in markdown.\n", message)

	revised, err := s.ai.GenerateText(ctx, documentSystemPrompt, sb.String())
	if err != nil {
		return nil, apierr.GenerationFailed(fmt.Errorf("document chat: %w", err))
	}

	history = append(history,
		types.ChatMessage{Role: "user", Text: message},
		types.ChatMessage{Role: "assistant", Text: summarizeRevision(revised)},
	)
	return s.applyRevision(ctx, idea, artifact, revised, history)
}

func (s *documentService) RegenerateSection(ctx context.Context, userID uuid.UUID, ideaID uuid.UUID, docType types.ArtifactType, section string, instructions string) (*types.Artifact, error) {
	section = strings.TrimSpace(section)
	if section == "" {
		return nil, apierr.InvalidInput("section heading is required")
	}
	idea, artifact, err := s.loadCompletedDocument(ctx, userID, ideaID, docType)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(artifact.Content, section) {
		return nil, apierr.NotFound(fmt.Sprintf("section %q", section))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Current %s:\n%s\n", documentTitles[docType], artifact.Content)
	fmt.Fprintf(&sb, "\nRewrite only the section %q", section)
	if instructions != "" {
		fmt.Fprintf(&sb, " with these instructions: %s", instructions)
	}
	sb.WriteString(".\nReturn the full document in markdown with that section replaced and everything else unchanged.\n")

	revised, err := s.ai.GenerateText(ctx, documentSystemPrompt, sb.String())
	if err != nil {
		return nil, apierr.GenerationFailed(fmt.Errorf("section regeneration: %w", err))
	}

	history := append(types.DecodeChatHistory(artifact.ChatHistory), types.ChatMessage{
		Role: "user",
		Text: fmt.Sprintf("regenerate section %q", section),
	})
	return s.applyRevision(ctx, idea, artifact, revised, history)
}

// applyRevision re-renders and re-uploads the exports under the existing
// keys, then persists content and history. Status stays COMPLETED.
func (s *documentService) applyRevision(ctx context.Context, idea *types.Idea, artifact *types.Artifact, revised string, history []types.ChatMessage) (*types.Artifact, error) {
	title := documentTitles[artifact.Type]
	pdf, err := s.renderer.RenderPDF(title, revised)
	if err != nil {
		return nil, err
	}
	docx, err := s.renderer.RenderDOCX(title, revised)
	if err != nil {
		return nil, err
	}
	if err := s.bucket.UploadFile(ctx, artifact.MarkdownKey, strings.NewReader(revised), "text/markdown"); err != nil {
		return nil, err
	}
	if err := s.bucket.UploadFile(ctx, artifact.PDFKey, bytes.NewReader(pdf), "application/pdf"); err != nil {
		return nil, err
	}
	if err := s.bucket.UploadFile(ctx, artifact.DocxKey, bytes.NewReader(docx), "application/vnd.openxmlformats-officedocument.wordprocessingml.document"); err != nil {
		return nil, err
	}
	if err := s.artifacts.UpdateFieldsByKey(ctx, nil, idea.ID, artifact.Type, map[string]interface{}{
		"content":      revised,
		"chat_history": types.EncodeChatHistory(history),
	}); err != nil {
		return nil, err
	}
	return s.artifacts.GetByIdeaAndType(ctx, nil, idea.ID, artifact.Type)
}

func (s *documentService) Links(ctx context.Context, userID uuid.UUID, ideaID uuid.UUID, docType types.ArtifactType) (*DocumentLinks, error) {
	_, artifact, err := s.loadCompletedDocument(ctx, userID, ideaID, docType)
	if err != nil {
		return nil, err
	}
	links := &DocumentLinks{}
	if links.Markdown, err = s.bucket.SignedURL(ctx, artifact.MarkdownKey); err != nil {
		return nil, err
	}
	if links.PDF, err = s.bucket.SignedURL(ctx, artifact.PDFKey); err != nil {
		return nil, err
	}
	if links.Docx, err = s.bucket.SignedURL(ctx, artifact.DocxKey); err != nil {
		return nil, err
	}
	return links, nil
}

func (s *documentService) loadCompletedDocument(ctx context.Context, userID uuid.UUID, ideaID uuid.UUID, docType types.ArtifactType) (*types.Idea, *types.Artifact, error) {
	idea, err := s.ideas.LoadOwned(ctx, nil, userID, ideaID)
	if err != nil {
		return nil, nil, err
	}
	if types.DocumentIndex(docType) < 0 {
		return nil, nil, apierr.InvalidInput(fmt.Sprintf("unknown document type %q", docType))
	}
	artifact, err := s.artifacts.GetByIdeaAndType(ctx, nil, ideaID, docType)
	if err != nil {
		return nil, nil, err
	}
	if artifact == nil {
		return nil, nil, apierr.NotFound("document")
	}
	if artifact.Status != types.ArtifactStatusCompleted {
		return nil, nil, apierr.DependencyNotMet(string(docType))
	}
	return idea, artifact, nil
}

// loadIdea skips the ownership check; job bodies run without a request user.
func (s *documentService) loadIdea(ctx context.Context, ideaID uuid.UUID) (*types.Idea, error) {
	var row types.Idea
	if err := s.db.WithContext(ctx).Where("id = ?", ideaID).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, apierr.NotFound("idea")
	}
	return &row, nil
}

func documentKey(ideaID uuid.UUID, docType types.ArtifactType, ext string) string {
	return fmt.Sprintf("ideas/%s/documents/%s.%s", ideaID, strings.ToLower(string(docType)), ext)
}

func appendJSONSection(sb *strings.Builder, name string, raw []byte) {
	if len(raw) == 0 {
		return
	}
	fmt.Fprintf(sb, "%s: %s\n", name, string(raw))
}

func summarizeRevision(revised string) string {
	const max = 280
	runes := []rune(revised)
	if len(runes) <= max {
		return revised
	}
	return string(runes[:max]) + "..."
}

func stringSlice(v any) []string {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
