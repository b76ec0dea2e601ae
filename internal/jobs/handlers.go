package jobs

import (
	"fmt"

	"github.com/ideaforge/ideaforge-backend/internal/services"
	"github.com/ideaforge/ideaforge-backend/internal/types"
)

// ValidationGenerateHandler runs the full validation report generation for
// an idea and advances it to VALIDATED.
type ValidationGenerateHandler struct {
	Validation services.ValidationService
}

func (h *ValidationGenerateHandler) Type() string { return types.JobTypeValidationGenerate }

func (h *ValidationGenerateHandler) Run(jc *Context) error {
	ideaID, ok := jc.PayloadUUID("idea_id")
	if !ok {
		return fmt.Errorf("payload missing idea_id")
	}
	jc.Progress("generating", 10)
	if err := h.Validation.GenerateReport(jc.Ctx, ideaID); err != nil {
		return err
	}
	jc.Progress("persisted", 90)
	return nil
}

// DocumentGenerateHandler produces one pipeline document, its exports, and
// the COMPLETED artifact row.
type DocumentGenerateHandler struct {
	Documents services.DocumentService
}

func (h *DocumentGenerateHandler) Type() string { return types.JobTypeDocumentGenerate }

func (h *DocumentGenerateHandler) Run(jc *Context) error {
	ideaID, ok := jc.PayloadUUID("idea_id")
	if !ok {
		return fmt.Errorf("payload missing idea_id")
	}
	docType := types.ArtifactType(jc.PayloadString("doc_type"))
	if types.DocumentIndex(docType) < 0 {
		return fmt.Errorf("payload has unknown doc_type %q", docType)
	}
	answers := jc.PayloadStrings("answers")

	jc.Progress("generating", 10)
	return h.Documents.Generate(jc.Ctx, ideaID, docType, answers)
}
