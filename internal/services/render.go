package services

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ideaforge/ideaforge-backend/internal/logger"
)

// RenderService turns generated markdown into export files. Rendering is
// deterministic: same markdown in, same bytes out.
type RenderService interface {
	RenderPDF(title string, markdown string) ([]byte, error)
	RenderDOCX(title string, markdown string) ([]byte, error)
}

type renderService struct {
	log *logger.Logger
	md  goldmark.Markdown
}

func NewRenderService(log *logger.Logger) RenderService {
	return &renderService{
		log: log.With("service", "RenderService"),
		md:  goldmark.New(),
	}
}

// renderBlock is the flattened form both exporters consume.
type renderBlock struct {
	kind  string // heading|paragraph|bullet|code
	level int    // heading level, or list nesting depth
	text  string
}

func (rs *renderService) parseBlocks(markdown string) []renderBlock {
	source := []byte(markdown)
	doc := rs.md.Parser().Parse(text.NewReader(source))

	var blocks []renderBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			blocks = append(blocks, renderBlock{kind: "heading", level: node.Level, text: nodeText(node, source)})
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph:
			if _, inItem := node.Parent().(*ast.ListItem); inItem {
				blocks = append(blocks, renderBlock{kind: "bullet", level: listDepth(node), text: nodeText(node, source)})
			} else {
				blocks = append(blocks, renderBlock{kind: "paragraph", text: nodeText(node, source)})
			}
			return ast.WalkSkipChildren, nil
		case *ast.TextBlock:
			if _, inItem := node.Parent().(*ast.ListItem); inItem {
				blocks = append(blocks, renderBlock{kind: "bullet", level: listDepth(node), text: nodeText(node, source)})
				return ast.WalkSkipChildren, nil
			}
		case *ast.FencedCodeBlock:
			blocks = append(blocks, renderBlock{kind: "code", text: codeText(node, source)})
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock:
			blocks = append(blocks, renderBlock{kind: "code", text: codeText(node, source)})
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return blocks
}

func nodeText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := child.(*ast.Text); ok {
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

func codeText(n interface{ Lines() *text.Segments }, source []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func listDepth(n ast.Node) int {
	depth := 0
	for p := n.Parent(); p != nil; p = p.Parent() {
		if _, ok := p.(*ast.List); ok {
			depth++
		}
	}
	return depth
}

func (rs *renderService) RenderPDF(title string, markdown string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	// Fixed creation date keeps output byte-stable across runs.
	pdf.SetCreationDate(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 9, title, "", "L", false)
	pdf.Ln(4)

	for _, b := range rs.parseBlocks(markdown) {
		switch b.kind {
		case "heading":
			size := 16.0 - float64(b.level)
			if size < 10 {
				size = 10
			}
			pdf.Ln(2)
			pdf.SetFont("Helvetica", "B", size)
			pdf.MultiCell(0, 7, b.text, "", "L", false)
		case "bullet":
			pdf.SetFont("Helvetica", "", 11)
			indent := float64(b.level) * 5
			pdf.SetX(20 + indent)
			pdf.MultiCell(0, 6, "- "+b.text, "", "L", false)
		case "code":
			pdf.SetFont("Courier", "", 9)
			pdf.MultiCell(0, 5, b.text, "", "L", false)
			pdf.Ln(1)
		default:
			pdf.SetFont("Helvetica", "", 11)
			pdf.MultiCell(0, 6, b.text, "", "L", false)
			pdf.Ln(1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf output: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderDOCX writes a minimal WordprocessingML package. No Go library in our
// stack generates docx from scratch under a permissive license, so the three
// required parts are assembled directly.
func (rs *renderService) RenderDOCX(title string, markdown string) ([]byte, error) {
	var doc strings.Builder
	doc.WriteString(xml.Header)
	doc.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	doc.WriteString(docxParagraph(title, "Title", 0))
	for _, b := range rs.parseBlocks(markdown) {
		switch b.kind {
		case "heading":
			doc.WriteString(docxParagraph(b.text, fmt.Sprintf("Heading%d", b.level), 0))
		case "bullet":
			doc.WriteString(docxParagraph("- "+b.text, "", b.level))
		case "code":
			for _, line := range strings.Split(b.text, "\n") {
				doc.WriteString(docxParagraph(line, "Code", 0))
			}
		default:
			doc.WriteString(docxParagraph(b.text, "", 0))
		}
	}
	doc.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	// Fixed mod time keeps the zip byte-stable.
	fixed := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", xml.Header + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`},
		{"_rels/.rels", xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`},
		{"word/document.xml", doc.String()},
	}
	for _, part := range parts {
		header := &zip.FileHeader{Name: part.name, Method: zip.Deflate, Modified: fixed}
		w, err := zw.CreateHeader(header)
		if err != nil {
			return nil, fmt.Errorf("docx create %s: %w", part.name, err)
		}
		if _, err := w.Write([]byte(part.content)); err != nil {
			return nil, fmt.Errorf("docx write %s: %w", part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("docx close: %w", err)
	}
	return buf.Bytes(), nil
}

func docxParagraph(textContent, style string, indent int) string {
	var sb strings.Builder
	sb.WriteString(`<w:p>`)
	if style != "" || indent > 0 {
		sb.WriteString(`<w:pPr>`)
		if style != "" {
			sb.WriteString(`<w:pStyle w:val="` + style + `"/>`)
		}
		if indent > 0 {
			sb.WriteString(fmt.Sprintf(`<w:ind w:left="%d"/>`, indent*360))
		}
		sb.WriteString(`</w:pPr>`)
	}
	sb.WriteString(`<w:r><w:t xml:space="preserve">`)
	_ = xml.EscapeText(&sb, []byte(textContent))
	sb.WriteString(`</w:t></w:r></w:p>`)
	return sb.String()
}
