package services

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/ideaforge/ideaforge-backend/internal/repos/testutil"
)

const renderFixture = "# Roadmap\n\nAn overview paragraph.\n\n## Phase one\n\n- first step\n- second step\n  - nested step\n\n```\ncode sample\n```\n"

func TestParseBlocks(t *testing.T) {
	rs := NewRenderService(testutil.Logger(t)).(*renderService)

	blocks := rs.parseBlocks(renderFixture)
	want := []renderBlock{
		{kind: "heading", level: 1, text: "Roadmap"},
		{kind: "paragraph", text: "An overview paragraph."},
		{kind: "heading", level: 2, text: "Phase one"},
		{kind: "bullet", level: 1, text: "first step"},
		{kind: "bullet", level: 1, text: "second step"},
		{kind: "bullet", level: 2, text: "nested step"},
		{kind: "code", text: "code sample"},
	}
	if len(blocks) != len(want) {
		t.Fatalf("got %d blocks, want %d: %+v", len(blocks), len(want), blocks)
	}
	for i, b := range blocks {
		if b != want[i] {
			t.Fatalf("block %d = %+v, want %+v", i, b, want[i])
		}
	}
}

func TestRenderPDFIsDeterministic(t *testing.T) {
	rs := NewRenderService(testutil.Logger(t))

	first, err := rs.RenderPDF("Roadmap", renderFixture)
	if err != nil {
		t.Fatalf("RenderPDF: %v", err)
	}
	if !bytes.HasPrefix(first, []byte("%PDF")) {
		t.Fatalf("not a pdf: %q", first[:8])
	}

	second, err := rs.RenderPDF("Roadmap", renderFixture)
	if err != nil {
		t.Fatalf("RenderPDF #2: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("same input must render byte-identical output")
	}
}

func TestRenderDOCX(t *testing.T) {
	rs := NewRenderService(testutil.Logger(t))

	first, err := rs.RenderDOCX("Roadmap", renderFixture)
	if err != nil {
		t.Fatalf("RenderDOCX: %v", err)
	}
	second, err := rs.RenderDOCX("Roadmap", renderFixture)
	if err != nil {
		t.Fatalf("RenderDOCX #2: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("same input must render byte-identical output")
	}

	reader, err := zip.NewReader(bytes.NewReader(first), int64(len(first)))
	if err != nil {
		t.Fatalf("output is not a zip: %v", err)
	}
	var document string
	names := map[string]bool{}
	for _, f := range reader.File {
		names[f.Name] = true
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				t.Fatalf("open document.xml: %v", err)
			}
			data, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				t.Fatalf("read document.xml: %v", err)
			}
			document = string(data)
		}
	}
	for _, name := range []string{"[Content_Types].xml", "_rels/.rels", "word/document.xml"} {
		if !names[name] {
			t.Fatalf("missing archive entry %s (have %v)", name, names)
		}
	}
	for _, text := range []string{"Roadmap", "An overview paragraph.", "first step", "code sample"} {
		if !strings.Contains(document, text) {
			t.Fatalf("document.xml missing %q", text)
		}
	}
}

func TestRenderDOCXEscapesMarkup(t *testing.T) {
	rs := NewRenderService(testutil.Logger(t))

	out, err := rs.RenderDOCX("Spec", "Compare a < b && \"quoted\" text.\n")
	if err != nil {
		t.Fatalf("RenderDOCX: %v", err)
	}
	reader, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	if err != nil {
		t.Fatalf("output is not a zip: %v", err)
	}
	for _, f := range reader.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, _ := f.Open()
		data, _ := io.ReadAll(rc)
		rc.Close()
		if strings.Contains(string(data), "a < b") {
			t.Fatalf("raw markup leaked into document.xml")
		}
		if !strings.Contains(string(data), "a &lt; b") {
			t.Fatalf("escaped text missing from document.xml")
		}
		return
	}
	t.Fatalf("word/document.xml not found")
}
