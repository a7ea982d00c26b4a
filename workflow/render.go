package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/randalmurphal/blueprint/export"
	"github.com/randalmurphal/blueprint/prompt"
)

// NotAvailable marks an absent document section.
const NotAvailable = "_Not available._"

// render composes the document and exports it. A PDF failure is a warning;
// a markdown write failure fails the stage but the composed text is kept.
//
// Updates: BlueprintMarkdown, ExportedFiles
func (e *Engine) render(ctx context.Context, s State) Result {
	s.BlueprintMarkdown = Compose(s, e.opts.now())

	res, err := e.deps.Exporter.Export(ctx, s.ProjectID, s.BlueprintMarkdown)
	if res != nil {
		s.ExportedFiles = res.Files
	}
	meta := map[string]any{"length": len(s.BlueprintMarkdown)}
	if err != nil {
		r := failed(s, err)
		r.Metadata = meta
		return r
	}
	if res.PDFErr != nil {
		e.events.pdfFailed(ctx, s, res.PDFErr)
	}

	meta["markdown_file"] = res.Files[export.FormatMarkdown]
	meta["pdf_file"] = "N/A"
	if pdf, ok := res.Files[export.FormatPDF]; ok {
		meta["pdf_file"] = pdf
	}
	return completed(s, meta)
}

// Compose builds the blueprint document. Sections appear in a fixed order
// and absent ones read NotAvailable.
func Compose(s State, at time.Time) string {
	var b strings.Builder

	b.WriteString("# Implementation Blueprint\n")
	fmt.Fprintf(&b, "_Generated on %sZ_\n\n", at.UTC().Format("2006-01-02T15:04:05.000000"))

	b.WriteString("## Architecture Guide\n")
	b.WriteString(orNotAvailable(s.ArchitectureGuide))
	b.WriteString("\n\n")

	b.WriteString("## Tech Stack Implementation Guide\n")
	b.WriteString(orNotAvailable(s.TechStackGuidance))
	b.WriteString("\n\n")

	b.WriteString("## Final System Diagram\n")
	if s.SystemDiagram != nil {
		writeDiagram(&b, "System Diagram", *s.SystemDiagram)
	} else {
		b.WriteString(NotAvailable + "\n\n")
	}

	b.WriteString("## System-Level Diagrams\n")
	if order := s.DiagramOrder(); len(order) > 0 {
		for _, typ := range order {
			title := prompt.Title(typ)
			fmt.Fprintf(&b, "### %s Diagrams\n", title)
			for i, d := range s.Diagrams[typ] {
				fmt.Fprintf(&b, "#### %s Diagram %d\n", title, i+1)
				writeDiagram(&b, fmt.Sprintf("%s diagram %d", typ, i+1), d)
			}
		}
	} else {
		b.WriteString(NotAvailable + "\n\n")
	}

	b.WriteString("## Architectural Decision Records (ADRs)\n")
	if len(s.ADRs) > 0 {
		for i, adr := range s.ADRs {
			fmt.Fprintf(&b, "### ADR %d: %s\n", i+1, adr.Title)
			fmt.Fprintf(&b, "**Context:** %s\n\n", adr.Context)
			fmt.Fprintf(&b, "**Decision:** %s\n\n", adr.Decision)
			fmt.Fprintf(&b, "**Alternatives:** %s\n\n", adr.Alternatives)
			fmt.Fprintf(&b, "**Rationale:** %s\n\n", adr.Rationale)
		}
	} else {
		b.WriteString(NotAvailable + "\n")
	}

	return b.String()
}

// writeDiagram embeds an image when one was rendered, else the source.
func writeDiagram(b *strings.Builder, alt string, d Diagram) {
	if d.ImageURL != "" {
		fmt.Fprintf(b, "![%s](%s)\n\n", alt, export.LocalImageURL(d.ImageURL))
		return
	}
	b.WriteString("```plantuml\n")
	b.WriteString(strings.TrimSpace(d.Code))
	b.WriteString("\n```\n\n")
}

func orNotAvailable(text string) string {
	if strings.TrimSpace(text) == "" {
		return NotAvailable
	}
	return text
}
