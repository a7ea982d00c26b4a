package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/randalmurphal/blueprint/artifact"
	"github.com/randalmurphal/blueprint/diagram"
	"github.com/randalmurphal/blueprint/oracle"
	"github.com/randalmurphal/blueprint/prompt"
	"github.com/randalmurphal/blueprint/task"
)

// generateDiagrams attaches image references to the project's stored
// diagrams, keeping only the types allowed for the paradigm.
//
// Updates: Diagrams (never nil after this stage)
func (e *Engine) generateDiagrams(ctx context.Context, s State) Result {
	s.Diagrams = map[string][]Diagram{}
	if e.deps.Diagrams == nil {
		return failedBecause(s, ErrNoDiagrams, ReasonNoDiagrams)
	}

	records, err := e.deps.Diagrams.ListDiagrams(ctx, s.ProjectID)
	if err != nil {
		return failed(s, fmt.Errorf("list diagrams: %w", err))
	}
	if len(records) == 0 {
		return failedBecause(s, ErrNoDiagrams, ReasonNoDiagrams)
	}

	allowed := make(map[string]bool)
	for _, typ := range artifact.DiagramTypes(s.ParadigmOrDefault()) {
		allowed[typ] = true
	}

	count := 0
	for _, rec := range records {
		if !allowed[rec.Type] {
			continue
		}
		d := Diagram{Code: rec.Code}
		d.ImageURL = e.renderDiagram(ctx, s, rec.Type, rec.Code)
		s.Diagrams[rec.Type] = append(s.Diagrams[rec.Type], d)
		count++
	}

	return completed(s, map[string]any{"count": count})
}

// generateSystemDiagram asks the oracle for a component diagram of the
// selected tech stack.
//
// Prerequisites: SelectedTechStack
// Updates: SystemDiagram, Usage
func (e *Engine) generateSystemDiagram(ctx context.Context, s State) Result {
	if s.SelectedTechStack == nil {
		return failedBecause(s, ErrMissingTechStack, ReasonMissingTechStack)
	}
	paradigm := strings.TrimSpace(strings.ReplaceAll(s.ParadigmOrDefault(), `"`, ""))

	text, err := e.deps.Prompts.Render(prompt.SystemDiagram, map[string]any{
		"Stack":    s.SelectedTechStack,
		"Paradigm": paradigm,
	})
	if err != nil {
		return failed(s, err)
	}

	out, usage, err := oracle.Ask(ctx, e.deps.Oracle.For(task.SystemDiagram), "", text)
	s.AddUsage(usage)
	if err != nil {
		return failed(s, fmt.Errorf("system diagram: %w", err))
	}

	code := diagram.ExtractPlantUML(out)
	code = diagram.EnsureTitle(code, paradigm+" System Architecture")
	if err := diagram.Validate(code); err != nil {
		return failed(s, err)
	}

	s.SystemDiagram = &Diagram{
		Code:     code,
		ImageURL: e.renderDiagram(ctx, s, "system_diagram", code),
	}
	return completed(s, map[string]any{"length": len(code)})
}

// renderDiagram returns an image reference for code, or "" when rendering
// fails. The document then embeds the source instead.
func (e *Engine) renderDiagram(ctx context.Context, s State, name, code string) string {
	ref, err := e.deps.Renderer.Render(ctx, name, code)
	if err != nil {
		e.logger.Warn("diagram render failed", "run_id", s.RunID, "diagram", name, "error", err)
		return ""
	}
	return ref
}
