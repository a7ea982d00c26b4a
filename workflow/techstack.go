package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/randalmurphal/blueprint/artifact"
	"github.com/randalmurphal/blueprint/oracle"
	"github.com/randalmurphal/blueprint/prompt"
	"github.com/randalmurphal/blueprint/task"
)

// generateTechStack writes implementation guidance for the selected stack.
//
// Prerequisites: SelectedTechStack
// Updates: TechStackGuidance, Usage
func (e *Engine) generateTechStack(ctx context.Context, s State) Result {
	if s.SelectedTechStack == nil {
		return failedBecause(s, ErrMissingTechStack, ReasonMissingTechStack)
	}

	text, err := e.deps.Prompts.Render(prompt.TechStack, map[string]any{
		"Stack":     s.SelectedTechStack,
		"Paradigm":  s.ParadigmOrDefault(),
		"Entities":  joinOrNone(recordNames(s.Artifacts.Get(artifact.TypeEntities))),
		"DAGTasks":  joinOrNone(recordNames(s.Artifacts.Get(artifact.TypeDAGTasks))),
		"OtherKeys": joinOrNone(otherTypes(s.Artifacts)),
	})
	if err != nil {
		return failed(s, err)
	}

	out, usage, err := oracle.Ask(ctx, e.deps.Oracle.For(task.TechStackGuidance), "", text)
	s.AddUsage(usage)
	if err != nil {
		return failed(s, fmt.Errorf("tech stack guidance: %w", err))
	}

	s.TechStackGuidance = strings.TrimSpace(out)
	return completed(s, map[string]any{"length": len(s.TechStackGuidance)})
}

func recordNames(records []artifact.Record) []string {
	var names []string
	for _, r := range records {
		if name := r.Text("name"); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// otherTypes lists artifact types other than entities and DAG tasks.
func otherTypes(c artifact.Collection) []string {
	var types []string
	for _, typ := range c.Types() {
		if typ != artifact.TypeEntities && typ != artifact.TypeDAGTasks {
			types = append(types, typ)
		}
	}
	return types
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}
