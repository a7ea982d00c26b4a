package workflow

import (
	"context"
	"strings"

	"github.com/randalmurphal/blueprint/artifact"
)

// load reads the project's paradigm, artifacts and tech stack selection. A
// missing project is not an error: the run continues with the default
// paradigm and no artifacts.
//
// Updates: Paradigm, Artifacts, SelectedTechStack
func (e *Engine) load(ctx context.Context, s State) Result {
	project, err := e.deps.Store.LoadProject(ctx, s.ProjectID)
	if err != nil {
		s.Paradigm = artifact.DefaultParadigm
		s.Artifacts = artifact.Collection{}
		if artifact.IsNotFound(err) {
			return succeeded(s, map[string]any{
				"found":    false,
				"paradigm": s.Paradigm,
			})
		}
		return failed(s, err)
	}

	s.Paradigm = project.Paradigm
	if s.Paradigm == "" {
		s.Paradigm = artifact.DefaultParadigm
	}
	s.Artifacts = project.Artifacts
	if s.Artifacts == nil {
		s.Artifacts = artifact.Collection{}
	}
	s.SelectedTechStack = project.TechStack

	return succeeded(s, map[string]any{
		"paradigm":      s.Paradigm,
		"artifact_keys": s.Artifacts.Types(),
	})
}

// summarize builds plain-text digests of entities, flows and stories. It
// never calls the oracle and never fails.
//
// Updates: EntitySummary, FlowSummary, StorySummary
func summarize(_ context.Context, s State) Result {
	entities := s.Artifacts.Get(artifact.TypeEntities)
	flows := s.Artifacts.Get(artifact.TypeFlows)
	stories := s.Artifacts.Get(artifact.TypeStories)

	s.EntitySummary = SummarizeEntities(entities)
	s.FlowSummary = summarizeList(flows, "flow_name", "No flows defined.")
	s.StorySummary = summarizeList(stories, "summary", "No stories defined.")

	return succeeded(s, map[string]any{
		"entity_len": len(entities),
		"flow_len":   len(flows),
		"story_len":  len(stories),
	})
}

// SummarizeEntities renders one line per entity:
//
//	**Name**: attr: description; attr: description
func SummarizeEntities(entities []artifact.Record) string {
	if len(entities) == 0 {
		return "No entities defined."
	}
	lines := make([]string, 0, len(entities))
	for _, ent := range entities {
		attrs := ent.Records("attributes")
		parts := make([]string, 0, len(attrs))
		for _, a := range attrs {
			parts = append(parts, a.Text("name")+": "+a.Text("description"))
		}
		lines = append(lines, "**"+ent.TextOr("name", "Unnamed")+"**: "+strings.Join(parts, "; "))
	}
	return strings.Join(lines, "\n")
}

func summarizeList(records []artifact.Record, titleField, empty string) string {
	if len(records) == 0 {
		return empty
	}
	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, "- "+r.TextOr(titleField, "Unnamed")+" — "+r.Text("description"))
	}
	return strings.Join(lines, "\n")
}
