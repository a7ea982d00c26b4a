package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/blueprint/artifact"
)

// Project map fields read by every store.
const (
	fieldProjectID         = "project_id"
	fieldParadigm          = "paradigm"
	fieldSelectedTechStack = "selected_tech_stack"
)

// fetchFunc returns the documents of a collection whose ID field matches one
// of ids.
type fetchFunc func(ctx context.Context, ref artifact.CollectionRef, ids []any) ([]artifact.Record, error)

// resolveProject expands a project map into a Project using fetch for every
// referenced collection. A tech stack selection that does not decode is
// logged and left nil; the stages that need it report it as missing.
func resolveProject(ctx context.Context, logger *slog.Logger, projectID string, projectMap artifact.Record, fetch fetchFunc) (*artifact.Project, error) {
	project := &artifact.Project{
		ID:       projectID,
		Paradigm: projectMap.TextOr(fieldParadigm, artifact.DefaultParadigm),
		Map:      projectMap,
	}

	for _, ref := range artifact.ProjectMapCollections {
		ids := idList(projectMap[ref.MapKey])
		if len(ids) == 0 {
			project.Artifacts = append(project.Artifacts, artifact.Set{Type: ref.Collection})
			continue
		}
		records, err := fetch(ctx, ref, ids)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", ref.Collection, err)
		}
		project.Artifacts = append(project.Artifacts, artifact.Set{Type: ref.Collection, Records: records})
	}

	stack, err := artifact.TechStackFromRecord(projectMap.Record(fieldSelectedTechStack))
	if err != nil {
		logger.Warn("ignoring malformed tech stack selection", "project_id", projectID, "error", err)
		stack = nil
	}
	project.TechStack = stack

	return project, nil
}

// idList returns the IDs listed under a project map key, skipping nils.
func idList(v any) []any {
	var out []any
	switch ids := v.(type) {
	case []any:
		for _, id := range ids {
			if id != nil {
				out = append(out, id)
			}
		}
	case []string:
		for _, id := range ids {
			out = append(out, id)
		}
	}
	return out
}

// diagramsFromRecords keeps documents that carry both a type and code.
func diagramsFromRecords(records []artifact.Record) []artifact.DiagramRecord {
	var out []artifact.DiagramRecord
	for _, r := range records {
		typ, code := r.Text("diagram_type"), r.Text("code")
		if typ == "" || code == "" {
			continue
		}
		out = append(out, artifact.DiagramRecord{Type: typ, Code: code})
	}
	return out
}
