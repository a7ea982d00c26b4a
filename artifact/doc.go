// Package artifact defines the project data consumed by blueprint generation.
//
// Core types:
//   - Record: One externally defined artifact document (entity, flow, story, ...)
//   - Collection: Artifact records grouped by type, preserving type order
//   - TechStack: The technology selection recorded in a project map
//   - Project: Everything the loading stage needs for one project
//
// Collaborator contracts:
//   - Store: Loads a project by ID, failing with ErrProjectNotFound
//   - DiagramSource: Lists stored diagrams for a project
//
// Implementations live in the store package.
//
// Example usage:
//
//	project, err := store.LoadProject(ctx, "proj-42")
//	if errors.Is(err, artifact.ErrProjectNotFound) {
//	    // fall back to defaults
//	}
//	for _, set := range project.Artifacts {
//	    fmt.Println(set.Type, len(set.Records))
//	}
package artifact
