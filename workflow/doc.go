// Package workflow runs the blueprint pipeline over one project.
//
// Core types:
//   - State: the versioned record threaded through every stage
//   - Result: a stage's returned state plus a completed/success/failed tag
//   - Engine: compiles the fixed stage sequence and runs it
//
// Stages, in order:
//   - load: project paradigm, artifacts and tech stack selection
//   - summarize: entity, flow and story digests
//   - generate_guide: per-chunk insights synthesized into a guide
//   - generate_diagrams: stored diagrams filtered by paradigm
//   - generate_adrs: per-chunk architectural decision records
//   - generate_tech_stack_guidance: guidance for the selected stack
//   - generate_system_diagram: component diagram of the selected stack
//   - render: compose and export the document
//
// A stage never stops the run. When a collaborator fails the stage leaves
// its own fields at their defaults, reports a failed result, and the next
// stage runs. Render always produces a document.
//
// Example usage:
//
//	engine, err := workflow.NewEngine(workflow.Deps{
//	    Store:    store,
//	    Diagrams: store,
//	    Oracle:   oracle.Static{Client: client},
//	    Renderer: diagram.URLRenderer{BaseURL: "http://localhost:8080"},
//	    Notifier: notifier,
//	})
//	if err != nil {
//	    return err
//	}
//	state, err := engine.Run(ctx, "proj-42")
package workflow
