package workflow

import (
	"context"
	"errors"

	"github.com/randalmurphal/blueprint/notify"
)

// Stage node names, as reported in lifecycle events.
const (
	NodeLoad          = "load"
	NodeSummarize     = "summarize"
	NodeGuide         = "generate_guide"
	NodeDiagrams      = "generate_diagrams"
	NodeADRs          = "generate_adrs"
	NodeTechStack     = "generate_tech_stack_guidance"
	NodeSystemDiagram = "generate_system_diagram"
	NodeRender        = "render"
)

// Stage outcome statuses.
const (
	StatusCompleted = notify.StatusCompleted
	StatusSuccess   = notify.StatusSuccess
	StatusFailed    = notify.StatusFailed
)

// Stage degradation errors.
var (
	ErrMissingTechStack = errors.New("missing tech stack selection")
	ErrNoDiagrams       = errors.New("no diagrams found for this project")
)

// Failure reasons reported in lifecycle events.
const (
	ReasonMissingTechStack = "Missing tech stack selection"
	ReasonNoDiagrams       = "No diagrams found for this project."
)

// Result is what a stage hands back to the engine: the state to pass on and
// a tag describing how the stage went. A failed result still carries a
// usable state with the stage's own fields left at their defaults.
type Result struct {
	State    State
	Status   notify.Status
	Err      error
	Reason   string
	Metadata map[string]any
}

// Failed reports whether the stage degraded.
func (r Result) Failed() bool {
	return r.Status == StatusFailed
}

// completed tags a normal finish.
func completed(s State, meta map[string]any) Result {
	return Result{State: s, Status: StatusCompleted, Metadata: meta}
}

// succeeded tags a normal finish for stages that report "success".
func succeeded(s State, meta map[string]any) Result {
	return Result{State: s, Status: StatusSuccess, Metadata: meta}
}

// failed tags a degraded finish. The reason defaults to the error text.
func failed(s State, err error) Result {
	return Result{State: s, Status: StatusFailed, Err: err, Reason: err.Error()}
}

// failedBecause tags a degraded finish with a fixed reason.
func failedBecause(s State, err error, reason string) Result {
	return Result{State: s, Status: StatusFailed, Err: err, Reason: reason}
}

// StageFunc runs one stage. It must not panic across the boundary, and
// must return a state even when its collaborators fail.
type StageFunc func(ctx context.Context, s State) Result

// Stage is one named step of the pipeline.
type Stage struct {
	Name string

	// Begin, when set, supplies metadata for the started event.
	Begin func(s State) map[string]any

	Run StageFunc
}
