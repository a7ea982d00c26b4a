package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/randalmurphal/flowgraph/pkg/flowgraph"

	"github.com/randalmurphal/blueprint/artifact"
	"github.com/randalmurphal/blueprint/chunk"
	"github.com/randalmurphal/blueprint/diagram"
	"github.com/randalmurphal/blueprint/export"
	"github.com/randalmurphal/blueprint/notify"
	"github.com/randalmurphal/blueprint/oracle"
	"github.com/randalmurphal/blueprint/prompt"
)

// Construction errors.
var (
	ErrNoStore      = errors.New("artifact store required")
	ErrNoOracle     = errors.New("text generation provider required")
	ErrNoRenderer   = errors.New("diagram renderer required")
	ErrNoProjectID  = errors.New("project id required")
	ErrInvalidLimit = errors.New("chunk sizes must be positive")
)

// Deps are the collaborators shared by every run of an engine. They must be
// safe for concurrent use.
type Deps struct {
	Store    artifact.Store         // required
	Diagrams artifact.DiagramSource // stored per-type diagrams; nil means none
	Oracle   oracle.Provider        // required
	Renderer diagram.Renderer       // required
	Prompts  *prompt.Loader         // default: embedded prompts only
	Exporter *export.Exporter       // default: markdown into ./output
	Notifier notify.Notifier        // default: discard
	Logger   *slog.Logger
}

type options struct {
	maxPerChunk int
	maxItems    int
	adrPolicy   chunk.Policy
	maxADRs     int
	concurrency int
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*options)

// WithMaxPerChunk sets the per-type group size.
func WithMaxPerChunk(n int) Option {
	return func(o *options) { o.maxPerChunk = n }
}

// WithMaxItems sets the global group size.
func WithMaxItems(n int) Option {
	return func(o *options) { o.maxItems = n }
}

// WithADRChunking selects how artifacts are grouped for ADR generation.
func WithADRChunking(p chunk.Policy) Option {
	return func(o *options) { o.adrPolicy = p }
}

// WithChunkConcurrency sets how many chunk calls may run at once. Values
// below 2 run chunks sequentially.
func WithChunkConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// WithClock sets the time source used for document timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Engine runs the fixed blueprint pipeline.
type Engine struct {
	deps   Deps
	opts   options
	logger *slog.Logger
	events emitter
	stages []Stage
	run    func(flowgraph.Context, State) (State, error)
}

// NewEngine validates deps and compiles the pipeline
//
//	load → summarize → generate_guide → generate_diagrams → generate_adrs →
//	generate_tech_stack_guidance → generate_system_diagram → render
func NewEngine(deps Deps, opts ...Option) (*Engine, error) {
	o := options{
		maxPerChunk: chunk.DefaultMaxPerChunk,
		maxItems:    chunk.DefaultMaxItems,
		adrPolicy:   chunk.PolicyPerType,
		maxADRs:     3,
		concurrency: 1,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	switch {
	case deps.Store == nil:
		return nil, ErrNoStore
	case deps.Oracle == nil:
		return nil, ErrNoOracle
	case deps.Renderer == nil:
		return nil, ErrNoRenderer
	case o.maxPerChunk <= 0 || o.maxItems <= 0:
		return nil, ErrInvalidLimit
	}
	if _, err := chunk.ParsePolicy(string(o.adrPolicy)); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Prompts == nil {
		deps.Prompts = prompt.NewLoader()
	}
	if err := deps.Prompts.Check(); err != nil {
		return nil, err
	}
	if deps.Exporter == nil {
		deps.Exporter = export.New(export.Config{Logger: deps.Logger})
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NopNotifier{}
	}

	e := &Engine{
		deps:   deps,
		opts:   o,
		logger: deps.Logger,
		events: emitter{notifier: deps.Notifier, logger: deps.Logger},
	}
	e.stages = []Stage{
		{Name: NodeLoad, Begin: projectMeta, Run: e.load},
		{Name: NodeSummarize, Run: summarize},
		{Name: NodeGuide, Begin: paradigmMeta, Run: e.generateGuide},
		{Name: NodeDiagrams, Begin: paradigmMeta, Run: e.generateDiagrams},
		{Name: NodeADRs, Begin: guidePreviewMeta, Run: e.generateADRs},
		{Name: NodeTechStack, Run: e.generateTechStack},
		{Name: NodeSystemDiagram, Run: e.generateSystemDiagram},
		{Name: NodeRender, Run: e.render},
	}

	graph := flowgraph.NewGraph[State]()
	for i, st := range e.stages {
		graph = graph.AddNode(st.Name, e.node(st))
		if i > 0 {
			graph = graph.AddEdge(e.stages[i-1].Name, st.Name)
		}
	}
	graph = graph.AddEdge(e.stages[len(e.stages)-1].Name, flowgraph.END).
		SetEntry(e.stages[0].Name)

	compiled, err := graph.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile pipeline: %w", err)
	}
	e.run = func(ctx flowgraph.Context, s State) (State, error) {
		return compiled.Run(ctx, s)
	}
	return e, nil
}

// Stages returns the stage names in execution order.
func (e *Engine) Stages() []string {
	names := make([]string, len(e.stages))
	for i, st := range e.stages {
		names[i] = st.Name
	}
	return names
}

// Run executes the pipeline for a project.
func (e *Engine) Run(ctx context.Context, projectID string) (State, error) {
	if strings.TrimSpace(projectID) == "" {
		return State{}, ErrNoProjectID
	}
	return e.RunState(ctx, NewState(projectID))
}

// RunState executes the pipeline from a prepared initial state.
//
// Cancelling ctx does not stop the sequence. Collaborator calls made after
// cancellation fail fast, their stages degrade, and render still composes
// and writes the document from whatever was produced.
func (e *Engine) RunState(ctx context.Context, s State) (State, error) {
	if strings.TrimSpace(s.ProjectID) == "" {
		return s, ErrNoProjectID
	}
	if s.Version == 0 {
		s.Version = StateVersion
	}
	if s.StartTime.IsZero() {
		s.StartTime = time.Now()
	}

	base := context.WithValue(context.WithoutCancel(ctx), callerKey{}, ctx)
	out, err := e.run(flowgraph.NewContext(base), s)
	out.FinalizeDuration()
	if err != nil {
		return out, fmt.Errorf("run %s: %w", s.RunID, err)
	}

	e.logger.Info("blueprint run finished",
		"project_id", out.ProjectID,
		"run_id", out.RunID,
		"duration", out.Duration,
		"failed_stages", out.Failed(),
	)
	return out, nil
}

type callerKey struct{}

// callerContext returns the caller's context carried through the graph.
func callerContext(ctx context.Context) context.Context {
	if caller, ok := ctx.Value(callerKey{}).(context.Context); ok {
		return caller
	}
	return ctx
}

// node adapts a stage to a graph node: events around the stage, panic
// recovery, identity protection and timing.
func (e *Engine) node(st Stage) flowgraph.NodeFunc[State] {
	return func(fctx flowgraph.Context, s State) (State, error) {
		ctx := callerContext(fctx)

		var begin map[string]any
		if st.Begin != nil {
			begin = st.Begin(s)
		}
		e.events.started(fctx, s, st.Name, begin)

		start := time.Now()
		res := e.runStage(ctx, st, s)
		duration := time.Since(start)

		res.State.ProjectID = s.ProjectID
		res.State.RunID = s.RunID
		res.State.Stages = append(res.State.Stages, StageOutcome{
			Node:     st.Name,
			Status:   string(res.Status),
			Reason:   res.Reason,
			Duration: duration,
		})

		e.logger.Debug("stage finished",
			"run_id", s.RunID,
			"node", st.Name,
			"status", res.Status,
			"duration", duration,
		)
		if res.Failed() {
			e.logger.Warn("stage degraded", "run_id", s.RunID, "node", st.Name, "reason", res.Reason)
		}

		e.events.finished(fctx, st.Name, res)
		return res.State, nil
	}
}

func (e *Engine) runStage(ctx context.Context, st Stage, s State) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = failed(s, fmt.Errorf("stage %s panicked: %v", st.Name, r))
		}
	}()
	res = st.Run(ctx, s)
	if res.Status == "" {
		res.Status = StatusCompleted
	}
	if res.Failed() && res.Reason == "" && res.Err != nil {
		res.Reason = res.Err.Error()
	}
	return res
}

// =============================================================================
// Started-event metadata
// =============================================================================

func projectMeta(s State) map[string]any {
	return map[string]any{"project_id": s.ProjectID}
}

func paradigmMeta(s State) map[string]any {
	return map[string]any{"paradigm": s.ParadigmOrDefault()}
}

func guidePreviewMeta(s State) map[string]any {
	return map[string]any{"input_preview": preview(s.ArchitectureGuide, 300)}
}

// preview returns at most n runes of text.
func preview(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n])
}
