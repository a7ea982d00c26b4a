package workflow

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/randalmurphal/blueprint/artifact"
	"github.com/randalmurphal/blueprint/oracle"
)

// StateVersion is the layout version written with every state snapshot.
const StateVersion = 1

// =============================================================================
// Stage Outputs
// =============================================================================

// Diagram is diagram source with an optional rendered image reference.
type Diagram struct {
	Code     string `json:"code"`
	ImageURL string `json:"image_url,omitempty"`
}

// ADR is one architectural decision record.
type ADR struct {
	Title        string `json:"title"`
	Context      string `json:"context"`
	Decision     string `json:"decision"`
	Alternatives string `json:"alternatives"`
	Rationale    string `json:"rationale"`
}

// SummaryState holds the plain-text artifact digests fed to guide synthesis.
type SummaryState struct {
	EntitySummary string `json:"entity_summary,omitempty"`
	FlowSummary   string `json:"flow_summary,omitempty"`
	StorySummary  string `json:"story_summary,omitempty"`
}

// OutputState holds the terminal render outputs.
type OutputState struct {
	BlueprintMarkdown string            `json:"blueprint_markdown,omitempty"`
	ExportedFiles     map[string]string `json:"exported_files,omitempty"`
}

// MetricsState tracks token usage and timing for a run.
type MetricsState struct {
	Usage     oracle.Usage  `json:"usage"`
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
}

// StageOutcome records how one stage finished. The engine appends one per
// stage; stages never touch it.
type StageOutcome struct {
	Node     string        `json:"node"`
	Status   string        `json:"status"`
	Reason   string        `json:"reason,omitempty"`
	Duration time.Duration `json:"duration"`
}

// =============================================================================
// State
// =============================================================================

// State is the record threaded through every stage of a run. Every field is
// always present; a zero value means the producing stage has not set it.
type State struct {
	Version   int    `json:"version"`
	RunID     string `json:"run_id"`
	ProjectID string `json:"project_id"`

	// Set by load
	Paradigm          string              `json:"paradigm,omitempty"`
	Artifacts         artifact.Collection `json:"artifacts"`
	SelectedTechStack *artifact.TechStack `json:"selected_tech_stack,omitempty"`

	// Set by summarize
	SummaryState

	ArchitectureGuide string               `json:"architecture_guide,omitempty"`
	Diagrams          map[string][]Diagram `json:"diagrams,omitempty"`
	ADRs              []ADR                `json:"adrs,omitempty"`
	TechStackGuidance string               `json:"tech_stack_guidance,omitempty"`
	SystemDiagram     *Diagram             `json:"system_diagram,omitempty"`

	// Set by render
	OutputState

	MetricsState
	Stages []StageOutcome `json:"stages,omitempty"`
}

// NewState creates the initial state for a run.
func NewState(projectID string) State {
	return State{
		Version:   StateVersion,
		RunID:     generateRunID(projectID),
		ProjectID: projectID,
		MetricsState: MetricsState{
			StartTime: time.Now(),
		},
	}
}

// WithRunID sets a custom run ID.
func (s State) WithRunID(runID string) State {
	s.RunID = runID
	return s
}

// AddUsage accumulates token usage.
func (s *State) AddUsage(u oracle.Usage) {
	s.Usage.Add(u)
}

// FinalizeDuration sets Duration from StartTime.
func (s *State) FinalizeDuration() {
	s.Duration = time.Since(s.StartTime)
}

// ParadigmOrDefault returns the paradigm, or the default when unset.
func (s State) ParadigmOrDefault() string {
	if s.Paradigm == "" {
		return artifact.DefaultParadigm
	}
	return s.Paradigm
}

// DiagramCount returns the number of per-type diagrams.
func (s State) DiagramCount() int {
	n := 0
	for _, list := range s.Diagrams {
		n += len(list)
	}
	return n
}

// DiagramOrder returns the diagram types present in display order: the
// paradigm's allow-list order first, then any others sorted by name.
func (s State) DiagramOrder() []string {
	var order []string
	seen := make(map[string]bool)
	for _, typ := range artifact.DiagramTypes(s.ParadigmOrDefault()) {
		if len(s.Diagrams[typ]) > 0 {
			order = append(order, typ)
			seen[typ] = true
		}
	}
	var rest []string
	for typ, list := range s.Diagrams {
		if !seen[typ] && len(list) > 0 {
			rest = append(rest, typ)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

// Failed returns the names of stages that finished with a failure.
func (s State) Failed() []string {
	var nodes []string
	for _, o := range s.Stages {
		if o.Status == string(StatusFailed) {
			nodes = append(nodes, o.Node)
		}
	}
	return nodes
}

// =============================================================================
// Helper Functions
// =============================================================================

// generateRunID creates a unique run ID
func generateRunID(projectID string) string {
	timestamp := time.Now().Format("2006-01-02")
	suffix := randomSuffix(4)
	return fmt.Sprintf("%s-%s-%s", timestamp, projectID, suffix)
}

// randomSuffix generates a random hex suffix
func randomSuffix(bytes int) string {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// Summary returns a human-readable summary of the state
func (s State) Summary() string {
	var status string
	switch {
	case len(s.Failed()) > 0:
		status = "degraded"
	case s.BlueprintMarkdown != "":
		status = "rendered"
	case s.ArchitectureGuide != "":
		status = "guided"
	case s.Paradigm != "":
		status = "loaded"
	default:
		status = "pending"
	}

	return fmt.Sprintf("Run %s [%s]: %s (tokens: %d in, %d out, adrs: %d, diagrams: %d)",
		s.RunID, status, s.ProjectID,
		s.Usage.InputTokens, s.Usage.OutputTokens, len(s.ADRs), s.DiagramCount())
}
