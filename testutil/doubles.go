package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	llm "github.com/randalmurphal/llmkit/claude"

	"github.com/randalmurphal/blueprint/artifact"
	"github.com/randalmurphal/blueprint/notify"
)

// =============================================================================
// Store
// =============================================================================

// MemoryStore serves projects and diagrams from memory.
type MemoryStore struct {
	Projects map[string]*artifact.Project
	Diagrams map[string][]artifact.DiagramRecord

	// Err, when set, is returned by every call.
	Err error
}

// NewMemoryStore creates a store holding the given projects.
func NewMemoryStore(projects ...*artifact.Project) *MemoryStore {
	s := &MemoryStore{
		Projects: make(map[string]*artifact.Project),
		Diagrams: make(map[string][]artifact.DiagramRecord),
	}
	for _, p := range projects {
		s.Projects[p.ID] = p
	}
	return s
}

// LoadProject implements artifact.Store.
func (s *MemoryStore) LoadProject(_ context.Context, projectID string) (*artifact.Project, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	p, ok := s.Projects[projectID]
	if !ok {
		return nil, fmt.Errorf("load %s: %w", projectID, artifact.ErrProjectNotFound)
	}
	return p, nil
}

// ListDiagrams implements artifact.DiagramSource.
func (s *MemoryStore) ListDiagrams(_ context.Context, projectID string) ([]artifact.DiagramRecord, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Diagrams[projectID], nil
}

// =============================================================================
// Notifier
// =============================================================================

// Recorder is a notifier that keeps every event.
type Recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

// Notify implements notify.Notifier.
func (r *Recorder) Notify(_ context.Context, event notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Event(nil), r.events...)
}

// OfType returns the recorded events of one type.
func (r *Recorder) OfType(typ notify.EventType) []notify.Event {
	var out []notify.Event
	for _, e := range r.Events() {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// Finished returns the completion or error event for a node, or false.
func (r *Recorder) Finished(node string) (notify.Event, bool) {
	for _, e := range r.Events() {
		if e.Node == node && (e.Type == notify.EventNodeCompleted || e.Type == notify.EventNodeError) {
			return e, true
		}
	}
	return notify.Event{}, false
}

// =============================================================================
// Oracle
// =============================================================================

// Rule answers prompts containing Match.
type Rule struct {
	Match string

	// Reply returns the response for the n-th matching call, counted from 1.
	Reply func(n int, prompt string) (string, error)
}

// Oracle is a text generation double that routes prompts by substring. It
// is safe for concurrent use. Unmatched prompts fail.
type Oracle struct {
	mu      sync.Mutex
	rules   []Rule
	counts  map[string]int
	prompts []string
}

// NewOracle creates an oracle with the given rules, checked in order.
func NewOracle(rules ...Rule) *Oracle {
	return &Oracle{rules: rules, counts: make(map[string]int)}
}

// Reply builds a rule that always answers text.
func Reply(match, text string) Rule {
	return Rule{Match: match, Reply: func(int, string) (string, error) { return text, nil }}
}

// FailOn builds a rule that fails the listed calls and answers text
// otherwise.
func FailOn(match, text string, calls ...int) Rule {
	return Rule{Match: match, Reply: func(n int, _ string) (string, error) {
		for _, c := range calls {
			if c == n {
				return "", fmt.Errorf("oracle failure on call %d", n)
			}
		}
		return fmt.Sprintf("%s (call %d)", text, n), nil
	}}
}

// Complete implements oracle.Client.
func (o *Oracle) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var prompt string
	if len(req.Messages) > 0 {
		prompt = req.Messages[len(req.Messages)-1].Content
	}

	o.mu.Lock()
	o.prompts = append(o.prompts, prompt)
	var rule *Rule
	var n int
	for i := range o.rules {
		if strings.Contains(prompt, o.rules[i].Match) {
			rule = &o.rules[i]
			o.counts[rule.Match]++
			n = o.counts[rule.Match]
			break
		}
	}
	o.mu.Unlock()

	if rule == nil {
		return nil, fmt.Errorf("no rule for prompt %.60q", prompt)
	}
	text, err := rule.Reply(n, prompt)
	if err != nil {
		return nil, err
	}
	resp := &llm.CompletionResponse{Content: text}
	resp.Usage.InputTokens = len(prompt) / 4
	resp.Usage.OutputTokens = len(text) / 4
	return resp, nil
}

// Calls returns how many prompts matched the rule with the given Match.
func (o *Oracle) Calls(match string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counts[match]
}

// Prompts returns every prompt received, in arrival order.
func (o *Oracle) Prompts() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.prompts...)
}
