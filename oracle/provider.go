package oracle

import (
	"sync"

	llm "github.com/randalmurphal/llmkit/claude"
	"github.com/randalmurphal/llmkit/model"

	"github.com/randalmurphal/blueprint/task"
)

// Provider selects the client used for a task.
type Provider interface {
	For(t task.Type) Client
}

// Static uses one client for every task.
type Static struct {
	Client Client
}

// For implements Provider.
func (s Static) For(task.Type) Client {
	return s.Client
}

// Tiered picks a client by the task's model tier. Nil tiers fall back to
// Default.
type Tiered struct {
	Default  Client
	Fast     Client
	Thinking Client
}

// For implements Provider.
func (p *Tiered) For(t task.Type) Client {
	switch task.TierForTask(t) {
	case model.TierFast:
		if p.Fast != nil {
			return p.Fast
		}
	case model.TierThinking:
		if p.Thinking != nil {
			return p.Thinking
		}
	}
	return p.Default
}

// NewOpenAIProvider uses cfg.Model for default and thinking tasks and
// fastModel, when set, for fast tasks.
func NewOpenAIProvider(cfg OpenAIConfig, fastModel string) *Tiered {
	main := NewOpenAI(cfg)
	p := &Tiered{Default: main, Thinking: main}
	if fastModel != "" && fastModel != main.Model() {
		fastCfg := cfg
		fastCfg.Model = fastModel
		p.Fast = NewOpenAI(fastCfg)
	}
	return p
}

// ClaudeProvider runs the Claude CLI with the model selected for each task.
type ClaudeProvider struct {
	// Model overrides per-task selection when set.
	Model string

	// Workdir is the CLI working directory. Defaults to ".".
	Workdir string

	mu      sync.Mutex
	clients map[string]Client
}

// For implements Provider. Clients are created once per model.
func (p *ClaudeProvider) For(t task.Type) Client {
	name := p.Model
	if name == "" {
		name = string(task.SelectModel(t))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.clients == nil {
		p.clients = make(map[string]Client)
	}
	if c, ok := p.clients[name]; ok {
		return c
	}
	workdir := p.Workdir
	if workdir == "" {
		workdir = "."
	}
	c := llm.NewClaudeCLI(
		llm.WithModel(name),
		llm.WithWorkdir(workdir),
		llm.WithDangerouslySkipPermissions(),
	)
	p.clients[name] = c
	return c
}
