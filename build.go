package blueprint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/randalmurphal/blueprint/artifact"
	"github.com/randalmurphal/blueprint/chunk"
	"github.com/randalmurphal/blueprint/config"
	"github.com/randalmurphal/blueprint/diagram"
	"github.com/randalmurphal/blueprint/export"
	"github.com/randalmurphal/blueprint/notify"
	"github.com/randalmurphal/blueprint/oracle"
	"github.com/randalmurphal/blueprint/prompt"
	"github.com/randalmurphal/blueprint/publish"
	"github.com/randalmurphal/blueprint/runner"
	"github.com/randalmurphal/blueprint/runstore"
	"github.com/randalmurphal/blueprint/store"
	"github.com/randalmurphal/blueprint/workflow"
)

// components collects what a Service is assembled from. Anything left nil
// is built from settings.
type components struct {
	settings config.Settings

	store     artifact.Store
	oracle    oracle.Provider
	renderer  diagram.Renderer
	runner    runner.Runner
	publisher publish.Publisher
	extra     []notify.Notifier
	logger    *slog.Logger
	now       func() time.Time

	closers []func(context.Context) error
}

func (c *components) build(ctx context.Context) (*Service, error) {
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.runner == nil {
		c.runner = runner.NewExecRunner()
	}
	cfg := c.settings

	if err := c.buildStore(ctx); err != nil {
		return nil, err
	}
	c.buildOracle()
	c.buildRenderer()
	if err := c.buildPublisher(); err != nil {
		return nil, err
	}

	runs, err := c.openRuns()
	if err != nil {
		return nil, err
	}
	bus := notify.NewBroadcaster()
	events, err := c.buildNotifier(bus, runs)
	if err != nil {
		return nil, err
	}

	policy, err := chunk.ParsePolicy(cfg.Chunk.ADRPolicy)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}

	deps := workflow.Deps{
		Store:    c.store,
		Oracle:   c.oracle,
		Renderer: c.renderer,
		Exporter: export.New(export.Config{
			OutputDir:   cfg.Output.Dir,
			PDF:         cfg.Output.PDF,
			WKHTMLToPDF: cfg.Output.WKHTMLToPDF,
			Runner:      c.runner,
			Logger:      c.logger,
		}),
		Prompts:  Prompts(cfg.LLM.PromptsDir),
		Notifier: events,
		Logger:   c.logger,
	}
	if src, ok := c.store.(artifact.DiagramSource); ok {
		deps.Diagrams = src
	}

	engine, err := workflow.NewEngine(deps,
		workflow.WithMaxPerChunk(cfg.Chunk.MaxPerChunk),
		workflow.WithMaxItems(cfg.Chunk.MaxItems),
		workflow.WithADRChunking(policy),
		workflow.WithChunkConcurrency(cfg.Chunk.Concurrency),
		workflow.WithClock(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}

	retention := export.DefaultRetentionConfig()
	if cfg.Output.RetentionDays > 0 {
		retention.RetentionDays = cfg.Output.RetentionDays
	}

	return &Service{
		engine:    engine,
		events:    events,
		bus:       bus,
		runs:      runs,
		snapshots: export.NewSnapshots(export.SnapshotConfig{BaseDir: cfg.Output.RunsDir}),
		retention: export.NewRetention(cfg.Output.RunsDir, retention),
		publisher: c.publisher,
		settings:  cfg,
		logger:    c.logger,
		now:       c.now,
		closers:   c.closers,
	}, nil
}

func (c *components) buildStore(ctx context.Context) error {
	if c.store != nil {
		return nil
	}
	s := c.settings.Store
	switch s.Kind {
	case "file":
		c.store = store.NewFile(s.FixturesDir).WithLogger(c.logger)
	case "mongo", "":
		m, err := store.ConnectMongo(ctx, store.MongoConfig{
			URI:      s.MongoURI,
			Database: s.Database,
			Logger:   c.logger,
		})
		if err != nil {
			return &ComponentError{Component: "artifact store", Err: err}
		}
		c.closers = append(c.closers, m.Close)
		c.store = m
	default:
		return fmt.Errorf("%w: unknown store %q", config.ErrInvalid, s.Kind)
	}
	return nil
}

func (c *components) buildOracle() {
	if c.oracle != nil {
		return
	}
	l := c.settings.LLM
	if l.Provider == "claude" {
		c.oracle = &oracle.ClaudeProvider{Model: l.ClaudeModel}
		return
	}
	c.oracle = oracle.NewOpenAIProvider(oracle.OpenAIConfig{
		APIKey:  l.APIKey,
		BaseURL: l.BaseURL,
		Model:   l.Model,
		Timeout: l.Timeout,
		Logger:  c.logger,

		RequestsPerMinute: l.RequestsPerMinute,
	}, l.FastModel)
}

// Prompts returns the prompt loader a service uses: dir (the prompts_dir
// setting, possibly empty) ahead of the working directory's overrides.
func Prompts(dir string) *prompt.Loader {
	return prompt.NewLoader(append([]string{dir}, prompt.ProjectDirs(".")...)...)
}

func (c *components) buildRenderer() {
	if c.renderer != nil {
		return
	}
	p := c.settings.PlantUML
	if p.JarPath != "" {
		dir := filepath.Join(c.settings.Output.Dir, "diagrams")
		c.renderer = diagram.NewLocalRenderer(p.JarPath, dir, c.runner)
		return
	}
	c.renderer = diagram.URLRenderer{BaseURL: p.ServerURL}
}

func (c *components) buildPublisher() error {
	if c.publisher != nil {
		return nil
	}
	p := c.settings.Publish
	pub, err := publish.New(publish.Config{
		Provider:      p.Provider,
		GitHubToken:   p.GitHubToken,
		GitHubRepo:    p.GitHubRepo,
		GitLabToken:   p.GitLabToken,
		GitLabURL:     p.GitLabURL,
		GitLabProject: p.GitLabProject,
		Jira: publish.JiraConfig{
			URL:       p.JiraURL,
			Email:     p.JiraEmail,
			Token:     p.JiraToken,
			Project:   p.JiraProject,
			IssueType: p.JiraIssueType,
		},
	})
	if errors.Is(err, publish.ErrNoPublisher) {
		return nil
	}
	if err != nil {
		return &ComponentError{Component: "publisher", Err: err}
	}
	c.publisher = pub
	return nil
}

func (c *components) openRuns() (*runstore.SQLite, error) {
	path := c.settings.Output.RunsDB
	if path == "" {
		return nil, nil
	}
	db, err := runstore.Open(path)
	if err != nil {
		return nil, &ComponentError{Component: "run history", Err: err}
	}
	c.closers = append(c.closers, func(context.Context) error { return db.Close() })
	return db, nil
}

// buildNotifier assembles the event chain: the log, the in-process bus, the
// run history and extra sinks synchronously; broker, webhook and Slack
// delivery behind one bounded queue.
func (c *components) buildNotifier(bus *notify.Broadcaster, runs *runstore.SQLite) (notify.Notifier, error) {
	e := c.settings.Events

	var remote []notify.Notifier
	if e.AMQPURL != "" {
		amqp, err := notify.DialAMQP(notify.AMQPConfig{
			URL:          e.AMQPURL,
			Exchange:     e.Exchange,
			ExchangeType: e.ExchangeType,
			StreamKey:    e.StreamKey,
			ReadyKey:     e.ReadyKey,
		})
		if err != nil {
			return nil, &ComponentError{Component: "event broker", Err: err}
		}
		c.closers = append(c.closers, func(context.Context) error { return amqp.Close() })
		remote = append(remote, amqp)
	}
	if e.WebhookURL != "" {
		hook := notify.NewWebhookNotifier(e.WebhookURL, nil)
		hook.Secret = e.WebhookSecret
		remote = append(remote, hook)
	}
	if e.SlackURL != "" {
		remote = append(remote, notify.NewSlackNotifier(e.SlackURL,
			notify.WithSlackTypes(notify.EventNodeError, notify.EventPDFFailed, notify.EventBlueprintReady)))
	}
	local := []notify.Notifier{notify.NewLogNotifier(c.logger), bus}
	local = append(local, c.extra...)
	if runs != nil {
		local = append(local, runs.Notifier())
	}
	if len(remote) > 0 {
		fanout := notify.NewMultiNotifier(remote...)
		fanout.Logger = c.logger
		queue := notify.NewAsync(fanout, e.QueueSize, c.logger)
		c.closers = append(c.closers, queue.Close)
		local = append(local, queue)
	}

	multi := notify.NewMultiNotifier(local...)
	multi.Logger = c.logger
	return multi, nil
}

func (c *components) close(ctx context.Context) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			c.logger.Warn("close component", "error", err)
		}
	}
}
