package blueprint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/blueprint/artifact"
	"github.com/randalmurphal/blueprint/config"
	"github.com/randalmurphal/blueprint/diagram"
	"github.com/randalmurphal/blueprint/export"
	"github.com/randalmurphal/blueprint/notify"
	"github.com/randalmurphal/blueprint/oracle"
	"github.com/randalmurphal/blueprint/publish"
	"github.com/randalmurphal/blueprint/runner"
	"github.com/randalmurphal/blueprint/runstore"
	"github.com/randalmurphal/blueprint/workflow"
)

// ErrHistoryDisabled is returned by history queries when no run database is
// configured.
var ErrHistoryDisabled = errors.New("run history disabled")

// ComponentError names the component NewService could not build.
type ComponentError struct {
	Component string
	Err       error
}

func (e *ComponentError) Error() string {
	return e.Component + ": " + e.Err.Error()
}

func (e *ComponentError) Unwrap() error {
	return e.Err
}

// Option overrides a component NewService would otherwise build from
// settings.
type Option func(*components)

// WithStore sets the artifact store. When s also lists diagrams it serves as
// the diagram source.
func WithStore(s artifact.Store) Option {
	return func(c *components) { c.store = s }
}

// WithOracle sets the text generation provider.
func WithOracle(p oracle.Provider) Option {
	return func(c *components) { c.oracle = p }
}

// WithRenderer sets the diagram renderer.
func WithRenderer(r diagram.Renderer) Option {
	return func(c *components) { c.renderer = r }
}

// WithRunner sets the process runner used for PDF conversion and local
// diagram rendering.
func WithRunner(r runner.Runner) Option {
	return func(c *components) { c.runner = r }
}

// WithPublisher sets the issue publisher.
func WithPublisher(p publish.Publisher) Option {
	return func(c *components) { c.publisher = p }
}

// WithNotifier adds a lifecycle event sink called synchronously.
func WithNotifier(n notify.Notifier) Option {
	return func(c *components) { c.extra = append(c.extra, n) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *components) { c.logger = l }
}

// WithClock sets the time source for run records and document timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *components) { c.now = now }
}

// Service runs blueprints and keeps their history.
type Service struct {
	engine    *workflow.Engine
	events    notify.Notifier
	bus       *notify.Broadcaster
	runs      *runstore.SQLite
	snapshots *export.Snapshots
	retention *export.Retention
	publisher publish.Publisher
	settings  config.Settings
	logger    *slog.Logger
	now       func() time.Time
	closers   []func(context.Context) error
}

// NewService builds every component from settings, honoring overrides, and
// compiles the engine. Connections opened before a failure are closed.
func NewService(ctx context.Context, settings *config.Settings, opts ...Option) (*Service, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: settings required", config.ErrInvalid)
	}
	c := &components{settings: *settings}
	for _, opt := range opts {
		opt(c)
	}

	svc, err := c.build(ctx)
	if err != nil {
		c.close(context.WithoutCancel(ctx))
		return nil, err
	}
	return svc, nil
}

// Engine returns the compiled workflow engine.
func (s *Service) Engine() *workflow.Engine {
	return s.engine
}

// Events returns the in-process event bus fed by every run.
func (s *Service) Events() *notify.Broadcaster {
	return s.bus
}

// Close flushes queued events and releases connections.
func (s *Service) Close(ctx context.Context) error {
	s.bus.Close()
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// =============================================================================
// History
// =============================================================================

// ListRuns returns recorded runs, newest first.
func (s *Service) ListRuns(ctx context.Context, f runstore.Filter) ([]runstore.Run, error) {
	if s.runs == nil {
		return nil, ErrHistoryDisabled
	}
	return s.runs.ListRuns(ctx, f)
}

// GetRun returns one recorded run.
func (s *Service) GetRun(ctx context.Context, runID string) (*runstore.Run, error) {
	if s.runs == nil {
		return nil, ErrHistoryDisabled
	}
	return s.runs.GetRun(ctx, runID)
}

// RunEvents returns the lifecycle events recorded for a run.
func (s *Service) RunEvents(ctx context.Context, runID string) ([]notify.Event, error) {
	if s.runs == nil {
		return nil, ErrHistoryDisabled
	}
	if _, err := s.runs.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	return s.runs.Events(ctx, runID)
}

// LoadState returns the final state snapshot of a run.
func (s *Service) LoadState(runID string) (*workflow.State, error) {
	var st workflow.State
	if err := s.snapshots.LoadJSON(runID, export.SnapshotState, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// PruneResult reports what Prune removed.
type PruneResult struct {
	Snapshots *export.CleanupResult `json:"snapshots"`
	Runs      int64                 `json:"runs"`
}

// Prune applies the retention policy to snapshots and run history.
func (s *Service) Prune(ctx context.Context, dryRun bool) (*PruneResult, error) {
	cleaned, err := s.retention.Cleanup(dryRun)
	if err != nil {
		return nil, fmt.Errorf("clean snapshots: %w", err)
	}
	res := &PruneResult{Snapshots: cleaned}
	if s.runs == nil || dryRun || s.settings.Output.RetentionDays <= 0 {
		return res, nil
	}
	cutoff := s.now().AddDate(0, 0, -s.settings.Output.RetentionDays)
	if res.Runs, err = s.runs.PruneBefore(ctx, cutoff); err != nil {
		return res, err
	}
	return res, nil
}
