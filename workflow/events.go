package workflow

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/blueprint/notify"
)

// emitter publishes lifecycle events for one engine. Delivery failures are
// logged and never reach the caller. Events are sent even after the caller
// cancels so observers see the run finish.
type emitter struct {
	notifier notify.Notifier
	logger   *slog.Logger
}

func (e emitter) emit(ctx context.Context, s State, typ notify.EventType, node string, status notify.Status, meta map[string]any) {
	event := notify.NewEvent(typ, s.ProjectID, status)
	event.RunID = s.RunID
	event.Node = node
	for k, v := range meta {
		event.Metadata[k] = v
	}
	if err := e.notifier.Notify(context.WithoutCancel(ctx), event); err != nil {
		e.logger.Warn("lifecycle event not delivered",
			"event_type", typ,
			"node", node,
			"run_id", s.RunID,
			"error", err,
		)
	}
}

func (e emitter) started(ctx context.Context, s State, node string, meta map[string]any) {
	e.emit(ctx, s, notify.EventNodeStarted, node, notify.StatusStarted, meta)
}

func (e emitter) finished(ctx context.Context, node string, res Result) {
	if res.Failed() {
		meta := map[string]any{"error": res.Reason}
		for k, v := range res.Metadata {
			meta[k] = v
		}
		e.emit(ctx, res.State, notify.EventNodeError, node, notify.StatusFailed, meta)
		return
	}
	e.emit(ctx, res.State, notify.EventNodeCompleted, node, res.Status, res.Metadata)
}

func (e emitter) chunkFailed(ctx context.Context, s State, node string, index int, err error) {
	e.emit(ctx, s, notify.EventChunkFailed, node, notify.StatusWarning, map[string]any{
		"chunk_index": index,
		"error":       err.Error(),
	})
}

func (e emitter) pdfFailed(ctx context.Context, s State, err error) {
	e.emit(ctx, s, notify.EventPDFFailed, NodeRender, notify.StatusWarning, map[string]any{
		"error": err.Error(),
	})
}
