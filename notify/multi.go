package notify

import (
	"context"
	"errors"
	"log/slog"
)

// MultiNotifier delivers each event to every sink in order. A failing sink
// is logged and does not stop the others.
type MultiNotifier struct {
	Notifiers []Notifier
	Logger    *slog.Logger
}

// NewMultiNotifier skips nil sinks and flattens nested MultiNotifiers.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	m := &MultiNotifier{Logger: slog.Default()}
	for _, n := range notifiers {
		m.Add(n)
	}
	return m
}

// Add appends a sink.
func (m *MultiNotifier) Add(n Notifier) {
	switch v := n.(type) {
	case nil, NopNotifier:
	case *MultiNotifier:
		for _, inner := range v.Notifiers {
			m.Add(inner)
		}
	default:
		m.Notifiers = append(m.Notifiers, n)
	}
}

// Notify returns every sink error joined.
func (m *MultiNotifier) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range m.Notifiers {
		err := n.Notify(ctx, event)
		if err == nil {
			continue
		}
		errs = append(errs, err)
		if m.Logger != nil {
			m.Logger.Warn("event delivery failed",
				"event_type", event.Type,
				"run_id", event.RunID,
				"node", event.Node,
				"error", err,
			)
		}
	}
	return errors.Join(errs...)
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) error {
	return nil
}
