package notify

import (
	"context"
	"log/slog"
	"sort"
)

// LogNotifier writes events to a structured logger. Stage starts log at
// debug so a normal run prints one line per finished stage; warnings such
// as chunk and PDF failures log at warn; failed stages at error.
type LogNotifier struct {
	Logger *slog.Logger
}

// NewLogNotifier logs to logger, or slog.Default when nil.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{Logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, event Event) error {
	attrs := []slog.Attr{
		slog.String("event_type", string(event.Type)),
		slog.String("project_id", event.ProjectID),
	}
	if event.RunID != "" {
		attrs = append(attrs, slog.String("run_id", event.RunID))
	}
	if event.Node != "" {
		attrs = append(attrs, slog.String("node", event.Node))
	}
	if len(event.Metadata) > 0 {
		attrs = append(attrs, slog.Attr{Key: "metadata", Value: slog.GroupValue(metadataAttrs(event.Metadata)...)})
	}
	n.Logger.LogAttrs(ctx, logLevel(event), event.Summary(), attrs...)
	return nil
}

func logLevel(e Event) slog.Level {
	switch {
	case e.Status == StatusFailed:
		return slog.LevelError
	case e.Status == StatusWarning:
		return slog.LevelWarn
	case e.Type == EventNodeStarted:
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// metadataAttrs sorts keys so log lines are stable across runs.
func metadataAttrs(md map[string]any) []slog.Attr {
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, md[k]))
	}
	return attrs
}
