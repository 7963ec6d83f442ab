// Package events emits domain events as structured log records.
package events

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

type Writer struct {
	Logger *slog.Logger
	Now    func() time.Time
}

type EventPayload map[string]any

// Append records one event. Callers append after their transaction commits so
// rolled-back changes never surface.
func (w Writer) Append(ctx context.Context, evtType, entityKind, entityID, actorID string, payload EventPayload) {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	attrs := []slog.Attr{
		slog.String("type", evtType),
		slog.String("ts", now().UTC().Format(time.RFC3339)),
		slog.String("entity_kind", entityKind),
		slog.String("entity_id", entityID),
		slog.String("actor_id", actorID),
	}
	if len(payload) > 0 {
		keys := make([]string, 0, len(payload))
		for k := range payload {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]any, 0, len(keys))
		for _, k := range keys {
			fields = append(fields, slog.Any(k, payload[k]))
		}
		attrs = append(attrs, slog.Group("payload", fields...))
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "event", attrs...)
}
