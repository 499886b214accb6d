package logging

import (
	"context"
	"errors"
	"log/slog"
)

// LevelSetHandler passes on only records whose level is in an explicit set.
type LevelSetHandler struct {
	levels map[slog.Level]struct{}
	next   slog.Handler
}

// NewLevelSetHandler wraps next so that only the given levels reach it.
// next should itself accept every level (e.g. HandlerOptions.Level = LevelID).
func NewLevelSetHandler(next slog.Handler, levels ...slog.Level) *LevelSetHandler {
	set := make(map[slog.Level]struct{}, len(levels))
	for _, l := range levels {
		set[l] = struct{}{}
	}
	return &LevelSetHandler{levels: set, next: next}
}

func (h *LevelSetHandler) Enabled(ctx context.Context, l slog.Level) bool {
	if _, ok := h.levels[l]; !ok {
		return false
	}
	return h.next.Enabled(ctx, l)
}

func (h *LevelSetHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.next.Handle(ctx, r)
}

func (h *LevelSetHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LevelSetHandler{levels: h.levels, next: h.next.WithAttrs(attrs)}
}

func (h *LevelSetHandler) WithGroup(name string) slog.Handler {
	return &LevelSetHandler{levels: h.levels, next: h.next.WithGroup(name)}
}

// FanoutHandler dispatches every record to each handler that accepts it.
type FanoutHandler struct {
	handlers []slog.Handler
}

// NewFanoutHandler returns a handler writing to all of handlers.
func NewFanoutHandler(handlers ...slog.Handler) *FanoutHandler {
	return &FanoutHandler{handlers: handlers}
}

func (h *FanoutHandler) Enabled(ctx context.Context, l slog.Level) bool {
	for _, next := range h.handlers {
		if next.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (h *FanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, next := range h.handlers {
		if next.Enabled(ctx, r.Level) {
			if err := next.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (h *FanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &FanoutHandler{handlers: next}
}

func (h *FanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &FanoutHandler{handlers: next}
}
