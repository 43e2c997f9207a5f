package logging

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
)

// AttrSource supplies attributes describing the running ghost session, such
// as ghost.Subsystem.LogContext. It is called once per record and must be
// safe from any goroutine.
type AttrSource interface {
	LogContext() []slog.Attr
}

type boundSource struct{ src AttrSource }

// sessionHandler appends the currently bound AttrSource's attributes to each
// record. The binding is shared by every handler derived via WithAttrs or
// WithGroup so loggers handed out before Bind still pick it up.
type sessionHandler struct {
	inner slog.Handler
	bound *atomic.Pointer[boundSource]
}

func (h *sessionHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *sessionHandler) Handle(ctx context.Context, r slog.Record) error {
	if b := h.bound.Load(); b != nil {
		r.AddAttrs(b.src.LogContext()...)
	}
	return h.inner.Handle(ctx, r)
}

func (h *sessionHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sessionHandler{inner: h.inner.WithAttrs(attrs), bound: h.bound}
}

func (h *sessionHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &sessionHandler{inner: h.inner.WithGroup(name), bound: h.bound}
}

// fanout sends every record to each sink that accepts its level: the console
// or log file, Graylog and the OTel bridge.
type fanout []slog.Handler

func newFanout(sinks ...slog.Handler) fanout {
	f := make(fanout, 0, len(sinks))
	for _, h := range sinks {
		if h != nil {
			f = append(f, h)
		}
	}
	return f
}

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers to all sinks even when one fails and reports the joined
// failures.
func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
