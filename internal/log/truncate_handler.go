package log

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"
)

// DefaultMaxValueLen is the default clip length for string attribute values.
// Long enough for any reasonable URL, short enough that a pasted HTML
// fragment cannot flood the log.
const DefaultMaxValueLen = 512

// Ellipsis marks clipped values.
const Ellipsis = "…(truncated)"

// TruncateHandler wraps an slog.Handler and clips oversized string
// attribute values before passing records on.
//
// Design decision: We use a handler wrapper rather than trimming at call
// sites because:
//  1. It integrates seamlessly with standard slog APIs
//  2. It works with any underlying handler (text, JSON, etc.)
//  3. No scrape call site can forget to trim
type TruncateHandler struct {
	// handler is the underlying slog handler receiving clipped records.
	handler slog.Handler

	// maxLen is the maximum string value length in bytes.
	maxLen int
}

// NewTruncateHandler creates a TruncateHandler wrapping handler.
// If handler is nil, slog.Default().Handler() is used. A maxLen of zero or
// less falls back to DefaultMaxValueLen.
func NewTruncateHandler(handler slog.Handler, maxLen int) *TruncateHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxValueLen
	}
	return &TruncateHandler{handler: handler, maxLen: maxLen}
}

// Enabled reports whether the handler handles records at the given level.
func (h *TruncateHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle clips the record's attributes and passes it on.
func (h *TruncateHandler) Handle(ctx context.Context, r slog.Record) error {
	clipped := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clipped.AddAttrs(h.clipAttr(a))
		return true
	})
	return h.handler.Handle(ctx, clipped)
}

// WithAttrs returns a new TruncateHandler whose underlying handler carries
// the given (clipped) attributes.
func (h *TruncateHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clipped := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clipped[i] = h.clipAttr(a)
	}
	return &TruncateHandler{handler: h.handler.WithAttrs(clipped), maxLen: h.maxLen}
}

// WithGroup returns a new TruncateHandler with the given group name.
func (h *TruncateHandler) WithGroup(name string) slog.Handler {
	return &TruncateHandler{handler: h.handler.WithGroup(name), maxLen: h.maxLen}
}

// clipAttr clips string-ish attribute values, recursing into groups.
func (h *TruncateHandler) clipAttr(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.clip(a.Value.String()))
	case slog.KindGroup:
		group := a.Value.Group()
		clipped := make([]slog.Attr, len(group))
		for i, g := range group {
			clipped[i] = h.clipAttr(g)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(clipped...)}
	case slog.KindAny:
		// Errors and stringers are rendered before clipping so their
		// text length is what gets bounded.
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, h.clip(err.Error()))
		}
		if s, ok := a.Value.Any().(fmt.Stringer); ok {
			return slog.String(a.Key, h.clip(s.String()))
		}
		return a
	default:
		return a
	}
}

// clip shortens s to at most maxLen bytes without splitting a rune.
func (h *TruncateHandler) clip(s string) string {
	if len(s) <= h.maxLen {
		return s
	}
	end := h.maxLen
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[:end] + Ellipsis
}
