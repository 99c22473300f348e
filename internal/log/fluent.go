package log

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fluent/fluent-logger-golang/fluent"
)

// Poster sends one record to a log forwarder. *fluent.Fluent implements it.
type Poster interface {
	Post(tag string, message any) error
}

// NewFluentClient connects to a Fluent Bit or Fluentd forward input.
// Records are tagged "<tagPrefix>.<level>". The client posts asynchronously,
// so an unreachable forwarder never blocks logging.
func NewFluentClient(host string, port int, tagPrefix string) (*fluent.Fluent, error) {
	if tagPrefix == "" {
		return nil, fmt.Errorf("fluent tag prefix is required")
	}
	client, err := fluent.New(fluent.Config{
		FluentHost: host,
		FluentPort: port,
		TagPrefix:  tagPrefix,
		Async:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create fluent client: %w", err)
	}
	return client, nil
}

// FluentHandler is an slog.Handler posting records as flat maps.
type FluentHandler struct {
	poster Poster
	level  slog.Leveler
	attrs  []slog.Attr
	group  string
}

// NewFluentHandler returns a handler posting records at level or above.
func NewFluentHandler(p Poster, level slog.Leveler) *FluentHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &FluentHandler{poster: p, level: level}
}

// Enabled reports whether level is at or above the handler level.
func (h *FluentHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle posts r with tag "<level>", e.g. "warn".
func (h *FluentHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level":     r.Level.String(),
		"message":   r.Message,
		"timestamp": r.Time.UTC().Format(time.RFC3339Nano),
	}
	for _, a := range h.attrs {
		addAttr(data, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(data, h.group, a)
		return true
	})
	return h.poster.Post(strings.ToLower(r.Level.String()), data)
}

// WithAttrs returns a handler that adds attrs to every record.
func (h *FluentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	c.attrs = append(c.attrs, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		c.attrs = append(c.attrs, a)
	}
	return &c
}

// WithGroup returns a handler that prefixes later keys with name.
func (h *FluentHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	if c.group != "" {
		c.group += "."
	}
	c.group += name
	return &c
}

func addAttr(data map[string]any, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	switch a.Value.Kind() {
	case slog.KindGroup:
		for _, ga := range a.Value.Group() {
			addAttr(data, key, ga)
		}
	case slog.KindTime:
		data[key] = a.Value.Time().UTC().Format(time.RFC3339Nano)
	case slog.KindDuration:
		data[key] = a.Value.Duration().String()
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			data[key] = err.Error()
			return
		}
		data[key] = a.Value.Any()
	default:
		data[key] = a.Value.Any()
	}
}
