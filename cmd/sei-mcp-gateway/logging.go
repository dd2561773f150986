// ABOUTME: slog setup for the CLI: colorized text for terminals, JSON for collectors
// ABOUTME: The text handler prints the component attr as a prefix and groups as dotted keys

package main

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/2389/sei-mcp-gateway/internal/config"
)

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogger(cfg config.LoggingConfig, out io.Writer) *slog.Logger {
	level := parseLevel(cfg.Level)

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(&colorHandler{
		out:   out,
		mu:    &sync.Mutex{},
		level: level,
	})
}

// colorHandler writes one colorized line per record.
type colorHandler struct {
	out       io.Writer
	mu        *sync.Mutex // shared by handlers derived through WithAttrs/WithGroup
	level     slog.Level
	component string
	attrs     []string // preformatted " key=value" pairs
	prefix    string   // dotted group path, "" at top level
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

var levelLabels = map[slog.Level]string{
	slog.LevelDebug: color.MagentaString("DBG"),
	slog.LevelInfo:  color.CyanString("INF"),
	slog.LevelWarn:  color.YellowString("WRN"),
	slog.LevelError: color.New(color.FgRed, color.Bold).Sprint("ERR"),
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(color.HiBlackString(r.Time.Format("15:04:05.000")))
	b.WriteByte(' ')

	label, ok := levelLabels[r.Level]
	if !ok {
		label = r.Level.String()
	}
	b.WriteString(label)
	b.WriteByte(' ')

	component := h.component
	var recordAttrs []string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" && h.prefix == "" {
			component = a.Value.String()
			return true
		}
		recordAttrs = appendAttr(recordAttrs, h.prefix, a)
		return true
	})

	if component != "" {
		b.WriteString(color.BlueString("[" + component + "] "))
	}
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		b.WriteString(a)
	}
	for _, a := range recordAttrs {
		b.WriteString(a)
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

// appendAttr formats a, flattening groups into dotted keys.
func appendAttr(dst []string, prefix string, a slog.Attr) []string {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			dst = appendAttr(dst, key, ga)
		}
		return dst
	}
	return append(dst, color.HiBlackString(" "+key+"=")+a.Value.String())
}

func (h *colorHandler) clone() *colorHandler {
	c := *h
	c.attrs = append([]string(nil), h.attrs...)
	return &c
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	for _, a := range attrs {
		if a.Key == "component" && h.prefix == "" {
			c.component = a.Value.String()
			continue
		}
		c.attrs = appendAttr(c.attrs, h.prefix, a)
	}
	return c
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	if c.prefix == "" {
		c.prefix = name
	} else {
		c.prefix += "." + name
	}
	return c
}
