package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler writes one line per record:
//
//	2026-01-02T15:04:05Z INFO cascade[entry 12 asset 42]: moved video dst=... batch=1a2b3c4d
//
// The component, entry and asset attributes move into the prefix; batch ids
// are shortened to their first eight characters.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     *slog.LevelVar
	addSource bool
	attrs     []field
	groups    []string
}

type field struct {
	key   string
	value slog.Value
}

func newConsoleHandler(w io.Writer, level *slog.LevelVar, addSource bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]field(nil), h.attrs...), flatten(h.groups, attrs)...)
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := append([]field(nil), h.attrs...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = append(fields, flatten(h.groups, []slog.Attr{attr})...)
		return true
	})

	var component, entry, asset string
	rest := fields[:0]
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			component = firstNonEmpty(component, render(f.value, false))
		case FieldEntryID:
			entry = firstNonEmpty(entry, render(f.value, false))
		case FieldAssetID:
			asset = firstNonEmpty(asset, render(f.value, false))
		default:
			rest = append(rest, f)
		}
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var b strings.Builder
	b.WriteString(ts.UTC().Format(time.RFC3339))
	b.WriteByte(' ')
	b.WriteString(levelLabel(record.Level))
	b.WriteByte(' ')
	if prefix := linePrefix(component, entry, asset); prefix != "" {
		b.WriteString(prefix)
		b.WriteString(": ")
	}
	if msg := strings.TrimSpace(record.Message); msg != "" {
		b.WriteString(msg)
	} else {
		b.WriteString("(no message)")
	}
	if h.addSource {
		if src := record.Source(); src != nil {
			fmt.Fprintf(&b, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	for _, f := range rest {
		value := render(f.value, true)
		if f.key == FieldBatchID && len(value) > 8 {
			b.WriteString(" batch=")
			b.WriteString(value[:8])
			continue
		}
		b.WriteByte(' ')
		b.WriteString(f.key)
		b.WriteByte('=')
		b.WriteString(value)
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func linePrefix(component, entry, asset string) string {
	var ids []string
	if entry != "" {
		ids = append(ids, "entry "+entry)
	}
	if asset != "" {
		ids = append(ids, "asset "+asset)
	}
	switch {
	case component != "" && len(ids) > 0:
		return component + "[" + strings.Join(ids, " ") + "]"
	case component != "":
		return component
	default:
		return strings.Join(ids, " ")
	}
}

func firstNonEmpty(current, candidate string) string {
	if current != "" {
		return current
	}
	return candidate
}

// flatten expands group attributes into dotted keys.
func flatten(groups []string, attrs []slog.Attr) []field {
	var out []field
	for _, attr := range attrs {
		if attr.Equal(slog.Attr{}) {
			continue
		}
		value := attr.Value.Resolve()
		path := groups
		if attr.Key != "" {
			path = append(append([]string(nil), groups...), attr.Key)
		}
		if value.Kind() == slog.KindGroup {
			out = append(out, flatten(path, value.Group())...)
			continue
		}
		out = append(out, field{key: strings.Join(path, "."), value: value})
	}
	return out
}

func render(v slog.Value, quote bool) string {
	var s string
	switch v.Kind() {
	case slog.KindString:
		s = v.String()
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		s = v.String()
	}
	if quote && needsQuotes(s) {
		return strconv.Quote(s)
	}
	return s
}

func needsQuotes(s string) bool {
	if s == "" {
		return true
	}
	return strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' })
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
