package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestNopTracer(t *testing.T) {
	tracer := NopTracer()
	ctx := context.Background()
	ctx2, span := tracer.StartSpan(ctx, "test")
	if ctx2 != ctx {
		t.Fatalf("nop tracer should return same context")
	}
	span.SetTag("key", "value")
	span.SetError(nil)
	span.Finish()
}

func TestSlogLoggerFieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	l := NewSlogLogger(base).With(String("doc", "a.pdf"))
	l.Debug("hidden")
	l.Warn("edit skipped", Int("page", 2), Error("error", errors.New("boom")), Float("size", 12.5), Bool("cover", true))
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written at info level: %q", out)
	}
	for _, want := range []string{"level=WARN", "doc=a.pdf", "page=2", "error=boom", "size=12.5", "cover=true"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != slog.LevelDebug || ParseLevel("WARN") != slog.LevelWarn {
		t.Fatalf("level parse mismatch")
	}
	if ParseLevel("chatty") != slog.LevelInfo {
		t.Fatalf("unknown level should default to info")
	}
}

func TestLogTracerReportsFailures(t *testing.T) {
	mem := NewMemoryLogger()
	_, span := LogTracer(mem).StartSpan(context.Background(), SpanExport)
	span.SetTag("pages", 3)
	span.SetError(errors.New("disk full"))
	span.Finish()
	entries := mem.Entries()
	if len(entries) != 1 || entries[0].Level != "warn" {
		t.Fatalf("entries: %+v", entries)
	}
	if entries[0].Fields["span"] != SpanExport || entries[0].Fields["pages"] != 3 {
		t.Fatalf("fields: %+v", entries[0].Fields)
	}
}

func TestMemoryLoggerWithSharesEntries(t *testing.T) {
	mem := NewMemoryLogger()
	child := mem.With(String("page", "1"))
	child.Info("one")
	mem.Warn("two")
	if mem.Count("info") != 1 || mem.Count("warn") != 1 {
		t.Fatalf("counts: %+v", mem.Entries())
	}
	if mem.Entries()[0].Fields["page"] != "1" {
		t.Fatalf("child fields lost")
	}
	if OrNop(nil) == nil {
		t.Fatalf("OrNop returned nil")
	}
}
