package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, flush := newWithWriter(common.LogConfig{Level: "info", Format: "json"}, &buf)
	defer flush()

	logger.Info("pipeline.process.start", "document_id", int64(7))
	logger.Debug("dropped")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec["msg"] != "pipeline.process.start" || rec["document_id"] != float64(7) {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestZapFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, flush := newWithWriter(common.LogConfig{Level: "warn", Format: "zap"}, &buf)
	logger.Info("ignored")
	logger.Warn("llm.audit.skipped", "reason", "timeout")
	flush()

	out := buf.String()
	if strings.Contains(out, "ignored") {
		t.Fatalf("info record should be filtered: %q", out)
	}
	if !strings.Contains(out, "llm.audit.skipped") || !strings.Contains(out, "timeout") {
		t.Fatalf("missing warn record: %q", out)
	}
}
