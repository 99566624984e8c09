package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewFormats(t *testing.T) {
	var buf bytes.Buffer
	l := New("json", slog.LevelInfo, &buf)
	l.Info("evt", "k", "v")
	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Fatalf("expected JSON output, got %q", buf.String())
	}
	buf.Reset()
	l = New("text", slog.LevelInfo, &buf)
	l.Info("evt", "k", "v")
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Fatalf("expected text output, got %q", buf.String())
	}
}

func TestHexAttrLazy(t *testing.T) {
	var buf bytes.Buffer
	l := New("text", slog.LevelInfo, &buf)
	l.Debug("dropped", "data", Hex{0xDE, 0xAD})
	if buf.Len() != 0 {
		t.Fatalf("debug record should have been dropped: %q", buf.String())
	}
	l.Info("kept", "data", Hex{0xDE, 0xAD})
	if !strings.Contains(buf.String(), "dead") {
		t.Fatalf("expected hex payload in output: %q", buf.String())
	}
}

func TestSetNilIgnored(t *testing.T) {
	cur := L()
	Set(nil)
	if L() != cur {
		t.Fatal("nil Set must not replace the logger")
	}
}
