package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// TestParseLevel は文字列からログレベルへの変換を検証する。
func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"unknown": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

// TestNew はロガーの出力形式を検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("JSON形式でサービス名が付与されること", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		l := New(Config{Level: "info", Format: "json"}, "gateway", &buf)
		l.Info("起動しました", slog.String("port", "8080"))

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("JSONのデコードに失敗: %v, body=%s", err, buf.String())
		}
		if entry["service"] != "gateway" {
			t.Errorf("service = %v, want %q", entry["service"], "gateway")
		}
		if entry["port"] != "8080" {
			t.Errorf("port = %v, want %q", entry["port"], "8080")
		}
	})

	t.Run("ログレベル未満の出力は抑制されること", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		l := New(Config{Level: "warn", Format: "text"}, "enrollment", &buf)
		l.Info("表示されない")
		l.Warn("表示される")

		out := buf.String()
		if strings.Contains(out, "表示されない") {
			t.Errorf("infoログが出力された: %s", out)
		}
		if !strings.Contains(out, "表示される") {
			t.Errorf("warnログが出力されていない: %s", out)
		}
	})
}
