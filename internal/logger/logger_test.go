package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}

	for _, tc := range cases {
		if got := parseLevel(tc.in); got != tc.want {
			t.Fatalf("parseLevel(%q) = %v; want %v", tc.in, got, tc.want)
		}
	}
}

func TestForGameCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := defaultLogger
	defaultLogger = slog.New(slog.NewTextHandler(&buf, nil))
	defer func() { defaultLogger = prev }()

	ctx := WithRequestID(context.Background(), "req-7")
	ForGame(ctx, "g1").Info("move")
	out := buf.String()
	if !strings.Contains(out, "request_id=req-7") || !strings.Contains(out, "game_id=g1") {
		t.Fatalf("missing attrs: %s", out)
	}

	buf.Reset()
	ForGame(context.Background(), "g2").Info("move")
	if strings.Contains(buf.String(), "request_id") {
		t.Fatalf("unexpected request id: %s", buf.String())
	}
}
