package app

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestStripANSI(t *testing.T) {
	t.Parallel()

	in := ansiBlue + "INFO" + ansiReset + " plain " + ansiRed + "ERR" + ansiReset
	got := stripANSI(in)
	want := "INFO plain ERR"
	if got != want {
		t.Fatalf("stripANSI()=%q want=%q", got, want)
	}
}

func TestPrettyHandler_RequestLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, true))

	log.Warn("http.request",
		"request_id", "01J000",
		"method", "get",
		"path", "/api/auth/token",
		"status", 401,
		"status_class", "4xx",
		"duration_ms", int64(12),
		"result", "client_error",
	)

	got := stripANSI(buf.String())
	for _, want := range []string{
		"[WARN] http.request",
		"rid=01J000",
		"method=GET",
		"path=/api/auth/token",
		"status=401",
		"class=4xx",
		"duration=12ms",
		"result=client_error",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
	if !strings.HasSuffix(got, "\n") {
		t.Fatalf("line must end with newline: %q", got)
	}
	if !strings.Contains(buf.String(), ansiYellow+"[WARN]"+ansiReset) {
		t.Fatalf("level tag not colorized: %q", buf.String())
	}
}

func TestPrettyHandler_GroupsAndAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, nil, false)).
		With("component", "dbpool").
		WithGroup("pool").
		With("max", 10)

	log.Info("db.pool.ready", "idle", 2, slog.Group("conn", "pid", 77), "err", errors.New("boom here"))

	got := buf.String()
	for _, want := range []string{
		"component=dbpool",
		"pool.max=10",
		"pool.idle=2",
		"pool.conn.pid=77",
		`pool.err="boom here"`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
	if strings.Contains(got, "\x1b[") {
		t.Fatalf("color disabled but found escapes: %q", got)
	}
}

func TestPrettyHandler_LevelFilter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, nil, false))
	log.Debug("auth.session.absent")
	if buf.Len() != 0 {
		t.Fatalf("debug must be filtered at the default level, got %q", buf.String())
	}
}

func TestQuoteIfNeeded(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":          `""`,
		"plain":     "plain",
		"two words": `"two words"`,
		"k=v":       `"k=v"`,
	}
	for in, want := range cases {
		if got := quoteIfNeeded(in); got != want {
			t.Fatalf("quoteIfNeeded(%q)=%q want=%q", in, got, want)
		}
	}
}
