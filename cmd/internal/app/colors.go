package app

import (
	"log/slog"
	"regexp"
	"strconv"
	"time"
)

const (
	ansiReset   = "\x1b[0m"
	ansiBright  = "\x1b[1m"
	ansiDim     = "\x1b[2m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func paint(code, s string, color bool) string {
	if !color || s == "" {
		return s
	}
	return code + s + ansiReset
}

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func colorizeHTTPMethod(m string, color bool) string {
	switch m {
	case "GET", "HEAD":
		return paint(ansiBlue, m, color)
	case "POST":
		return paint(ansiGreen, m, color)
	case "PUT", "PATCH":
		return paint(ansiYellow, m, color)
	case "DELETE":
		return paint(ansiRed, m, color)
	default:
		return paint(ansiMagenta, m, color)
	}
}

func colorizeStatusCode(code int, color bool) string {
	return paint(statusColor(code), strconv.Itoa(code), color)
}

func colorizeStatusClass(class string, color bool) string {
	if len(class) == 0 || class[0] < '1' || class[0] > '5' {
		return quoteIfNeeded(class)
	}
	return paint(statusColor(int(class[0]-'0')*100), class, color)
}

func statusColor(code int) string {
	switch {
	case code >= 500:
		return ansiRed
	case code >= 400:
		return ansiYellow
	case code >= 300:
		return ansiCyan
	default:
		return ansiGreen
	}
}

func colorizeDurationMS(ms int64, color bool) string {
	s := (time.Duration(ms) * time.Millisecond).String()
	switch {
	case ms >= 1000:
		return paint(ansiRed, s, color)
	case ms >= 250:
		return paint(ansiYellow, s, color)
	default:
		return paint(ansiDim, s, color)
	}
}

func colorizeResult(r string, color bool) string {
	switch r {
	case "ok", "success", "found", "issued", "allow":
		return paint(ansiGreen, r, color)
	case "client_error", "absent", "no_cookie", "no_session", "redirect":
		return paint(ansiYellow, r, color)
	case "server_error", "error", "duplicate", "failed", "misconfigured":
		return paint(ansiRed, r, color)
	default:
		return quoteIfNeeded(r)
	}
}

func valueToInt64(v slog.Value) (int64, bool) {
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		return int64(v.Uint64()), true
	case slog.KindFloat64:
		return int64(v.Float64()), true
	case slog.KindString:
		n, err := strconv.ParseInt(v.String(), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
