package monitoring

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger provides structured logging with pipeline-specific helpers.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a JSON logger writing to stdout.
func NewLogger() *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339)),
				}
			}
			return a
		},
	})

	return &Logger{Logger: slog.New(handler)}
}

// DownloadLogger logs a snapshot download attempt.
func (l *Logger) DownloadLogger(url string, statusCode int, attempt int, duration time.Duration, sizeBytes int64, success bool) {
	level := slog.LevelInfo
	action := "download_success"
	if !success {
		level = slog.LevelWarn
		action = "download_failed"
	}

	l.Log(context.Background(), level, "snapshot download",
		"source", "downloader",
		"action", action,
		"url", url,
		"status_code", statusCode,
		"attempt", attempt,
		"response_time_ms", duration.Milliseconds(),
		"file_size_bytes", sizeBytes,
	)
}

// CacheHitLogger logs a download cache short-circuit.
func (l *Logger) CacheHitLogger(file string) {
	l.Info("snapshot cache hit",
		"source", "downloader",
		"action", "cache_hit",
		"file", file,
	)
}

// ParseSummaryLogger logs the end-of-stream parse summary for one file.
func (l *Logger) ParseSummaryLogger(file string, successes, errorCount int, errorRatePct float64) {
	l.Info("parse summary",
		"source", "parser",
		"file", file,
		"total_rows", successes+errorCount,
		"successes", successes,
		"errors", errorCount,
		"error_rate_pct", errorRatePct,
	)
}

// ParseAlertLogger logs the alert-level signal for a high per-file error rate.
func (l *Logger) ParseAlertLogger(file string, errorRatePct float64) {
	l.Error("high parse error rate",
		"source", "parser",
		"file", file,
		"error_rate_pct", errorRatePct,
		"action", "alert",
	)
}

// RowSkipLogger logs one skipped row.
func (l *Logger) RowSkipLogger(file string, lineNumber int, reason string) {
	l.Warn("row skipped",
		"source", "parser",
		"file", file,
		"line_number", lineNumber,
		"reason", reason,
		"action", "skipped",
	)
}

// FlowRunLogger logs the outcome of one flow detection run.
func (l *Logger) FlowRunLogger(countries, hotspots, flowsReturned, flowsComputed int, duration time.Duration) {
	l.Info("flow detection complete",
		"source", "flow_detector",
		"countries", countries,
		"hotspots", hotspots,
		"flows_returned", flowsReturned,
		"flows_computed", flowsComputed,
		"duration_ms", duration.Milliseconds(),
	)
}

// RequestLogger logs HTTP request details.
func (l *Logger) RequestLogger(method, path, ip string, statusCode int, duration time.Duration) {
	l.Info("http request",
		"method", method,
		"path", path,
		"ip", ip,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}
