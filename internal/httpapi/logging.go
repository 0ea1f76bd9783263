package httpapi

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is the structured logger of the HTTP layer.
var zlog = zerolog.New(os.Stderr).With().Timestamp().Str("component", "httpapi").Logger()

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = l }

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch s {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// defaultLogLevel is read once from COMFYD_HTTP_LOG_LEVEL.
var defaultLogLevel = parseLevel(os.Getenv("COMFYD_HTTP_LOG_LEVEL"))

// SetRequestLogLevel overrides the default per-request log level.
func SetRequestLogLevel(s string) { defaultLogLevel = parseLevel(s) }

func requestLogLevel(r *http.Request) LogLevel {
	// Per-request overrides
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// requestLogger tags zlog with the request id and session.
func requestLogger(r *http.Request, sessionID string) zerolog.Logger {
	ctx := zlog.With().Str("path", r.URL.Path)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		ctx = ctx.Str("request_id", rid)
	}
	if sessionID != "" {
		ctx = ctx.Str("session", sessionID)
	}
	return ctx.Logger()
}

// logEnd records the end of a generate request at lvl.
func logEnd(l zerolog.Logger, lvl LogLevel, status int, start time.Time, err error) {
	if lvl == LevelOff || (err == nil && lvl < LevelInfo) {
		return
	}
	ev := l.Info()
	if err != nil {
		ev = l.Error().Err(err)
	}
	ev.Int("status", status).Dur("dur", time.Since(start)).Msg("generate end")
}
