package middleware

import (
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/rs/zerolog/log"
)

// AccessLog wraps h with a request log written through zerolog.
func AccessLog(h http.Handler) http.Handler {
	return handlers.CustomLoggingHandler(io.Discard, h, accessLogFormatter)
}

// accessLogFormatter logs the path only. Query strings carry invitation and reset tokens.
func accessLogFormatter(_ io.Writer, params handlers.LogFormatterParams) {
	event := log.Info()
	if params.StatusCode >= http.StatusInternalServerError {
		event = log.Warn()
	}
	event.Str("method", params.Request.Method).
		Str("path", params.URL.Path).
		Int("status", params.StatusCode).
		Int("size", params.Size).
		Msg("handled request")
}
