package middleware

import (
	"errors"
	"net/http"

	"go.uber.org/zap"
)

const internalErrorBody = `{"error":"internal server error"}`

// RecoveryMiddleware turns a handler panic into a 500 response.
// When the handler already started writing (for example mid-download) the
// response cannot be replaced, so the connection is aborted instead.
func RecoveryMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				committed := headerCommitted(w)
				logger.Error("panic recovered",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Bool("response_committed", committed),
					zap.Any("error", rec),
					zap.Stack("stack"),
				)
				if committed {
					panic(http.ErrAbortHandler)
				}

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Cache-Control", "no-store")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(internalErrorBody))
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// headerCommitted reports whether the status line already went out.
// Only writers wrapped by LoggerMiddleware can tell; others are assumed clean.
func headerCommitted(w http.ResponseWriter) bool {
	if rw, ok := w.(*responseWriter); ok {
		return rw.wroteHeader
	}
	return false
}
