package middleware

import (
	"net/http"
)

// RequestSizeLimitMiddleware limits the size of request bodies.
// Requests announcing a larger body are passed to tooLarge without reading it;
// other bodies are capped so reads past maxRequestSize fail with *http.MaxBytesError.
func RequestSizeLimitMiddleware(maxRequestSize int64, tooLarge http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxRequestSize {
				tooLarge.ServeHTTP(w, r)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)
			next.ServeHTTP(w, r)
		})
	}
}
