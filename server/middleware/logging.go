package middleware

import (
	"net/http"
	"time"

	"github.com/Pret-a-LLOD/Fintan/logger"
)

// quietPaths are polled by probes and scrapers and are not logged.
var quietPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// RequestLogger logs every request once it completes, at a level that
// follows the status class.
func RequestLogger(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if quietPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := newRecordingWriter(w)
			next.ServeHTTP(rw, r)

			status := rw.Status()
			fields := logger.Fields(
				"method", r.Method,
				"path", r.URL.Path,
				"bytes", rw.bytes,
				logger.FieldStatus, status,
				logger.FieldDuration, time.Since(start).Milliseconds(),
			)
			l := log.WithContext(r.Context())
			switch {
			case status >= 500:
				l.Error("Request completed", fields)
			case status >= 400:
				l.Warn("Request completed", fields)
			default:
				l.Info("Request completed", fields)
			}
		})
	}
}
