package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/procflow/retryd/internal/core"
)

// statusCapture wraps http.ResponseWriter to capture the status code.
type statusCapture struct {
	http.ResponseWriter
	code int
}

func (s *statusCapture) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

// RequestLogger logs each HTTP request with method, path, status, and duration.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sc := &statusCapture{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(sc, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sc.code,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// ValidateContentType validates the Content-Type header for mutation
// requests. Process-definition deployments are YAML documents; everything
// else is JSON.
func ValidateContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength == 0 {
			next.ServeHTTP(w, r)
			return
		}

		ct := r.Header.Get("Content-Type")
		if i := strings.Index(ct, ";"); i >= 0 {
			ct = ct[:i]
		}
		ct = strings.TrimSpace(ct)

		switch ct {
		case "", "application/json":
			next.ServeHTTP(w, r)
		case "application/yaml", "text/yaml", "application/x-yaml":
			if strings.HasPrefix(r.URL.Path, "/v1/definitions") {
				next.ServeHTTP(w, r)
				return
			}
			WriteError(w, http.StatusUnsupportedMediaType,
				core.NewInvalidRequestError("Content-Type must be application/json.", nil))
		default:
			WriteError(w, http.StatusUnsupportedMediaType,
				core.NewInvalidRequestError("Unsupported Content-Type: "+ct, nil))
		}
	})
}
