// Package trace assigns request ids, logs request start and completion, and
// keeps request counters for /metrics.
package trace

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	applog "moneymanager/internal/log"
)

type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"

	// RequestIDHeader is echoed back so logs can be matched to responses.
	RequestIDHeader = "X-Request-ID"
)

// Middleware handles request tracing and logging
type Middleware struct {
	extractIP func(*http.Request) string
	logger    *applog.Logger

	total       atomic.Int64
	serverErrs  atomic.Int64
	clientErrs  atomic.Int64
	durationSum atomic.Int64 // microseconds
}

// Metrics is a snapshot of the request counters.
type Metrics struct {
	TotalRequests       int64
	ClientErrors        int64
	ServerErrors        int64
	AverageResponseTime int64 // microseconds
}

func NewMiddleware(extractIP func(*http.Request) string, logger *applog.Logger) *Middleware {
	if logger == nil {
		logger = applog.Default(applog.ComponentTrace)
	}
	return &Middleware{extractIP: extractIP, logger: logger.WithComponent(applog.ComponentHTTP)}
}

// Middleware stores the request id and a request-scoped logger in the
// context, then logs completion with a level chosen by status.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = GenerateRequestID()
		}
		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		logger := m.logger.With(applog.NewFields().
			WithRequestID(requestID).
			WithClientIP(clientIP).
			ToSlice()...)
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		ctx = applog.NewContext(ctx, logger)
		r = r.WithContext(ctx)
		w.Header().Set(RequestIDHeader, requestID)

		reqFields := applog.NewFields().WithHTTPRequest(
			r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent(), r.Referer())
		logger.DebugContext(ctx, "HTTP request started",
			append(reqFields.ToSlice(), "htmx", r.Header.Get("HX-Request") == "true")...)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		m.total.Add(1)
		m.durationSum.Add(duration.Microseconds())

		level := slog.LevelInfo
		switch {
		case rw.statusCode >= 500:
			level = slog.LevelError
			m.serverErrs.Add(1)
		case rw.statusCode >= 400:
			level = slog.LevelWarn
			m.clientErrs.Add(1)
		}
		logger.Log(ctx, level, "HTTP request completed",
			reqFields.WithHTTPResponse(rw.statusCode, duration.Milliseconds(), rw.statusCode < 400).ToSlice()...)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	wrote      bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wrote {
		rw.statusCode = code
		rw.wrote = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wrote = true
	return rw.ResponseWriter.Write(b)
}

func GenerateRequestID() string {
	return uuid.NewString()
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

func (m *Middleware) GetMetrics() Metrics {
	total := m.total.Load()
	var avg int64
	if total > 0 {
		avg = m.durationSum.Load() / total
	}
	return Metrics{
		TotalRequests:       total,
		ClientErrors:        m.clientErrs.Load(),
		ServerErrors:        m.serverErrs.Load(),
		AverageResponseTime: avg,
	}
}
