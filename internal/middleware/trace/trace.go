package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"sync/atomic"
	"time"

	"orcamento/internal/log"
)

// ContextKey type for context keys
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"

	// RequestIDHeader carries the request ID in and out
	RequestIDHeader = "X-Request-ID"
)

var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// Observer receives the outcome of every request. route is the matched route
// pattern when Route can resolve one.
type Observer interface {
	ObserveRequest(method, route string, status int, d time.Duration)
}

// Middleware handles request tracing and logging
type Middleware struct {
	logger    *log.Logger
	events    *log.StructuredLogger
	extractIP func(*http.Request) string
	route     func(*http.Request) string
	observer  Observer
	metrics   *Metrics
}

// Metrics tracks request metrics
type Metrics struct {
	TotalRequests       int64
	AverageResponseTime int64 // in microseconds
}

type Option func(*Middleware)

// WithClientIP sets the client IP extractor.
func WithClientIP(f func(*http.Request) string) Option {
	return func(m *Middleware) { m.extractIP = f }
}

// WithRoute sets how the route label is derived after the handler ran.
func WithRoute(f func(*http.Request) string) Option {
	return func(m *Middleware) { m.route = f }
}

func WithObserver(o Observer) Option {
	return func(m *Middleware) { m.observer = o }
}

// NewMiddleware creates a new trace middleware
func NewMiddleware(logger *log.Logger, opts ...Option) *Middleware {
	logger = logger.WithComponent(log.ComponentHTTP)
	m := &Middleware{
		logger:  logger,
		events:  log.NewStructuredLogger(logger),
		metrics: &Metrics{},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Middleware returns HTTP middleware for request tracing. Handlers find a
// request-scoped logger through log.FromContext.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		requestID := r.Header.Get(RequestIDHeader)
		if !validRequestID.MatchString(requestID) {
			requestID = GenerateRequestID()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		ctx = log.NewContext(ctx, m.logger.With(log.FieldRequestID, requestID))
		r = r.WithContext(ctx)

		m.events.LogHTTPStart(ctx, r, clientIP)
		atomic.AddInt64(&m.metrics.TotalRequests, 1)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		atomic.StoreInt64(&m.metrics.AverageResponseTime, duration.Microseconds())

		m.events.LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), clientIP)
		if m.observer != nil {
			route := r.URL.Path
			if m.route != nil {
				route = m.route(r)
			}
			m.observer.ObserveRequest(r.Method, route, rw.statusCode, duration)
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetMetrics returns current metrics
func (m *Middleware) GetMetrics() Metrics {
	return Metrics{
		TotalRequests:       atomic.LoadInt64(&m.metrics.TotalRequests),
		AverageResponseTime: atomic.LoadInt64(&m.metrics.AverageResponseTime),
	}
}
