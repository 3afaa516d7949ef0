package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/monthly-budget/summary", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "max-age=31536000; includeSubDomains", rec.Header().Get("Strict-Transport-Security"))
}

func TestDetectSuspiciousRequest(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		target     string
		userAgent  string
		suspicious bool
	}{
		{"normal summary", http.MethodGet, "/monthly-budget/summary?month=3&year=2025", "curl/8.5", false},
		{"path traversal", http.MethodGet, "/../../etc/passwd", "", true},
		{"sql injection in query", http.MethodGet, "/monthly-budget/summary?month=1%20union%20select", "", true},
		{"scanner agent", http.MethodGet, "/", "sqlmap/1.7", true},
		{"trace method", "TRACE", "/", "", true},
		{"long url", http.MethodGet, "/?q=" + strings.Repeat("a", 2100), "", true},
	}

	d := NewDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			req.Header.Set("User-Agent", tt.userAgent)
			assert.Equal(t, tt.suspicious, d.DetectSuspiciousRequest(req))
		})
	}
	assert.Equal(t, int64(5), d.GetMetrics().SuspiciousRequests)
}

func TestExtractClientIP(t *testing.T) {
	d := NewDetector()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:4000"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	assert.Equal(t, "203.0.113.9", d.ExtractClientIP(req), "untrusted peers cannot spoof")

	req.RemoteAddr = "10.0.0.5:4000"
	req.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.5")
	assert.Equal(t, "198.51.100.1", d.ExtractClientIP(req))

	req.Header.Set("X-Forwarded-For", "garbage")
	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", d.ExtractClientIP(req))
	assert.Equal(t, int64(1), d.GetMetrics().InvalidIPAttempts)

	require.NoError(t, d.AddTrustedProxy("203.0.113.0/24"))
	assert.Error(t, d.AddTrustedProxy("not-a-cidr"))
}
