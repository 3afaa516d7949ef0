package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(t *testing.T, perMinute int, mutatingOnly bool) (*Limiter, *time.Time) {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerMinute: perMinute, MutatingOnly: mutatingOnly})
	t.Cleanup(rl.Stop)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestAllowWindow(t *testing.T) {
	rl, now := newTestLimiter(t, 3, false)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("1.1.1.1"), "request %d", i)
	}
	assert.False(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("2.2.2.2"), "clients are independent")

	*now = now.Add(20 * time.Second)
	assert.Equal(t, 40, rl.RetryAfter("1.1.1.1"))
	assert.False(t, rl.Allow("1.1.1.1"))

	*now = now.Add(40 * time.Second)
	assert.True(t, rl.Allow("1.1.1.1"), "window reset after a minute")

	m := rl.GetMetrics()
	assert.Equal(t, int64(2), m.TotalHits)
	assert.Equal(t, int64(2), m.ClientCount)
}

func TestCleanupStaleEntries(t *testing.T) {
	rl, now := newTestLimiter(t, 10, false)
	rl.Allow("1.1.1.1")
	*now = now.Add(11 * time.Minute)
	rl.Allow("2.2.2.2")

	assert.Equal(t, 1, rl.cleanupStaleEntries())
	assert.Equal(t, 1, rl.ActiveClients())
}

func TestMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, true)
	h := rl.Middleware(
		func(*http.Request) string { return "9.9.9.9" },
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	do := func(method string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/monthly-budget/income", nil))
		return rec
	}

	assert.Equal(t, http.StatusNoContent, do(http.MethodPut).Code)
	limited := do(http.MethodPut)
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "60", limited.Header().Get("Retry-After"))

	for range 5 {
		assert.Equal(t, http.StatusNoContent, do(http.MethodGet).Code, "reads are exempt")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	rl := NewLimiter(DefaultConfig())
	rl.Stop()
	rl.Stop()
}
