package fotohost

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fotohosting/fotohost/internal/pkg/config"
)

func newTestThrottler(length int64, timeout time.Duration) *Throttler {
	return NewThrottler(&config.Config{
		ThrottlerQueueLength: length,
		ThrottlerTimeout:     timeout,
	})
}

func TestThrottlerLockUnlock(t *testing.T) {
	th := newTestThrottler(2, 10*time.Millisecond)

	assert.True(t, th.lock())
	assert.True(t, th.lock())
	assert.False(t, th.lock(), "the queue is full, lock must time out")

	th.unlock()
	assert.True(t, th.lock())

	th.unlock()
	th.unlock()
}

func TestThrottleRespondsWith503WhenSaturated(t *testing.T) {
	th := newTestThrottler(1, 10*time.Millisecond)
	assert.True(t, th.lock())

	handler := th.Throttle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("saturated throttler must not call the handler")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/upload", nil))
	assert.Equal(t, 503, rec.Code)

	th.unlock()
}

func TestThrottleReleasesAfterHandler(t *testing.T) {
	th := newTestThrottler(1, 10*time.Millisecond)
	handler := th.Throttle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRequestIDIsStamped(t *testing.T) {
	handler := requestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRequestIDIsPreserved(t *testing.T) {
	handler := requestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-Id", "upstream-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "upstream-id", rec.Header().Get("X-Request-Id"))
}

func TestRecoverFromPanic(t *testing.T) {
	handler := recoverFromPanic(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.10:4321"
	assert.Equal(t, "192.0.2.10", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 192.0.2.1")
	assert.Equal(t, "203.0.113.5", getClientIP(req))
}

func TestIntQueryParam(t *testing.T) {
	req := httptest.NewRequest("GET", "/?page=3&per_page=abc&zero=0", nil)
	assert.Equal(t, 3, intQueryParam(req, "page", 1))
	assert.Equal(t, 12, intQueryParam(req, "per_page", 12))
	assert.Equal(t, 12, intQueryParam(req, "missing", 12))
	assert.Equal(t, 12, intQueryParam(req, "zero", 12))
}
