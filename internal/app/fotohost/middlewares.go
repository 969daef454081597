package fotohost

import (
	"context"
	"log"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/rs/xid"
	"golang.org/x/sync/semaphore"

	"github.com/fotohosting/fotohost/internal/pkg/config"
	"github.com/fotohosting/fotohost/internal/pkg/monitoring"
)

func NewThrottler(cfg *config.Config) *Throttler {
	return &Throttler{
		semaphore: semaphore.NewWeighted(cfg.ThrottlerQueueLength),
		timeout:   cfg.ThrottlerTimeout,
	}
}

// Throttler bounds the number of concurrently handled requests on expensive
// routes, mirroring the pool's fail-fast policy at the HTTP edge.
type Throttler struct {
	semaphore *semaphore.Weighted
	timeout   time.Duration
}

// lock - tries to acquire right to handle request
func (t *Throttler) lock() bool {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	var err = t.semaphore.Acquire(ctx, 1)
	return err == nil
}

func (t *Throttler) unlock() {
	t.semaphore.Release(1)
}

func (t *Throttler) Throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if t.lock() {
			defer t.unlock()
			next.ServeHTTP(w, r)
		} else {
			err := respondWithJSON(w, "too many requests", nil, 503)
			if err != nil {
				log.Printf("ERROR: failed to respond with 'too many requests' - %s", err)
				w.WriteHeader(503)
			}
		}
	})
}

func recoverFromPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("ERROR: recovered from panic: %v\n%s", rec, debug.Stack())
				respondWithJSON(w, "internal server error", nil, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requestID stamps every request with an X-Request-Id for log correlation.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = xid.New().String()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// trackMetrics feeds the request counters and latency histogram.
func trackMetrics(endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)
			monitoring.TrackRequest(r.Method, endpoint, rec.status, time.Since(start))
		})
	}
}

// requireAdmin rejects requests whose basic auth identity is not a
// configured administrator.
func requireAdmin(appCtx *AppContext) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			email, password, provided := r.BasicAuth()
			if !provided {
				respondWithJSON(w, "authorization required", nil, http.StatusUnauthorized)
				return
			}
			ok, _ := appCtx.DB.AuthenticateUser(r.Context(), email, password)
			if !ok || !appCtx.Config.IsAdmin(email) {
				respondWithJSON(w, "admin access required", nil, http.StatusForbidden)
				return
			}
			next(w, r)
		}
	}
}
