// Package monitoring exposes pool and application health to the metrics
// subsystem. Prometheus handles the exposition format; this package owns the
// collectors and the point-in-time snapshot used by the /health endpoint.
package monitoring

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron"

	"github.com/fotohosting/fotohost/internal/pkg/pool"
)

var (
	poolConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "db_connections_total",
		Help: "Total database connections in pool",
	})
	poolConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "db_connections_active",
		Help: "Active database connections",
	})
	poolConnectionsIdle = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "db_connections_idle",
		Help: "Idle database connections in pool",
	})
	poolFailedAcquires = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "db_pool_failed_acquires",
		Help: "Failed connection acquisitions since startup",
	})
	poolExhaustionEvents = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "db_pool_exhausted",
		Help: "Acquire attempts rejected because the pool was exhausted since startup",
	})
	poolHealthy = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "db_pool_healthy",
		Help: "Result of the last pool liveness probe (1 healthy, 0 unhealthy)",
	})

	requestCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})
	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "http_request_duration_seconds",
		Help: "HTTP request duration",
	}, []string{"method", "endpoint"})

	fileUploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "file_uploads_total",
		Help: "Total file uploads",
	}, []string{"status"})
	fileDownloadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "file_downloads_total",
		Help: "Total file downloads",
	})
)

func init() {
	prometheus.MustRegister(
		poolConnectionsTotal, poolConnectionsActive, poolConnectionsIdle,
		poolFailedAcquires, poolExhaustionEvents, poolHealthy,
		requestCount, requestDuration,
		fileUploadsTotal, fileDownloadsTotal,
	)
}

// Snapshot - point-in-time view of pool health, not a time series.
type Snapshot struct {
	Healthy   bool       `json:"healthy"`
	Stats     pool.Stats `json:"pool_stats"`
	Timestamp int64      `json:"timestamp"`
}

// Collect runs the liveness probe, refreshes the pool gauges and returns the
// snapshot. It never panics: any internal failure degrades to an unhealthy
// report.
func Collect(ctx context.Context, p *pool.Pool) (snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: metrics collection panicked - %v", r)
			snap = Snapshot{Healthy: false, Timestamp: time.Now().Unix()}
		}
	}()

	snap = Snapshot{
		Healthy:   p.HealthCheck(ctx),
		Stats:     p.Stats(),
		Timestamp: time.Now().Unix(),
	}

	poolConnectionsTotal.Set(float64(snap.Stats.TotalConnections))
	poolConnectionsActive.Set(float64(snap.Stats.ActiveConnections))
	poolConnectionsIdle.Set(float64(snap.Stats.IdleConnections))
	poolFailedAcquires.Set(float64(snap.Stats.FailedAcquires))
	poolExhaustionEvents.Set(float64(snap.Stats.ExhaustionEvents))
	if snap.Healthy {
		poolHealthy.Set(1)
	} else {
		poolHealthy.Set(0)
	}
	return snap
}

// StartProbe schedules the periodic background liveness probe. The returned
// cron must be stopped at shutdown.
func StartProbe(p *pool.Pool, schedule string) *cron.Cron {
	c := cron.New()
	err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		snap := Collect(ctx, p)
		if !snap.Healthy {
			log.Printf("WARN: periodic pool probe reported unhealthy: %+v", snap.Stats)
		}
	})
	if err != nil {
		log.Printf("ERROR: failed to schedule pool probe - %v", err)
		return c
	}
	c.Start()
	return c
}

// TrackRequest records one handled HTTP request.
func TrackRequest(method, endpoint string, status int, duration time.Duration) {
	requestCount.WithLabelValues(method, endpoint, httpStatusLabel(status)).Inc()
	requestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackUpload records one upload attempt with its outcome.
func TrackUpload(status string) {
	fileUploadsTotal.WithLabelValues(status).Inc()
}

// TrackDownload records one file download.
func TrackDownload() {
	fileDownloadsTotal.Inc()
}

func httpStatusLabel(status int) string {
	switch {
	case status < 200:
		return "1xx"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
