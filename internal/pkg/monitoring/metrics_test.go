package monitoring

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"

	"github.com/fotohosting/fotohost/internal/pkg/pool"
)

func TestCollectNilPoolIsUnhealthy(t *testing.T) {
	snap := Collect(context.Background(), nil)
	assert.False(t, snap.Healthy)
	assert.Equal(t, pool.Stats{}, snap.Stats)
	assert.NotZero(t, snap.Timestamp)
}

func TestHTTPStatusLabel(t *testing.T) {
	assert.Equal(t, "1xx", httpStatusLabel(101))
	assert.Equal(t, "2xx", httpStatusLabel(200))
	assert.Equal(t, "3xx", httpStatusLabel(302))
	assert.Equal(t, "4xx", httpStatusLabel(404))
	assert.Equal(t, "5xx", httpStatusLabel(503))
}

func TestTotalSuffixImpliesCounter(t *testing.T) {
	families, err := prometheus.DefaultGatherer.Gather()
	assert.NoError(t, err)

	registered := map[string]bool{}
	for _, mf := range families {
		registered[mf.GetName()] = true
		if strings.HasSuffix(mf.GetName(), "_total") {
			assert.Equal(t, dto.MetricType_COUNTER, mf.GetType(),
				"%v carries the _total suffix but is not a counter", mf.GetName())
		}
	}
	assert.True(t, registered["db_pool_failed_acquires"])
	assert.True(t, registered["db_pool_exhausted"])
}

func TestTrackCountersDoNotPanic(t *testing.T) {
	TrackRequest("GET", "/images", 200, 15*time.Millisecond)
	TrackUpload("success")
	TrackUpload("error")
	TrackDownload()
}
