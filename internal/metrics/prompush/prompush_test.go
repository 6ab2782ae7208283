package prompush

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Cemag-pcp/projeto-epi-sub000/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackend(t *testing.T) {
	_, err := NewBackend("job", "")
	require.Error(t, err)

	b, err := NewBackend("", "http://pushgateway:9091")
	require.NoError(t, err)
	assert.Equal(t, "caepi_ingest", b.jobName)
}

func TestIncCounterRouting(t *testing.T) {
	b, err := NewBackend("caepi", "http://pushgateway:9091")
	require.NoError(t, err)

	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "fetch", "status": "success"})
	b.IncCounter(metrics.StepTotal, 2, metrics.Labels{"step": "fetch", "status": "success"})
	b.IncCounter(metrics.RecordsTotal, 7, metrics.Labels{"kind": "quarantined"})
	b.IncCounter(metrics.BatchesTotal, 3, nil)
	b.IncCounter(metrics.LoadRowsTotal, 5, metrics.Labels{"mode": "replace", "op": "inserted"})
	b.IncCounter("unknown_metric", 100, nil)

	assert.Equal(t, 3.0, testutil.ToFloat64(b.stepCounter.WithLabelValues("fetch", "success")))
	assert.Equal(t, 7.0, testutil.ToFloat64(b.recordCounter.WithLabelValues("quarantined")))
	assert.Equal(t, 3.0, testutil.ToFloat64(b.batchCounter))
	assert.Equal(t, 5.0, testutil.ToFloat64(b.loadCounter.WithLabelValues("replace", "inserted")))
}

func TestObserveHistogram(t *testing.T) {
	b, err := NewBackend("caepi", "http://pushgateway:9091")
	require.NoError(t, err)

	b.ObserveHistogram(metrics.StepDurationSeconds, 0.25, metrics.Labels{"step": "load", "status": "success"})
	b.ObserveHistogram("other", 1, nil)

	assert.Equal(t, 1, testutil.CollectAndCount(b.stepDuration))
}

func TestFlushPushesToGateway(t *testing.T) {
	var gotPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b, err := NewBackend("caepi_ingest", srv.URL)
	require.NoError(t, err)
	b.IncCounter(metrics.RecordsTotal, 1, metrics.Labels{"kind": "normalized"})

	require.NoError(t, b.Flush())
	p, _ := gotPath.Load().(string)
	assert.True(t, strings.HasSuffix(p, "/metrics/job/caepi_ingest"), p)
}
