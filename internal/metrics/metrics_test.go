package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObserveRequest("entity", ModePaged, 10*time.Millisecond, 8, nil)
	c.ObserveRequest("entity", ModePaged, 5*time.Millisecond, 0, errors.New("eof"))
	c.ObserveResult("entity")
	c.ObserveResult("entity")
	c.ObserveFault("connection")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("entity", ModePaged, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("entity", ModePaged, "error")))
	assert.Equal(t, 8.0, testutil.ToFloat64(c.entries.WithLabelValues("entity")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.results.WithLabelValues("entity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.faults.WithLabelValues("connection")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.duration))
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveRequest("listing", ModeSingle, time.Second, 1, nil)
		c.ObserveResult("listing")
		c.ObserveFault("protocol")
	})
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg).ObserveResult("dictionary")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `dirquery_results_materialized_total{shape="dictionary"} 1`))
}
