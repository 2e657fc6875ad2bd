package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.JoinsTotal.WithLabelValues("self", "prefix", "completed").Inc()
	m.CacheHitsTotal.Inc()
	m.CircuitBreakerState.WithLabelValues("postgres").Set(1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.JoinsTotal.WithLabelValues("self", "prefix", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("postgres")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["simjoin_joins_total"])
}

func TestNewTwiceOnOneRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

func TestMuxListsJoinMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.JoinsTotal.WithLabelValues("inner", "prefix", "completed").Inc()
	m.HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/joins", "200").Inc()

	srv := httptest.NewServer(NewMux(reg))
	defer srv.Close()

	index := get(t, srv.URL+"/")
	assert.Contains(t, index, "simjoin_joins_total")
	assert.NotContains(t, index, "http_requests_total")

	scrape := get(t, srv.URL+"/metrics")
	assert.Contains(t, scrape, `simjoin_joins_total{algorithm="prefix",kind="inner",status="completed"} 1`)

	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func get(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}
