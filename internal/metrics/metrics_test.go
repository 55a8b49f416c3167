package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMetrics_RegisterAndObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveSignal("BUY", "delivered")
	m.ObserveSignal("BUY", "delivered")
	m.ObserveSignal("SELL", "suppressed")
	m.ObserveBreaker(1)
	m.ObserveBreaker(2)
	m.ObserveBreaker(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SignalsTotal.WithLabelValues("BUY", "delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SignalsTotal.WithLabelValues("SELL", "suppressed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RedisCircuitBreakerTrips))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RedisCircuitBreakerState))

	// A second registry must accept a fresh set.
	assert.NotPanics(t, func() { NewMetrics(prometheus.NewRegistry()) })
	assert.Panics(t, func() { NewMetrics(reg) }, "duplicate registration")
}

func newTestHealth(now time.Time) *HealthStatus {
	h := NewHealthStatus("BTCUSDT", "15m", 5*time.Minute)
	h.StartedAt = now.Add(-time.Hour)
	h.now = func() time.Time { return now }
	return h
}

func TestHealth_Report(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	h := newTestHealth(now)
	r, code := h.Report()
	assert.Equal(t, "starting", r.Status)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	h.RecordCycle(now.Add(-time.Minute), nil)
	r, code = h.Report()
	assert.Equal(t, "healthy", r.Status)
	assert.Equal(t, http.StatusOK, code)
	assert.Nil(t, r.RedisConnected, "redis not enabled")

	h.RecordCycle(now.Add(-time.Minute), errors.New("fetch failed"))
	r, code = h.Report()
	assert.Equal(t, "degraded", r.Status)
	assert.Equal(t, "fetch failed", r.LastError)
	assert.Equal(t, http.StatusOK, code)

	h.RecordCycle(now.Add(-10*time.Minute), nil)
	r, code = h.Report()
	assert.Equal(t, "unhealthy", r.Status)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestHealth_DependencyDown(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	h := newTestHealth(now)
	h.RecordCycle(now, nil)

	h.mu.Lock()
	h.SQLiteEnabled, h.SQLiteOK = true, false
	h.mu.Unlock()

	r, _ := h.Report()
	assert.Equal(t, "degraded", r.Status)
	require.NotNil(t, r.SQLiteOK)
	assert.False(t, *r.SQLiteOK)
}

func TestServer_Endpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.CyclesTotal.Inc()

	now := time.Now()
	h := NewHealthStatus("BTCUSDT", "15m", time.Hour)
	h.RecordCycle(now, nil)

	srv := httptest.NewServer(NewServer("127.0.0.1:0", reg, h, zap.NewNop()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "peceto_cycles_total 1")

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ = io.ReadAll(resp.Body)

	var report map[string]interface{}
	require.NoError(t, sonic.Unmarshal(body, &report))
	assert.Equal(t, "healthy", report["status"])
	assert.Equal(t, "BTCUSDT", report["symbol"])
}
