package metrics

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	goredis "github.com/go-redis/redis/v8"
)

// HealthStatus tracks the bot's liveness for the /healthz endpoint.
type HealthStatus struct {
	mu sync.RWMutex

	Symbol       string
	Interval     string
	LastCycleAt  time.Time
	LastCycleOK  bool
	LastError    string
	StaleAfter   time.Duration
	LastSignalAt time.Time

	// Optional dependencies; unchecked ones do not affect the status.
	RedisEnabled    bool
	RedisConnected  bool
	RedisLatencyMs  float64
	SQLiteEnabled   bool
	SQLiteOK        bool
	SQLiteLatencyMs float64
	LastCheckAt     time.Time
	StartedAt       time.Time

	now func() time.Time
}

// NewHealthStatus returns a health status for symbol@interval. A cycle older
// than staleAfter marks the bot unhealthy.
func NewHealthStatus(symbol, interval string, staleAfter time.Duration) *HealthStatus {
	return &HealthStatus{
		Symbol:     symbol,
		Interval:   interval,
		StaleAfter: staleAfter,
		StartedAt:  time.Now(),
		now:        time.Now,
	}
}

// RecordCycle stores the result of a poll cycle.
func (h *HealthStatus) RecordCycle(at time.Time, err error) {
	h.mu.Lock()
	h.LastCycleAt = at
	h.LastCycleOK = err == nil
	h.LastError = ""
	if err != nil {
		h.LastError = err.Error()
	}
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastSignal(t time.Time) {
	h.mu.Lock()
	h.LastSignalAt = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisEnabled = true
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = h.now()
	h.mu.Unlock()
}

// CheckSQLite pings the journal database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteEnabled = true
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = h.now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks until ctx is done.
// Either dependency may be nil.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// HealthReport is the /healthz body.
type HealthReport struct {
	Status          string  `json:"status"`
	Symbol          string  `json:"symbol"`
	Interval        string  `json:"interval"`
	Uptime          string  `json:"uptime"`
	LastCycleAt     string  `json:"last_cycle_at"`
	CycleAge        string  `json:"cycle_age"`
	LastCycleOK     bool    `json:"last_cycle_ok"`
	LastError       string  `json:"last_error,omitempty"`
	LastSignalAt    string  `json:"last_signal_at,omitempty"`
	RedisConnected  *bool   `json:"redis_connected,omitempty"`
	RedisLatencyMs  float64 `json:"redis_latency_ms,omitempty"`
	SQLiteOK        *bool   `json:"sqlite_ok,omitempty"`
	SQLiteLatencyMs float64 `json:"sqlite_latency_ms,omitempty"`
}

// Report computes the current status. "starting" until the first cycle,
// "unhealthy" when the last cycle is stale, "degraded" when the last cycle
// failed or an enabled dependency is down.
func (h *HealthStatus) Report() (HealthReport, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.now()
	r := HealthReport{
		Symbol:      h.Symbol,
		Interval:    h.Interval,
		Uptime:      now.Sub(h.StartedAt).Round(time.Second).String(),
		LastCycleOK: h.LastCycleOK,
		LastError:   h.LastError,
	}
	if !h.LastSignalAt.IsZero() {
		r.LastSignalAt = h.LastSignalAt.Format(time.RFC3339)
	}
	if h.RedisEnabled {
		ok := h.RedisConnected
		r.RedisConnected = &ok
		r.RedisLatencyMs = h.RedisLatencyMs
	}
	if h.SQLiteEnabled {
		ok := h.SQLiteOK
		r.SQLiteOK = &ok
		r.SQLiteLatencyMs = h.SQLiteLatencyMs
	}

	if h.LastCycleAt.IsZero() {
		r.Status = "starting"
		return r, http.StatusServiceUnavailable
	}
	age := now.Sub(h.LastCycleAt)
	r.LastCycleAt = h.LastCycleAt.Format(time.RFC3339)
	r.CycleAge = age.Round(time.Millisecond).String()

	switch {
	case h.StaleAfter > 0 && age > h.StaleAfter:
		r.Status = "unhealthy"
		return r, http.StatusServiceUnavailable
	case !h.LastCycleOK,
		h.RedisEnabled && !h.RedisConnected,
		h.SQLiteEnabled && !h.SQLiteOK:
		r.Status = "degraded"
		return r, http.StatusOK
	default:
		r.Status = "healthy"
		return r, http.StatusOK
	}
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report, code := h.Report()
	body, err := sonic.Marshal(report)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}
