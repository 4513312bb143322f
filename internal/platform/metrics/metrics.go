// Package metrics provides observability for the game server, mainly for
// balance and load testing analysis.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers performance and gameplay counters.
type Collector struct {
	// Tick metrics
	TickCount      int64
	TickLatencySum int64 // nanoseconds
	TickLatencyMax int64
	LastTickTime   time.Time

	// Economy metrics
	TradesExecuted int64
	TradesRejected int64
	GoldTraded     int64
	EventsFired    int64
	IncomePayouts  int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesOut       int64
	WSErrors            int64

	// System
	StartTime time.Time
	mu        sync.RWMutex
}

// Global collector instance
var collector = &Collector{
	StartTime: time.Now(),
}

// Get returns the global collector.
func Get() *Collector {
	return collector
}

// RecordTick records a simulation tick completion.
func (c *Collector) RecordTick(latency time.Duration) {
	atomic.AddInt64(&c.TickCount, 1)
	atomic.AddInt64(&c.TickLatencySum, int64(latency))

	// Update max (non-atomic but acceptable for metrics)
	if int64(latency) > atomic.LoadInt64(&c.TickLatencyMax) {
		atomic.StoreInt64(&c.TickLatencyMax, int64(latency))
	}

	c.mu.Lock()
	c.LastTickTime = time.Now()
	c.mu.Unlock()
}

// RecordTrade records a buy/sell attempt and its gold volume.
func (c *Collector) RecordTrade(gold int, ok bool) {
	if ok {
		atomic.AddInt64(&c.TradesExecuted, 1)
		atomic.AddInt64(&c.GoldTraded, int64(gold))
	} else {
		atomic.AddInt64(&c.TradesRejected, 1)
	}
}

// RecordEventFired records a world event trigger.
func (c *Collector) RecordEventFired() {
	atomic.AddInt64(&c.EventsFired, 1)
}

// RecordIncomePayout records a property income payment.
func (c *Collector) RecordIncomePayout() {
	atomic.AddInt64(&c.IncomePayouts, 1)
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records an outgoing WebSocket broadcast.
func (c *Collector) RecordWSMessage() {
	atomic.AddInt64(&c.WSMessagesOut, 1)
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tickCount := atomic.LoadInt64(&c.TickCount)

	var tickAvg float64
	if tickCount > 0 {
		tickAvg = float64(atomic.LoadInt64(&c.TickLatencySum)) / float64(tickCount) / 1e6 // ms
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"tick": map[string]interface{}{
			"count":          tickCount,
			"avg_latency_ms": tickAvg,
			"max_latency_ms": float64(atomic.LoadInt64(&c.TickLatencyMax)) / 1e6,
			"last_tick":      c.LastTickTime.Format(time.RFC3339),
		},

		"economy": map[string]interface{}{
			"trades_executed": atomic.LoadInt64(&c.TradesExecuted),
			"trades_rejected": atomic.LoadInt64(&c.TradesRejected),
			"gold_traded":     atomic.LoadInt64(&c.GoldTraded),
			"events_fired":    atomic.LoadInt64(&c.EventsFired),
			"income_payouts":  atomic.LoadInt64(&c.IncomePayouts),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		snapshot := collector.Snapshot()
		json.NewEncoder(w).Encode(snapshot)
	}
}

// PrometheusHandler returns metrics in Prometheus format.
func PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		c := collector

		fmt.Fprintf(w, "# HELP mercader_tick_count Total simulation ticks\n")
		fmt.Fprintf(w, "# TYPE mercader_tick_count counter\n")
		fmt.Fprintf(w, "mercader_tick_count %d\n\n", atomic.LoadInt64(&c.TickCount))

		fmt.Fprintf(w, "# HELP mercader_tick_latency_max_ms Maximum tick latency\n")
		fmt.Fprintf(w, "# TYPE mercader_tick_latency_max_ms gauge\n")
		fmt.Fprintf(w, "mercader_tick_latency_max_ms %.2f\n\n", float64(atomic.LoadInt64(&c.TickLatencyMax))/1e6)

		fmt.Fprintf(w, "# HELP mercader_trades_total Trade attempts by outcome\n")
		fmt.Fprintf(w, "# TYPE mercader_trades_total counter\n")
		fmt.Fprintf(w, "mercader_trades_total{outcome=\"executed\"} %d\n", atomic.LoadInt64(&c.TradesExecuted))
		fmt.Fprintf(w, "mercader_trades_total{outcome=\"rejected\"} %d\n\n", atomic.LoadInt64(&c.TradesRejected))

		fmt.Fprintf(w, "# HELP mercader_gold_traded Total gold moved through markets\n")
		fmt.Fprintf(w, "# TYPE mercader_gold_traded counter\n")
		fmt.Fprintf(w, "mercader_gold_traded %d\n\n", atomic.LoadInt64(&c.GoldTraded))

		fmt.Fprintf(w, "# HELP mercader_events_fired Total world events triggered\n")
		fmt.Fprintf(w, "# TYPE mercader_events_fired counter\n")
		fmt.Fprintf(w, "mercader_events_fired %d\n\n", atomic.LoadInt64(&c.EventsFired))

		fmt.Fprintf(w, "# HELP mercader_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE mercader_ws_connections gauge\n")
		fmt.Fprintf(w, "mercader_ws_connections %d\n", atomic.LoadInt64(&c.WSConnectionsActive))
	}
}
