package handlers

import (
	"fmt"
	"net/http"
	"time"

	"projecthub/internal/engine/webhooks"
)

// MetricsHandler exports process counters in the Prometheus text format.
type MetricsHandler struct {
	stats   *webhooks.Stats
	started time.Time
}

func NewMetricsHandler(stats *webhooks.Stats) *MetricsHandler {
	return &MetricsHandler{stats: stats, started: time.Now()}
}

func (h *MetricsHandler) Export(w http.ResponseWriter, r *http.Request) {
	snap := h.stats.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP projecthub_up Is the server up\n")
	fmt.Fprintf(w, "# TYPE projecthub_up gauge\n")
	fmt.Fprintf(w, "projecthub_up 1\n")
	fmt.Fprintf(w, "# HELP projecthub_uptime_seconds Seconds since the server started\n")
	fmt.Fprintf(w, "# TYPE projecthub_uptime_seconds gauge\n")
	fmt.Fprintf(w, "projecthub_uptime_seconds %d\n", int64(time.Since(h.started).Seconds()))

	counters := []struct {
		name, help string
		value      int64
	}{
		{"projecthub_webhook_deliveries_total", "Webhook deliveries attempted", snap.Attempted},
		{"projecthub_webhook_deliveries_succeeded_total", "Webhook deliveries answered with 2xx", snap.Succeeded},
		{"projecthub_webhook_deliveries_failed_total", "Webhook deliveries that failed", snap.Failed},
		{"projecthub_webhooks_disabled_total", "Webhooks disabled by the failure threshold", snap.Disabled},
	}
	for _, c := range counters {
		fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", c.name)
		fmt.Fprintf(w, "%s %d\n", c.name, c.value)
	}
}
