package api

import (
	"net/http"

	"github.com/okian/b24stats/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthHandler handles health check and metrics requests.
type HealthHandler struct {
	configured func() bool
}

// NewHealthHandler creates a new health handler. configured reports
// whether a webhook is set; nil means unknown.
func NewHealthHandler(configured func() bool) *HealthHandler {
	return &HealthHandler{configured: configured}
}

type healthResponse struct {
	Status            string `json:"status"`
	WebhookConfigured *bool  `json:"webhookConfigured,omitempty"`
}

// HandleHealth handles GET /healthz. The process is healthy even without a
// webhook; the flag tells the dashboard why reports fail.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if h.configured != nil {
		ok := h.configured()
		resp.WebhookConfigured = &ok
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleMetrics handles GET /metrics from the custom registry.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
