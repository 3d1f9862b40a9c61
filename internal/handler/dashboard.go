package handler

import (
	"net/http"

	"github.com/opsdesk/opsdesk/internal/dashboard"
	"github.com/opsdesk/opsdesk/internal/metrics"
)

// DashboardHandler serves the aggregated dashboard view and the chart series
// behind it.
type DashboardHandler struct {
	svc    *dashboard.Service
	source metrics.Source
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(svc *dashboard.Service, source metrics.Source) *DashboardHandler {
	return &DashboardHandler{svc: svc, source: source}
}

// GetDashboard returns one full dashboard snapshot: user statistics, recent
// registrations, the newest ticket rows, and both chart series.
// GET /api/v1/dashboard
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Snapshot(r.Context())
	if err != nil {
		writeRetryableError(w, http.StatusBadGateway, "Failed to load dashboard data: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// SystemMetrics returns the 24-bucket system performance series.
// GET /api/v1/metrics/system
func (h *DashboardHandler) SystemMetrics(w http.ResponseWriter, r *http.Request) {
	series, err := h.source.SystemSeries(r.Context())
	if err != nil {
		writeRetryableError(w, http.StatusBadGateway, "Failed to load system metrics: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"series": series})
}

// ActivityMetrics returns the 24-bucket user activity series.
// GET /api/v1/metrics/activity
func (h *DashboardHandler) ActivityMetrics(w http.ResponseWriter, r *http.Request) {
	series, err := h.source.ActivitySeries(r.Context())
	if err != nil {
		writeRetryableError(w, http.StatusBadGateway, "Failed to load activity metrics: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"series": series})
}
