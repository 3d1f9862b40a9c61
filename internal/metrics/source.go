// Package metrics provides the chart series shown on the dashboard. The
// Source interface is what a real telemetry feed would implement; the Mock
// implementation ships placeholder data until one exists.
package metrics

import (
	"context"
	"time"
)

// SystemPoint is one hourly bucket of system performance figures.
type SystemPoint struct {
	Time     time.Time `json:"time"`
	CPU      float64   `json:"cpu"`      // percent
	Memory   float64   `json:"memory"`   // percent
	Requests int       `json:"requests"` // requests per hour
}

// ActivityPoint is one hourly bucket of the active-user count.
type ActivityPoint struct {
	Time        time.Time `json:"time"`
	ActiveUsers int       `json:"active_users"`
}

// Source produces the dashboard chart series. Both series cover the last 24
// hours, one bucket per hour, most recent last.
type Source interface {
	SystemSeries(ctx context.Context) ([]SystemPoint, error)
	ActivitySeries(ctx context.Context) ([]ActivityPoint, error)
}
