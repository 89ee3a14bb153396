package health

import (
	"encoding/json"
	"net/http"
)

// Handler serves the aggregated health of a Monitor as JSON. Healthy and
// degraded report 200 so orchestrators do not restart a process running on
// its safe fallback; unhealthy reports 503.
func Handler(monitor *Monitor, systemName string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status := monitor.AggregateHealth(systemName)

		w.Header().Set("Content-Type", "application/json")
		if status.IsUnhealthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(status)
	})
}
