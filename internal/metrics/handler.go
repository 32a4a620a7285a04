package metrics

import (
	"encoding/json"
	"net/http"
)

// Handler serves the current snapshot as JSON. circuits, when non-nil,
// supplies the breaker state per upstream; upstreams, when non-nil, supplies
// live per-upstream figures that replace the event-derived ones.
func (c *Collector) Handler(
	circuits func() map[string]string,
	upstreams func() map[string]UpstreamMetrics,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := c.metrics.Snapshot()
		if circuits != nil {
			snap.Circuits = circuits()
		}
		if upstreams != nil {
			for origin, um := range upstreams() {
				snap.Upstreams[origin] = um
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}
