// Operational endpoints: /health and /stats. /metrics is served by the
// metrics collector directly.
package gateway

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/etendo/erp-gateway/internal/utils"
)

type healthResponse struct {
	Status       string `json:"status"`
	Time         string `json:"time"`
	Sessions     int    `json:"sessions"`
	CacheEntries int    `json:"cacheEntries"`
}

// handleHealth returns gateway health status.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:       "ok",
		Time:         time.Now().Format(time.RFC3339),
		Sessions:     g.sessions.Len(),
		CacheEntries: g.cache.Len(),
	})
}

// handleStats returns a JSON snapshot of the request counters.
func (g *Gateway) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, g.metrics.FullStats())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := utils.MarshalNoEscape(v)
	if err != nil {
		log.Error().Err(err).Msg("encode response")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSONBytes(w, status, body)
}
