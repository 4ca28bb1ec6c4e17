package ctsdepartures

import (
	"encoding/json"
	"net/http"
)

type healthResponse struct {
	Status           string `json:"status"`
	MonitoredStops   int    `json:"monitored_stops"`
	LastRefreshEpoch int64  `json:"last_refresh_epoch"`
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	resp := healthResponse{
		Status:           "ok",
		MonitoredStops:   a.Monitor.StopCount(),
		LastRefreshEpoch: a.Monitor.LastRefreshEpoch(),
	}
	_ = json.NewEncoder(w).Encode(resp)
}
