package ctsdepartures

import (
	"encoding/json"
	"net/http"
)

// handleDeparturesJSON returns the current snapshot of every monitored stop.
func (a *App) handleDeparturesJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(a.Monitor.Snapshots())
}

// handleDepartureJSON returns the snapshot of one line/stop pair, looked up
// by monitoringRef and lineRef.
func (a *App) handleDepartureJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	params := map[string]string{}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	m, err := parseAndValidateDeparture(params)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write(buildErrorPayload(err.Error()))
		return
	}
	snap, ok := a.Monitor.SnapshotFor(m["lineref"], m["monitoringref"])
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write(buildErrorPayload("No such monitored stop: " + m["lineref"] + "_" + m["monitoringref"] + "."))
		return
	}
	_ = json.NewEncoder(w).Encode(snap)
}
