package ctsdepartures

import (
	"encoding/json"
	"net/http"

	"github.com/theoremus-urban-solutions/cts-departures/internal/logging"
)

// handleMessagesJSON passes the network-wide general messages through.
func (a *App) handleMessagesJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	messages, err := a.Client.GeneralMessages(r.Context())
	if err != nil {
		logging.LogError(a.Logger, "general messages fetch failed", err)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write(buildErrorPayload("Upstream CTS request failed."))
		return
	}
	_ = json.NewEncoder(w).Encode(messages)
}
