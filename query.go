package ctsdepartures

import (
	"encoding/json"
	"strings"
)

type QueryError struct{ Msg string }

func (e *QueryError) Error() string { return e.Msg }

// parseAndValidateDeparture checks the single-departure lookup parameters.
// Parameter names are case-insensitive.
func parseAndValidateDeparture(params map[string]string) (map[string]string, error) {
	m := map[string]string{}
	for k, v := range params {
		m[lower(k)] = strings.TrimSpace(v)
	}
	if m["monitoringref"] == "" {
		return nil, &QueryError{Msg: "You must provide a MonitoringRef."}
	}
	if m["lineref"] == "" {
		return nil, &QueryError{Msg: "You must provide a LineRef."}
	}
	return m, nil
}

func lower(s string) string {
	bs := []rune(s)
	for i, r := range bs {
		if r >= 'A' && r <= 'Z' {
			bs[i] = r + 32
		}
	}
	return string(bs)
}

func buildErrorPayload(msg string) []byte {
	type errorResponse struct {
		Error struct {
			Description string `json:"Description"`
		} `json:"Error"`
	}
	var e errorResponse
	e.Error.Description = msg
	b, _ := json.Marshal(e)
	return b
}
