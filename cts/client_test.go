package cts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "c49db985-64e9-4d92-a99c-0224cb4ad7b0"

const stopPointsFixture = `{
  "StopPointsDelivery": {
    "ResponseTimestamp": "2026-02-11T09:30:00+01:00",
    "AnnotatedStopPointRef": [
      {
        "StopPointRef": "275B",
        "StopName": "Observatoire",
        "Location": {"Longitude": 7.7648, "Latitude": 48.5793},
        "Extension": {"StopCode": "275B", "LogicalStopCode": 275, "IsFlexhopStop": false}
      },
      {
        "StopPointRef": "101A",
        "StopName": "Ankara",
        "Location": {"Longitude": 7.7221, "Latitude": 48.5906},
        "Extension": {"StopCode": "101A", "LogicalStopCode": "101", "IsFlexhopStop": true}
      },
      {
        "StopPointRef": "623A",
        "StopName": "Homme de Fer",
        "Location": {"Longitude": 7.7455, "Latitude": 48.5833},
        "Extension": {"StopCode": "623A", "LogicalStopCode": 623, "IsFlexhopStop": false}
      }
    ]
  }
}`

const stopMonitoringFixture = `{
  "ServiceDelivery": {
    "ResponseTimestamp": "2026-02-11T09:30:00+01:00",
    "StopMonitoringDelivery": [
      {
        "ValidUntil": "2026-02-11T09:31:00+01:00",
        "MonitoringRef": "623",
        "MonitoredStopVisit": [
          {
            "StopCode": "623A",
            "MonitoredVehicleJourney": {
              "LineRef": "A",
              "VehicleMode": "tram",
              "PublishedLineName": "A",
              "DestinationName": "Parc des Sports",
              "MonitoredCall": {
                "StopPointName": "Homme de Fer",
                "ExpectedDepartureTime": "2026-02-11T09:34:10+01:00",
                "Extension": {"IsRealTime": true}
              }
            }
          },
          {
            "StopCode": "623B",
            "MonitoredVehicleJourney": {
              "LineRef": "10",
              "VehicleMode": "bus",
              "PublishedLineName": "10",
              "DestinationName": "Jean Jaures",
              "MonitoredCall": {
                "StopPointName": "Homme de Fer",
                "ExpectedDepartureTime": "2026-02-11T09:41:00+01:00",
                "Extension": {"IsRealTime": false}
              }
            }
          }
        ]
      }
    ]
  }
}`

const generalMessageFixture = `{
  "ServiceDelivery": {
    "ResponseTimestamp": "2026-02-11T09:30:00+01:00",
    "GeneralMessageDelivery": {
      "InfoMessage": [
        {
          "ItemIdentifier": "item-1",
          "InfoMessageIdentifier": "msg-1",
          "InfoChannelRef": "Perturbation",
          "Content": {
            "ImpactStartDateTime": "2026-02-10T04:30:00+01:00",
            "ImpactEndDateTime": "2026-02-12T23:59:00+01:00",
            "ImpactedLineRef": ["A", "D"],
            "Priority": "Normal",
            "Message": [
              {"MessageZoneRef": "title", "MessageText": [{"Value": "Travaux place de la Gare", "Lang": "FR"}]},
              {"MessageZoneRef": "period", "MessageText": [{"Value": "du 10 au 12 fevrier", "Lang": "FR"}]},
              {"MessageZoneRef": "details", "MessageText": [{"Value": "Trams deviés via Faubourg National.", "Lang": "FR"}]}
            ]
          }
        },
        {
          "ItemIdentifier": "item-2",
          "InfoMessageIdentifier": "msg-2",
          "InfoChannelRef": "Information",
          "Content": {
            "ImpactStartDateTime": "2026-02-11T00:00:00+01:00",
            "ImpactEndDateTime": "2026-02-11T23:59:00+01:00",
            "ImpactedLineRef": ["C"],
            "Priority": "Low",
            "Message": [
              {"MessageZoneRef": "title", "MessageText": [{"Value": "Renfort de service", "Lang": "FR"}]}
            ]
          }
        }
      ]
    }
  }
}`

const linesFixture = `{
  "LinesDelivery": {
    "ResponseTimestamp": "2026-02-11T09:30:00+01:00",
    "AnnotatedLineRef": [
      {"LineRef": "A", "LineName": "Parc des Sports - Illkirch Graffenstaden"},
      {"LineRef": "10", "LineName": "Jean Jaures - Brant Universite"}
    ]
  }
}`

// newTestClient builds a client against an httptest server that checks the
// basic auth convention (token as username, empty password) on every request.
func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request), opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok, "request must carry basic auth")
		require.Equal(t, testToken, user, "token must travel as the username")
		require.Empty(t, pass, "password must stay empty")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return New(testToken, append([]Option{WithBaseURL(srv.URL)}, opts...)...)
}

func TestDiscoverStopPointsSortedAndMapped(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stoppoints-discovery", r.URL.Path)
		_, _ = w.Write([]byte(stopPointsFixture))
	})

	stops, err := client.DiscoverStopPoints(context.Background())
	require.NoError(t, err)
	require.Len(t, stops, 3)

	// sorted ascending by display name regardless of payload order
	assert.Equal(t, []string{"Ankara", "Homme de Fer", "Observatoire"},
		[]string{stops[0].Name, stops[1].Name, stops[2].Name})

	ankara := stops[0]
	assert.Equal(t, "101A", ankara.Ref)
	assert.Equal(t, "101A", ankara.Code)
	assert.Equal(t, "101", ankara.LogicalCode, "string logical codes pass through")
	assert.True(t, ankara.Flexhop)
	assert.InDelta(t, 7.7221, ankara.Coordinates.Longitude, 1e-9)
	assert.InDelta(t, 48.5906, ankara.Coordinates.Latitude, 1e-9)

	assert.Equal(t, "623", stops[1].LogicalCode, "numeric logical codes become strings")
}

func TestMonitorStopMapsVisits(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stop-monitoring", r.URL.Path)
		assert.Equal(t, "623", r.URL.Query().Get("monitoringRef"))
		assert.Equal(t, "A", r.URL.Query().Get("lineRef"))
		_, _ = w.Write([]byte(stopMonitoringFixture))
	})

	visits, err := client.MonitorStop(context.Background(), "623", "A")
	require.NoError(t, err)
	require.Len(t, visits, 2)

	first := visits[0]
	assert.Equal(t, "623", first.MonitoringRef, "delivery MonitoringRef copied onto the visit")
	assert.Equal(t, "623A", first.StopCode)
	assert.Equal(t, "A", first.LineRef)
	assert.Equal(t, "tram", first.VehicleMode)
	assert.Equal(t, "A", first.LineName)
	assert.Equal(t, "Parc des Sports", first.DestinationName)
	assert.Equal(t, "Homme de Fer", first.StopPointName)
	assert.True(t, first.RealTime)

	wantDeparture := time.Date(2026, 2, 11, 9, 34, 10, 0, time.FixedZone("", 3600))
	assert.True(t, first.Departure.Equal(wantDeparture), "departure %v", first.Departure)
	wantValidUntil := time.Date(2026, 2, 11, 9, 31, 0, 0, time.FixedZone("", 3600))
	assert.True(t, first.ValidUntil.Equal(wantValidUntil), "valid until %v", first.ValidUntil)

	second := visits[1]
	assert.Equal(t, "bus", second.VehicleMode)
	assert.False(t, second.RealTime)
}

func TestMonitorStopOmitsEmptyLineRef(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, hasLineRef := r.URL.Query()["lineRef"]
		assert.False(t, hasLineRef, "empty lineRef must be omitted, not sent blank")
		_, _ = w.Write([]byte(stopMonitoringFixture))
	})

	_, err := client.MonitorStop(context.Background(), "623", "")
	require.NoError(t, err)
}

func TestMonitorStopZeroVisits(t *testing.T) {
	payloads := map[string]string{
		"empty array": `{"ServiceDelivery": {"StopMonitoringDelivery": [
			{"ValidUntil": "2026-02-11T09:31:00+01:00", "MonitoringRef": "275", "MonitoredStopVisit": []}]}}`,
		"null": `{"ServiceDelivery": {"StopMonitoringDelivery": [
			{"ValidUntil": "2026-02-11T09:31:00+01:00", "MonitoringRef": "275", "MonitoredStopVisit": null}]}}`,
		"absent": `{"ServiceDelivery": {"StopMonitoringDelivery": [
			{"ValidUntil": "2026-02-11T09:31:00+01:00", "MonitoringRef": "275"}]}}`,
	}
	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(payload))
			})

			visits, err := client.MonitorStop(context.Background(), "275", "")
			require.NoError(t, err, "no upcoming departure is a valid outcome")
			require.NotNil(t, visits)
			assert.Empty(t, visits)
		})
	}
}

func TestMonitorStopMissingDelivery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ServiceDelivery": {"StopMonitoringDelivery": []}}`))
	})

	_, err := client.MonitorStop(context.Background(), "623", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCannotConnect)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantIs    error
		wantNotIs error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrInvalidToken, ErrCannotConnect},
		{"server error", http.StatusInternalServerError, ErrCannotConnect, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := client.DiscoverStopPoints(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantIs)
			assert.NotErrorIs(t, err, tt.wantNotIs)
		})
	}

	t.Run("other statuses stay unclassified", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})

		_, err := client.GeneralMessages(context.Background())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidToken)
		assert.NotErrorIs(t, err, ErrCannotConnect)
	})

	t.Run("malformed body stays unclassified", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"ServiceDelivery": `))
		})

		_, err := client.MonitorStop(context.Background(), "623", "")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidToken)
		assert.NotErrorIs(t, err, ErrCannotConnect)
	})
}

func TestTimeoutClassifiedAsCannotConnect(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(stopMonitoringFixture))
	}, WithTimeout(20*time.Millisecond))

	_, err := client.MonitorStop(context.Background(), "623", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCannotConnect)
}

func TestGeneralMessagesZoneScan(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/general-message", r.URL.Path)
		_, _ = w.Write([]byte(generalMessageFixture))
	})

	messages, err := client.GeneralMessages(context.Background())
	require.NoError(t, err)
	require.Len(t, messages, 2)

	first := messages[0]
	assert.Equal(t, "item-1", first.ItemID)
	assert.Equal(t, "msg-1", first.MessageID)
	assert.Equal(t, "Perturbation", first.ChannelRef)
	assert.Equal(t, []string{"A", "D"}, first.ImpactedLineRefs)
	assert.Equal(t, "Normal", first.Priority)
	assert.Equal(t, "Travaux place de la Gare", first.Content.Title)
	assert.Equal(t, "du 10 au 12 fevrier", first.Content.Period)
	assert.Equal(t, "Trams deviés via Faubourg National.", first.Content.Value)

	second := messages[1]
	assert.Equal(t, "Renfort de service", second.Content.Title)
	assert.Empty(t, second.Content.Period, "absent zones map to empty strings")
	assert.Empty(t, second.Content.Value)
}

func TestDiscoverLines(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lines-discovery", r.URL.Path)
		_, _ = w.Write([]byte(linesFixture))
	})

	lines, err := client.DiscoverLines(context.Background())
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, Line{Ref: "A", Name: "Parc des Sports - Illkirch Graffenstaden"}, lines[0])
}

func TestRateLimitedClientStillServes(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(linesFixture))
	}, WithRateLimit(100, 1))

	for range 3 {
		_, err := client.DiscoverLines(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)
}
