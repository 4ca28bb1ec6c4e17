package cts

import (
	"encoding/json"
	"fmt"
	"time"
)

// Wire shapes for the SIRI-lite JSON payloads. Only the fields the typed
// records need are declared; everything else in the payload is ignored.

type stopPointsEnvelope struct {
	StopPointsDelivery struct {
		AnnotatedStopPointRef []annotatedStopPoint `json:"AnnotatedStopPointRef"`
	} `json:"StopPointsDelivery"`
}

type annotatedStopPoint struct {
	StopPointRef string `json:"StopPointRef"`
	StopName     string `json:"StopName"`
	Location     struct {
		Longitude float64 `json:"Longitude"`
		Latitude  float64 `json:"Latitude"`
	} `json:"Location"`
	Extension struct {
		StopCode string `json:"StopCode"`
		// LogicalStopCode is numeric in some payloads and a string in others.
		LogicalStopCode json.Number `json:"LogicalStopCode"`
		IsFlexhopStop   bool        `json:"IsFlexhopStop"`
	} `json:"Extension"`
}

func (p annotatedStopPoint) toStopPoint() StopPoint {
	return StopPoint{
		Ref: p.StopPointRef,
		Coordinates: Coordinates{
			Longitude: p.Location.Longitude,
			Latitude:  p.Location.Latitude,
		},
		Name:        p.StopName,
		Code:        p.Extension.StopCode,
		LogicalCode: p.Extension.LogicalStopCode.String(),
		Flexhop:     p.Extension.IsFlexhopStop,
	}
}

type stopMonitoringEnvelope struct {
	ServiceDelivery struct {
		StopMonitoringDelivery []stopMonitoringDelivery `json:"StopMonitoringDelivery"`
	} `json:"ServiceDelivery"`
}

type stopMonitoringDelivery struct {
	ValidUntil         string               `json:"ValidUntil"`
	MonitoringRef      string               `json:"MonitoringRef"`
	MonitoredStopVisit []monitoredStopVisit `json:"MonitoredStopVisit"`
}

type monitoredStopVisit struct {
	StopCode                string `json:"StopCode"`
	MonitoredVehicleJourney struct {
		LineRef           string `json:"LineRef"`
		VehicleMode       string `json:"VehicleMode"`
		PublishedLineName string `json:"PublishedLineName"`
		DestinationName   string `json:"DestinationName"`
		MonitoredCall     struct {
			StopPointName         string `json:"StopPointName"`
			ExpectedDepartureTime string `json:"ExpectedDepartureTime"`
			Extension             struct {
				IsRealTime bool `json:"IsRealTime"`
			} `json:"Extension"`
		} `json:"MonitoredCall"`
	} `json:"MonitoredVehicleJourney"`
}

func (d stopMonitoringDelivery) toStopVisits() ([]StopVisit, error) {
	validUntil, err := parseAPITime(d.ValidUntil)
	if err != nil {
		return nil, fmt.Errorf("delivery ValidUntil: %w", err)
	}

	visits := make([]StopVisit, 0, len(d.MonitoredStopVisit))
	for i, v := range d.MonitoredStopVisit {
		journey := v.MonitoredVehicleJourney
		departure, err := parseAPITime(journey.MonitoredCall.ExpectedDepartureTime)
		if err != nil {
			return nil, fmt.Errorf("visit %d ExpectedDepartureTime: %w", i, err)
		}
		visits = append(visits, StopVisit{
			MonitoringRef:   d.MonitoringRef,
			ValidUntil:      validUntil,
			StopCode:        v.StopCode,
			LineRef:         journey.LineRef,
			VehicleMode:     journey.VehicleMode,
			LineName:        journey.PublishedLineName,
			DestinationName: journey.DestinationName,
			StopPointName:   journey.MonitoredCall.StopPointName,
			Departure:       departure,
			RealTime:        journey.MonitoredCall.Extension.IsRealTime,
		})
	}
	return visits, nil
}

type generalMessageEnvelope struct {
	ServiceDelivery struct {
		GeneralMessageDelivery struct {
			InfoMessage []infoMessageWire `json:"InfoMessage"`
		} `json:"GeneralMessageDelivery"`
	} `json:"ServiceDelivery"`
}

type infoMessageWire struct {
	ItemIdentifier        string `json:"ItemIdentifier"`
	InfoMessageIdentifier string `json:"InfoMessageIdentifier"`
	InfoChannelRef        string `json:"InfoChannelRef"`
	Content               struct {
		ImpactStartDateTime string        `json:"ImpactStartDateTime"`
		ImpactEndDateTime   string        `json:"ImpactEndDateTime"`
		ImpactedLineRef     []string      `json:"ImpactedLineRef"`
		Priority            string        `json:"Priority"`
		Message             []messageZone `json:"Message"`
	} `json:"Content"`
}

type messageZone struct {
	MessageZoneRef string `json:"MessageZoneRef"`
	MessageText    []struct {
		Value string `json:"Value"`
	} `json:"MessageText"`
}

// zoneText returns the first text value tagged with the given zone, or ""
// when the zone is absent.
func zoneText(zones []messageZone, zone string) string {
	for _, z := range zones {
		if z.MessageZoneRef == zone && len(z.MessageText) > 0 {
			return z.MessageText[0].Value
		}
	}
	return ""
}

func (m infoMessageWire) toInfoMessage() (InfoMessage, error) {
	impactStart, err := parseAPITime(m.Content.ImpactStartDateTime)
	if err != nil {
		return InfoMessage{}, fmt.Errorf("message %s ImpactStartDateTime: %w", m.ItemIdentifier, err)
	}
	impactEnd, err := parseAPITime(m.Content.ImpactEndDateTime)
	if err != nil {
		return InfoMessage{}, fmt.Errorf("message %s ImpactEndDateTime: %w", m.ItemIdentifier, err)
	}
	return InfoMessage{
		ItemID:           m.ItemIdentifier,
		MessageID:        m.InfoMessageIdentifier,
		ChannelRef:       m.InfoChannelRef,
		ImpactStart:      impactStart,
		ImpactEnd:        impactEnd,
		ImpactedLineRefs: m.Content.ImpactedLineRef,
		Priority:         m.Content.Priority,
		Content: MessageContent{
			Title:  zoneText(m.Content.Message, "title"),
			Period: zoneText(m.Content.Message, "period"),
			Value:  zoneText(m.Content.Message, "details"),
		},
	}, nil
}

type linesEnvelope struct {
	LinesDelivery struct {
		AnnotatedLineRef []annotatedLine `json:"AnnotatedLineRef"`
	} `json:"LinesDelivery"`
}

type annotatedLine struct {
	LineRef  string `json:"LineRef"`
	LineName string `json:"LineName"`
}

// parseAPITime parses the ISO 8601 timestamps the API emits (RFC 3339 with a
// numeric offset).
func parseAPITime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
