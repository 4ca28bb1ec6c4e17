package cts

import (
	"math"
	"strconv"
	"time"
)

// Coordinates is a WGS84 position.
type Coordinates struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// StopPoint is one physical stop returned by stop-point discovery. Several
// stop points (platforms) share a logical code, which is the monitoring
// reference used to query departures.
type StopPoint struct {
	Ref         string      `json:"ref"`
	Coordinates Coordinates `json:"coordinates"`
	Name        string      `json:"name"`
	Code        string      `json:"code"`
	LogicalCode string      `json:"logical_code"`
	Flexhop     bool        `json:"flexhop"`
}

// StopVisit is one upcoming departure from a monitored stop. ValidUntil and
// MonitoringRef come from the enclosing delivery and are copied onto every
// visit.
type StopVisit struct {
	MonitoringRef   string    `json:"monitoring_ref"`
	ValidUntil      time.Time `json:"valid_until"`
	StopCode        string    `json:"stop_code"`
	LineRef         string    `json:"line_ref"`
	VehicleMode     string    `json:"vehicle_mode"`
	LineName        string    `json:"line_name"`
	DestinationName string    `json:"destination_name"`
	StopPointName   string    `json:"stop_point_name"`
	Departure       time.Time `json:"departure"`
	RealTime        bool      `json:"real_time"`
}

// MinutesToDeparture returns the whole minutes between now and the departure,
// rounded down, as a decimal string. Negative values mean the departure time
// has already passed.
func (v StopVisit) MinutesToDeparture(now time.Time) string {
	minutes := math.Floor(v.Departure.Sub(now).Seconds() / 60)
	return strconv.Itoa(int(minutes))
}

// MessageContent is the localized text of a general message, split into the
// three zones the API tags: title, period and details.
type MessageContent struct {
	Title  string `json:"title"`
	Period string `json:"period"`
	Value  string `json:"value"`
}

// InfoMessage is one advisory service-status message.
type InfoMessage struct {
	ItemID           string         `json:"item_id"`
	MessageID        string         `json:"message_id"`
	ChannelRef       string         `json:"channel_ref"`
	ImpactStart      time.Time      `json:"impact_start"`
	ImpactEnd        time.Time      `json:"impact_end"`
	ImpactedLineRefs []string       `json:"impacted_line_refs"`
	Priority         string         `json:"priority"`
	Content          MessageContent `json:"content"`
}

// Line is one transit line returned by lines discovery.
type Line struct {
	Ref  string `json:"ref"`
	Name string `json:"name"`
}
