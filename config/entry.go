package config

import "strings"

// Entry is the persisted configuration created by the wizard: the API token
// and the set of monitored stops.
type Entry struct {
	APIToken       string          `yaml:"api_token" json:"api_token"`
	MonitoredStops []MonitoredStop `yaml:"monitored_stops" json:"monitored_stops"`
}

// MonitoredStop is one stop/line pair selected for monitoring. The
// (LineRef, StopCode) pair is unique within an Entry.
type MonitoredStop struct {
	LineRef  string `yaml:"line_ref" json:"line_ref"`
	StopCode string `yaml:"stop_code" json:"stop_code"`
	StopName string `yaml:"stop_name" json:"stop_name"`
}

// UniqueID returns the composite key identifying this pair, used as the
// device unique ID in the registry.
func (s MonitoredStop) UniqueID() string {
	return s.LineRef + "_" + s.StopCode
}

// SplitUniqueID inverts MonitoredStop.UniqueID, splitting on the first
// underscore. ok is false when id has no underscore.
func SplitUniqueID(id string) (lineRef, stopCode string, ok bool) {
	return strings.Cut(id, "_")
}

// HasStop reports whether the (lineRef, stopCode) pair is already monitored.
func (e *Entry) HasStop(lineRef, stopCode string) bool {
	for _, s := range e.MonitoredStops {
		if s.LineRef == lineRef && s.StopCode == stopCode {
			return true
		}
	}
	return false
}

// AddStop appends the stop unless its (LineRef, StopCode) pair is already
// present. It returns false, leaving the set unchanged, on a duplicate.
func (e *Entry) AddStop(stop MonitoredStop) bool {
	if e.HasStop(stop.LineRef, stop.StopCode) {
		return false
	}
	e.MonitoredStops = append(e.MonitoredStops, stop)
	return true
}

// RemoveStop deletes the one stop matching the pair, preserving the order of
// the others. It returns false when no stop matches.
func (e *Entry) RemoveStop(lineRef, stopCode string) bool {
	for i, s := range e.MonitoredStops {
		if s.LineRef == lineRef && s.StopCode == stopCode {
			e.MonitoredStops = append(e.MonitoredStops[:i], e.MonitoredStops[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy, so a wizard session can mutate freely until it
// persists.
func (e *Entry) Clone() *Entry {
	clone := &Entry{APIToken: e.APIToken}
	if len(e.MonitoredStops) > 0 {
		clone.MonitoredStops = make([]MonitoredStop, len(e.MonitoredStops))
		copy(clone.MonitoredStops, e.MonitoredStops)
	}
	return clone
}
