// Package sensor computes the displayed departure state for one monitored
// stop.
//
// A Departure sensor wraps one (line, stop) pair. Each refresh queries stop
// monitoring and derives the state (whole minutes until the next departure,
// as a string) plus the presentation attributes. A refresh that returns no
// visits keeps the previous state and marks the sensor unavailable instead
// of failing; the scheduler owns retry cadence, not this package.
package sensor
