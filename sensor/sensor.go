package sensor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/theoremus-urban-solutions/cts-departures/config"
	"github.com/theoremus-urban-solutions/cts-departures/cts"
	"github.com/theoremus-urban-solutions/cts-departures/internal/clock"
	"github.com/theoremus-urban-solutions/cts-departures/internal/logging"
)

// StopMonitor is the client surface a sensor needs.
type StopMonitor interface {
	MonitorStop(ctx context.Context, stopCode, lineRef string) ([]cts.StopVisit, error)
}

// Attributes are the presentation attributes of the current departure.
type Attributes struct {
	VehicleType string    `json:"vehicle_type"`
	Line        string    `json:"line"`
	Destination string    `json:"destination"`
	DueIn       string    `json:"due_in"`
	DueAt       time.Time `json:"due_at"`
	StopCode    string    `json:"stop_code"`
	StopName    string    `json:"stop_name"`
	RealTime    bool      `json:"real_time"`
	NextIn      string    `json:"next_in"`
}

// Snapshot is an immutable copy of a sensor's displayed state.
type Snapshot struct {
	UniqueID    string     `json:"unique_id"`
	State       string     `json:"state"`
	Available   bool       `json:"available"`
	Icon        string     `json:"icon"`
	Attributes  Attributes `json:"attributes"`
	RefreshedAt time.Time  `json:"refreshed_at"`
}

// Departure tracks the next departure for one monitored stop. Refresh and
// Snapshot may be called from different goroutines.
type Departure struct {
	src  StopMonitor
	clk  clock.Clock
	stop config.MonitoredStop

	mu          sync.RWMutex
	state       string
	available   bool
	icon        string
	attrs       Attributes
	destination string
	refreshedAt time.Time
}

// NewDeparture creates a sensor for the given monitored stop.
func NewDeparture(stop config.MonitoredStop, src StopMonitor, clk clock.Clock) *Departure {
	return &Departure{
		src:  src,
		clk:  clk,
		stop: stop,
		icon: iconFor(""),
	}
}

// Stop returns the monitored stop this sensor tracks.
func (d *Departure) Stop() config.MonitoredStop { return d.stop }

// UniqueID returns the sensor's stable identifier, `{line_ref}_{stop_code}`.
func (d *Departure) UniqueID() string { return d.stop.UniqueID() }

// DeviceName returns the display name for the stop's device record. The
// destination is appended once a refresh has learned it.
func (d *Departure) DeviceName() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.destination == "" {
		return fmt.Sprintf("(%s) %s", d.stop.LineRef, d.stop.StopName)
	}
	return fmt.Sprintf("(%s) %s - %s", d.stop.LineRef, d.stop.StopName, d.destination)
}

// Refresh queries stop monitoring and recomputes the displayed state. Zero
// visits keep the previous state and mark the sensor unavailable without an
// error; a query failure also preserves the previous state and is returned
// for the scheduler to record.
func (d *Departure) Refresh(ctx context.Context) error {
	visits, err := d.src.MonitorStop(ctx, d.stop.StopCode, d.stop.LineRef)
	now := d.clk.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if err != nil {
		d.available = false
		return err
	}
	d.refreshedAt = now

	if len(visits) == 0 {
		// stale but shown: the previous value and attributes stay in place
		d.available = false
		logging.FromContext(ctx).Debug("no upcoming departure, keeping previous state",
			"monitoring_ref", d.stop.StopCode, "line_ref", d.stop.LineRef)
		return nil
	}

	current := visits[0]
	d.state = current.MinutesToDeparture(now)
	d.available = true
	d.icon = iconFor(current.VehicleMode)
	d.destination = current.DestinationName
	attrs := Attributes{
		VehicleType: current.VehicleMode,
		Line:        current.LineName,
		Destination: current.DestinationName,
		DueIn:       d.state,
		DueAt:       current.Departure,
		StopCode:    current.StopCode,
		StopName:    current.StopPointName,
		RealTime:    current.RealTime,
	}
	if len(visits) > 1 {
		attrs.NextIn = visits[1].MinutesToDeparture(now)
	}
	d.attrs = attrs
	return nil
}

// Snapshot returns a copy of the current displayed state.
func (d *Departure) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Snapshot{
		UniqueID:    d.stop.UniqueID(),
		State:       d.state,
		Available:   d.available,
		Icon:        d.icon,
		Attributes:  d.attrs,
		RefreshedAt: d.refreshedAt,
	}
}

func iconFor(vehicleMode string) string {
	if strings.EqualFold(vehicleMode, "bus") {
		return "mdi:bus"
	}
	return "mdi:tram"
}
