package ctsdepartures

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/cts-departures/config"
	"github.com/theoremus-urban-solutions/cts-departures/cts"
	"github.com/theoremus-urban-solutions/cts-departures/internal/clock"
	"github.com/theoremus-urban-solutions/cts-departures/internal/metrics"
	"github.com/theoremus-urban-solutions/cts-departures/registry"
)

type stubMonitor struct {
	mu     sync.Mutex
	visits map[string][]cts.StopVisit
	errs   map[string]error
	calls  map[string]int
}

func (s *stubMonitor) MonitorStop(ctx context.Context, stopCode, lineRef string) ([]cts.StopVisit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[stopCode]++
	if err := s.errs[stopCode]; err != nil {
		return nil, err
	}
	return s.visits[stopCode], nil
}

func (s *stubMonitor) callCount(stopCode string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[stopCode]
}

var monitoredStops = []config.MonitoredStop{
	{LineRef: "A", StopCode: "623A", StopName: "Homme de Fer"},
	{LineRef: "D", StopCode: "459B", StopName: "Rotonde"},
}

func departureVisit(lineRef, stopCode, destination string, departure time.Time) cts.StopVisit {
	return cts.StopVisit{
		StopCode:        stopCode,
		LineRef:         lineRef,
		VehicleMode:     "tram",
		LineName:        lineRef,
		DestinationName: destination,
		StopPointName:   "Homme de Fer",
		Departure:       departure,
		RealTime:        true,
	}
}

func TestRefreshIsolatesFailures(t *testing.T) {
	now := time.Date(2026, 2, 11, 9, 30, 0, 0, time.UTC)
	clk := clock.NewMockClock(now)
	stub := &stubMonitor{
		visits: map[string][]cts.StopVisit{
			"623A": {departureVisit("A", "623A", "Parc des Sports", now.Add(3*time.Minute))},
		},
		errs: map[string]error{"459B": cts.ErrCannotConnect},
	}
	devices := registry.NewMemory()
	m := NewMonitor(monitoredStops, stub, devices, metrics.New(), clk, time.Minute, nil)

	for _, s := range m.sensors {
		m.refresh(s, m.logger)
	}

	snaps := m.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, "A_623A", snaps[0].UniqueID)
	assert.Equal(t, "3", snaps[0].State)
	assert.True(t, snaps[0].Available)
	assert.Equal(t, "D_459B", snaps[1].UniqueID)
	assert.False(t, snaps[1].Available, "the failing stop is unavailable")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.RefreshesTotal.WithLabelValues("A_623A", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.RefreshesTotal.WithLabelValues("D_459B", "error")))
	assert.Equal(t, now.Unix(), m.LastRefreshEpoch())

	records, err := devices.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1, "no device record for the stop that never refreshed")
	assert.Equal(t, "A_623A", records[0].UniqueID)
	assert.Equal(t, "(A) Homme de Fer - Parc des Sports", records[0].Name)
}

func TestRefreshWithoutVisitsCountsAsEmpty(t *testing.T) {
	now := time.Date(2026, 2, 11, 9, 30, 0, 0, time.UTC)
	stub := &stubMonitor{}
	devices := registry.NewMemory()
	m := NewMonitor(monitoredStops[:1], stub, devices, metrics.New(), clock.NewMockClock(now), time.Minute, nil)

	m.refresh(m.sensors[0], m.logger)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.RefreshesTotal.WithLabelValues("A_623A", "empty")))

	records, err := devices.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "(A) Homme de Fer", records[0].Name, "no destination learned yet")
}

func TestSnapshotsOrderAndLookup(t *testing.T) {
	reversed := []config.MonitoredStop{monitoredStops[1], monitoredStops[0]}
	m := NewMonitor(reversed, &stubMonitor{}, registry.NewMemory(), metrics.New(), clock.RealClock{}, time.Minute, nil)

	snaps := m.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, "A_623A", snaps[0].UniqueID, "snapshots are ordered by unique id")
	assert.Equal(t, "D_459B", snaps[1].UniqueID)

	snap, ok := m.SnapshotFor("D", "459B")
	require.True(t, ok)
	assert.Equal(t, "D_459B", snap.UniqueID)

	_, ok = m.SnapshotFor("B", "111X")
	assert.False(t, ok)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.metrics.MonitoredStops))
	assert.Equal(t, 2, m.StopCount())
}

func TestStartRefreshesUntilStopped(t *testing.T) {
	stub := &stubMonitor{
		visits: map[string][]cts.StopVisit{
			"623A": {departureVisit("A", "623A", "Parc des Sports", time.Now().Add(5*time.Minute))},
		},
	}
	m := NewMonitor(monitoredStops[:1], stub, registry.NewMemory(), metrics.New(), clock.RealClock{}, 10*time.Millisecond, nil)

	m.Start()
	time.Sleep(120 * time.Millisecond)
	m.Stop()

	calls := stub.callCount("623A")
	assert.GreaterOrEqual(t, calls, 2, "the immediate refresh plus at least one tick")

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, stub.callCount("623A"), "no refreshes after Stop")
}
