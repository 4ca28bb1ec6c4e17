package ctsdepartures

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/theoremus-urban-solutions/cts-departures/config"
	"github.com/theoremus-urban-solutions/cts-departures/internal/clock"
	"github.com/theoremus-urban-solutions/cts-departures/internal/logging"
	"github.com/theoremus-urban-solutions/cts-departures/internal/metrics"
	"github.com/theoremus-urban-solutions/cts-departures/registry"
	"github.com/theoremus-urban-solutions/cts-departures/sensor"
)

// refreshTimeout bounds a single refresh round trip.
const refreshTimeout = 15 * time.Second

// Monitor drives the periodic refresh of every configured stop. Each stop
// runs its own loop so a slow or failing stop never delays the others.
type Monitor struct {
	sensors  []*sensor.Departure
	devices  registry.Registry
	metrics  *metrics.Metrics
	clk      clock.Clock
	interval time.Duration
	logger   *slog.Logger

	lastRefresh  atomic.Int64
	shutdownChan chan struct{}
	wg           sync.WaitGroup
}

// NewMonitor builds one departure sensor per monitored stop. A non-positive
// interval falls back to one minute.
func NewMonitor(stops []config.MonitoredStop, src sensor.StopMonitor, devices registry.Registry,
	m *metrics.Metrics, clk clock.Clock, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	sensors := make([]*sensor.Departure, 0, len(stops))
	for _, stop := range stops {
		sensors = append(sensors, sensor.NewDeparture(stop, src, clk))
	}
	m.MonitoredStops.Set(float64(len(sensors)))

	return &Monitor{
		sensors:      sensors,
		devices:      devices,
		metrics:      m,
		clk:          clk,
		interval:     interval,
		logger:       logger,
		shutdownChan: make(chan struct{}),
	}
}

// Start launches one refresh loop per monitored stop. Every loop refreshes
// immediately and then on each tick until Stop is called.
func (m *Monitor) Start() {
	for _, s := range m.sensors {
		m.wg.Add(1)
		go m.run(s)
	}
	m.logger.Info("monitor started",
		"stops", len(m.sensors), "interval", m.interval.String())
}

// Stop halts the refresh loops and waits for them to drain.
func (m *Monitor) Stop() {
	close(m.shutdownChan)
	m.wg.Wait()
}

// StopCount returns the number of monitored stops.
func (m *Monitor) StopCount() int { return len(m.sensors) }

// LastRefreshEpoch returns the unix time of the most recent successful
// refresh across all stops, or 0 before the first one.
func (m *Monitor) LastRefreshEpoch() int64 { return m.lastRefresh.Load() }

// Snapshots returns the current state of every sensor, ordered by unique ID.
func (m *Monitor) Snapshots() []sensor.Snapshot {
	snaps := make([]sensor.Snapshot, 0, len(m.sensors))
	for _, s := range m.sensors {
		snaps = append(snaps, s.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].UniqueID < snaps[j].UniqueID })
	return snaps
}

// SnapshotFor returns the snapshot of a single line/stop pair.
func (m *Monitor) SnapshotFor(lineRef, stopCode string) (sensor.Snapshot, bool) {
	uniqueID := lineRef + "_" + stopCode
	for _, s := range m.sensors {
		if s.UniqueID() == uniqueID {
			return s.Snapshot(), true
		}
	}
	return sensor.Snapshot{}, false
}

func (m *Monitor) run(s *sensor.Departure) {
	defer m.wg.Done()

	logger := m.logger.With(
		slog.String("component", "monitor"),
		slog.String("unique_id", s.UniqueID()))

	m.refresh(s, logger)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.refresh(s, logger)
		case <-m.shutdownChan:
			return
		}
	}
}

func (m *Monitor) refresh(s *sensor.Departure, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	ctx = logging.WithLogger(ctx, logger)

	start := time.Now()
	err := s.Refresh(ctx)
	m.metrics.RefreshDuration.WithLabelValues(s.UniqueID()).Observe(time.Since(start).Seconds())

	if err != nil {
		m.metrics.RefreshesTotal.WithLabelValues(s.UniqueID(), "error").Inc()
		logging.LogError(logger, "departure refresh failed", err)
		return
	}

	outcome := "ok"
	if !s.Snapshot().Available {
		outcome = "empty"
	}
	m.metrics.RefreshesTotal.WithLabelValues(s.UniqueID(), outcome).Inc()
	m.lastRefresh.Store(m.clk.Now().Unix())

	// the device record follows the destination learned from live departures
	if _, err := m.devices.Ensure(ctx, s.UniqueID(), s.DeviceName()); err != nil {
		logging.LogError(logger, "device registry update failed", err)
	}
}
