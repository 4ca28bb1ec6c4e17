// Package ctsdepartures monitors departures of the Strasbourg CTS network.
//
// The root package is the daemon host: it wires the API client, the per-stop
// departure sensors, the device registry and the HTTP surface together. The
// interactive configuration flow lives in the wizard package; the daemon only
// consumes the entry the wizard persisted.
package ctsdepartures

import (
	"io"
	"log/slog"

	"github.com/theoremus-urban-solutions/cts-departures/config"
	"github.com/theoremus-urban-solutions/cts-departures/cts"
	"github.com/theoremus-urban-solutions/cts-departures/internal/clock"
	"github.com/theoremus-urban-solutions/cts-departures/internal/logging"
	"github.com/theoremus-urban-solutions/cts-departures/internal/metrics"
	"github.com/theoremus-urban-solutions/cts-departures/registry"
)

// App holds the dependencies of the daemon's handlers and of the monitor.
type App struct {
	Config  config.AppConfig
	Client  *cts.Client
	Devices registry.Registry
	Monitor *Monitor
	Metrics *metrics.Metrics
	Clock   clock.Clock
	Logger  *slog.Logger
}

// NewApp builds a runnable application from the daemon configuration and the
// persisted configuration entry.
func NewApp(cfg config.AppConfig, entry *config.Entry, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := []cts.Option{
		cts.WithTimeout(cfg.API.Timeout()),
		cts.WithLogger(logger),
	}
	if cfg.API.BaseURL != "" {
		opts = append(opts, cts.WithBaseURL(cfg.API.BaseURL))
	}
	if cfg.API.RequestsPerSecond > 0 {
		opts = append(opts, cts.WithRateLimit(cfg.API.RequestsPerSecond, 1))
	}
	client := cts.New(entry.APIToken, opts...)

	devices, err := OpenRegistry(cfg)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	clk := clock.RealClock{}
	app := &App{
		Config:  cfg,
		Client:  client,
		Devices: devices,
		Metrics: m,
		Clock:   clk,
		Logger:  logger,
	}
	app.Monitor = NewMonitor(entry.MonitoredStops, client, devices, m, clk,
		cfg.Monitor.ScanInterval(), logger)
	return app, nil
}

// OpenRegistry opens the sqlite device registry when a path is configured and
// falls back to the in-memory registry otherwise.
func OpenRegistry(cfg config.AppConfig) (registry.Registry, error) {
	if cfg.Storage.RegistryPath == "" {
		return registry.NewMemory(), nil
	}
	return registry.OpenSQLite(cfg.Storage.RegistryPath)
}

// Close releases the resources the app holds.
func (a *App) Close() {
	if closer, ok := a.Devices.(io.Closer); ok {
		logging.SafeClose(closer, a.Logger, "device registry")
	}
}
