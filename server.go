package ctsdepartures

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/theoremus-urban-solutions/cts-departures/internal/logging"
)

var server *http.Server

// routes builds the daemon's HTTP surface.
func (a *App) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", a.handleHealth)
	mux.HandleFunc("/api/departures.json", a.handleDeparturesJSON)
	mux.HandleFunc("/api/departure.json", a.handleDepartureJSON)
	mux.HandleFunc("/api/messages.json", a.handleMessagesJSON)
	mux.Handle("/metrics", a.Metrics.Handler())
	return a.withRequestMetrics(mux)
}

// StartServer exposes the monitored departures over HTTP and returns
// immediately; the listener runs in its own goroutine.
func (a *App) StartServer() {
	addr := fmt.Sprintf(":%d", a.Config.Server.Port)
	server = &http.Server{
		Addr:              addr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.LogError(a.Logger, "server error", err)
			os.Exit(1)
		}
	}()
	a.Logger.Info("server listening", "addr", addr)
}

// HandleGracefulShutdown blocks until SIGINT or SIGTERM, then stops the
// monitor and drains the HTTP server.
func (a *App) HandleGracefulShutdown() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	a.Logger.Info("shutdown signal received")

	a.Monitor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			logging.LogError(a.Logger, "server shutdown error", err)
		} else {
			a.Logger.Info("server shut down successfully")
		}
	}
	a.Close()
}

// withRequestMetrics records request counts and latencies around the mux.
func (a *App) withRequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		// r.Pattern keeps the path label's cardinality bounded
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		a.Metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		a.Metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
