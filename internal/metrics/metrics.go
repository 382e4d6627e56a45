// Package metrics exposes the watch service activity to Prometheus.
package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves the gathered metrics over HTTP on /metrics.
type Server struct {
	addr       net.Addr
	httpServer *http.Server

	mu sync.RWMutex
}

// Config holds the configuration for the metrics server.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// New creates a metrics server exposing the metrics gathered by reg.
func New(cfg Config, reg prometheus.Gatherer) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &Server{
		httpServer: &http.Server{
			Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Handler:      mux,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

// ListenAndServe listens on the configured address and serves until the server is shut down or closed.
func (s *Server) ListenAndServe() error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.addr = listener.Addr()
	s.mu.Unlock()

	return s.httpServer.Serve(listener)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Close stops the server immediately.
func (s *Server) Close() error {
	return s.httpServer.Close()
}

// Addr returns the address the server is listening on, or an empty string if it is not listening yet.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.addr == nil {
		return ""
	}
	return s.addr.String()
}

// Derivations counts the derivation passes of the watch service.
type Derivations struct {
	passes    *prometheus.CounterVec
	snapshots *prometheus.CounterVec
	last      prometheus.Gauge
}

// Result labels of a derivation pass.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// NewDerivations creates and registers the derivation metrics on reg.
func NewDerivations(reg prometheus.Registerer) (*Derivations, error) {
	d := &Derivations{
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ipmetrics_derivation_passes_total",
			Help: "Number of derivation passes run on the watched document, by result.",
		}, []string{"result"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ipmetrics_snapshots_written_total",
			Help: "Number of daily snapshot reports written, by unit.",
		}, []string{"unit"}),
		last: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ipmetrics_last_success_timestamp_seconds",
			Help: "Unix time of the last successful derivation pass.",
		}),
	}

	for _, c := range []prometheus.Collector{d.passes, d.snapshots, d.last} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register derivation metrics: %v", err)
		}
	}

	// Both results are exported from the first scrape.
	d.passes.WithLabelValues(ResultSuccess)
	d.passes.WithLabelValues(ResultFailure)

	return d, nil
}

// Failed records a failed derivation pass.
func (d *Derivations) Failed() {
	d.passes.WithLabelValues(ResultFailure).Inc()
}

// Succeeded records a successful pass at t which wrote the given number of snapshots per unit.
func (d *Derivations) Succeeded(t time.Time, written map[string]int) {
	d.passes.WithLabelValues(ResultSuccess).Inc()
	for unit, n := range written {
		d.snapshots.WithLabelValues(unit).Add(float64(n))
	}
	d.last.Set(float64(t.Unix()))
}
