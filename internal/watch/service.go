// Package watch keeps daily snapshot reports up to date with a surveillance document, serving
// its activity metrics alongside.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Service runs the derivation loop and the metrics server until one of them stops or it is asked to quit.
type Service struct {
	deriver       Runner
	metricsServer MetricsServer

	// This context is used to interrupt any action.
	// It must be the parent of gracefulCtx.
	ctx    context.Context
	cancel context.CancelFunc

	// This context stops the derivation loop once its current pass is done.
	gracefulCtx    context.Context
	gracefulCancel context.CancelFunc

	maxDegradedDuration time.Duration

	running chan struct{}
	log     *slog.Logger
}

// Runner is a blocking loop running until its context is done.
type Runner interface {
	Run(ctx context.Context) error
}

// MetricsServer is an interface that defines the methods for a metrics server.
type MetricsServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
	Close() error
}

type serviceOptions struct {
	maxDegradedDuration time.Duration
	logger              *slog.Logger
}

// ServiceOption is a function which tweaks the creation of the Service.
type ServiceOption func(*serviceOptions)

// WithServiceLogger sets the logger of the Service.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = l
	}
}

var (
	// errServiceClosed is returned when the service is already closed.
	errServiceClosed = errors.New("service closed")

	// ErrTeardownTimeout is returned when the service takes too long to shut down.
	// A force Quit may be required to cleanup the service.
	ErrTeardownTimeout = errors.New("service teardown timed out")
)

// NewService creates a watch service running deriver and metricsServer.
func NewService(ctx context.Context, deriver Runner, metricsServer MetricsServer, args ...ServiceOption) *Service {
	ctx, cancel := context.WithCancel(ctx)
	gCtx, gCancel := context.WithCancel(ctx)

	opts := serviceOptions{
		maxDegradedDuration: 30 * time.Second,
		logger:              slog.Default(),
	}
	for _, arg := range args {
		arg(&opts)
	}

	running := make(chan struct{})
	close(running)
	return &Service{
		deriver:       deriver,
		metricsServer: metricsServer,

		ctx:            ctx,
		cancel:         cancel,
		gracefulCtx:    gCtx,
		gracefulCancel: gCancel,

		maxDegradedDuration: opts.maxDegradedDuration,

		running: running,
		log:     opts.logger,
	}
}

// Run starts the watch service.
//
// Returns once both the derivation loop and the metrics server have stopped, or after staying too long
// with only one of them running.
func (s *Service) Run() error {
	s.log.Info("Watch service started")

	select {
	case <-s.gracefulCtx.Done():
		return errServiceClosed
	default:
	}

	s.running = make(chan struct{})
	defer close(s.running)
	defer s.cancel()

	done := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { done <- s.runDeriver(); wg.Done() }()
	go func() { done <- s.runMetrics(); wg.Done() }()
	go func() { wg.Wait(); close(done) }()

	err := <-done
	s.log.Info("Waiting for watch services to finish")

	select {
	case <-time.After(s.maxDegradedDuration):
		s.log.Warn("Watch service teardown timed out")
		err = errors.Join(err, ErrTeardownTimeout)
	case secondDone := <-done:
		err = errors.Join(err, secondDone)
	}

	return err
}

func (s *Service) runDeriver() error {
	s.log.Info("Starting derivation loop")
	defer s.gracefulCancel()

	if err := s.deriver.Run(s.gracefulCtx); err != nil && !errors.Is(err, s.gracefulCtx.Err()) {
		s.log.Error("Derivation loop encountered an error", "err", err)
		return fmt.Errorf("derivation loop error: %v", err)
	}
	s.log.Info("Derivation loop stopped")
	return nil
}

func (s *Service) runMetrics() error {
	s.log.Info("Starting metrics server")
	defer s.gracefulCancel()

	metricsErrCh := make(chan error, 1)
	go func() {
		defer close(metricsErrCh)
		if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			metricsErrCh <- err
		}
	}()

	select {
	case <-s.gracefulCtx.Done():
	case err := <-metricsErrCh:
		if err != nil {
			s.log.Error("Metrics server encountered error", "err", err)
			return fmt.Errorf("metrics server error: %v", err)
		}
		s.log.Info("Metrics server stopped")
		return nil
	}

	// gracefulCtx is a child of ctx: a canceled ctx means a forced stop.
	if s.ctx.Err() != nil {
		s.log.Info("Closing metrics server", "reason", s.ctx.Err())
		s.metricsServer.Close()
		return nil
	}

	s.log.Info("Graceful shutdown initiated for metrics server")
	if err := s.metricsServer.Shutdown(s.ctx); err != nil {
		s.log.Error("Metrics server graceful shutdown encountered error", "err", err)
		return fmt.Errorf("metrics server shutdown error: %v", err)
	}
	s.log.Info("Metrics server shut down gracefully")
	return nil
}

// Quit stops the watch service.
// Blocks until the service has finished running.
func (s *Service) Quit(force bool) {
	s.log.Info("Stopping watch service")

	if force {
		s.cancel()
		s.metricsServer.Close()
	} else {
		s.gracefulCancel()
	}

	<-s.running
}
