package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

type pinger interface {
	Ping(context.Context) error
}

type consumer interface {
	Run(ctx context.Context) error
}

// Dependency is a backing service checked once before consumers start.
type Dependency struct {
	Name   string
	Pinger pinger
}

type ServiceParams struct {
	Logger       *logger.Logger
	Dependencies []Dependency
	Consumers    map[string]consumer
	// MetricsAddr, when set, serves the gatherer on /metrics.
	MetricsAddr string
	Gatherer    prometheus.Gatherer
}

// Service runs the subscription consumers side by side. The first consumer
// to stop for any reason other than cancellation stops the worker.
type Service struct {
	logg        *logger.Logger
	deps        []Dependency
	consumers   map[string]consumer
	metricsAddr string
	gatherer    prometheus.Gatherer
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if len(params.Consumers) == 0 {
		return nil, errors.New("at least one consumer is required")
	}
	for name, c := range params.Consumers {
		if c == nil {
			return nil, fmt.Errorf("consumer %s is nil", name)
		}
	}
	if params.MetricsAddr != "" && params.Gatherer == nil {
		return nil, errors.New("gatherer is required to serve metrics")
	}
	return &Service{
		logg:        params.Logger,
		deps:        params.Dependencies,
		consumers:   params.Consumers,
		metricsAddr: params.MetricsAddr,
		gatherer:    params.Gatherer,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for _, dep := range s.deps {
		if err := dep.Pinger.Ping(ctx); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "dependency", dep.Name), "dependency ping failed", err)
			return fmt.Errorf("%s ping failed: %w", dep.Name, err)
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.metricsAddr != "" {
		stopMetrics := s.serveMetrics(ctx)
		defer stopMetrics()
	}

	type exit struct {
		name string
		err  error
	}
	exits := make(chan exit, len(s.consumers))
	for name, c := range s.consumers {
		go func() {
			exits <- exit{name: name, err: c.Run(ctx)}
		}()
	}

	first := <-exits
	cancel()
	for range len(s.consumers) - 1 {
		<-exits
	}

	if first.err != nil && !errors.Is(first.err, context.Canceled) {
		s.logg.Error(s.logg.WithField(ctx, "consumer", first.name), "consumer stopped unexpectedly", first.err)
		return fmt.Errorf("consumer %s: %w", first.name, first.err)
	}
	s.logg.Info(s.logg.WithField(ctx, "consumer", first.name), "worker consumers stopped")
	return first.err
}

func (s *Service) serveMetrics(ctx context.Context) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              s.metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logg.Error(ctx, "metrics server stopped", err)
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
}
