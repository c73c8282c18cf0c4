// Copyright (C) 2025 Evolvelab (oss@evolvelab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine provides the core engine service.
//
// This package contains the main Service type that coordinates all
// components of the service: HTTP routing, the run manager, the fitness
// client, and observability infrastructure.
//
// # Usage
//
//	cfg := engine.Config{Port: 8080, FitnessURL: "http://127.0.0.1:8090"}
//	svc, err := engine.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc.Run()
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/evolvelab/genesys/services/engine/evolve"
	"github.com/evolvelab/genesys/services/engine/fitness"
	"github.com/evolvelab/genesys/services/engine/observability"
	"github.com/evolvelab/genesys/services/engine/routes"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the engine service.
//
// # Description
//
// Service abstracts the engine lifecycle, enabling testing and alternative
// implementations. Run() blocks and should only be called once per
// instance.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	// Returns nil on a clean signal-driven shutdown.
	Run() error

	// Router returns the underlying Gin engine for testing.
	// Callers must not modify the registered routes.
	Router() *gin.Engine

	// Manager returns the run manager for testing and embedding.
	Manager() *evolve.Manager
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds engine service configuration options.
//
// All fields have sensible defaults applied by New(); a zero Config yields
// a working service on port 8080 talking to a local evaluator.
type Config struct {
	// Port is the HTTP server port. Default: 8080
	Port int

	// FitnessURL is the base URL of the fitness evaluator service.
	// Default: "http://127.0.0.1:8090"
	FitnessURL string

	// OTelEndpoint is the OpenTelemetry collector endpoint. If empty,
	// tracing stays on the default no-op provider.
	OTelEndpoint string

	// EnableMetrics exposes Prometheus metrics on /metrics.
	// Default: true
	EnableMetrics *bool

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	// Default: uses GIN_MODE env var or "debug".
	GinMode string

	// ShutdownGrace bounds graceful shutdown. Default: 10s.
	ShutdownGrace time.Duration
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns; run state lives inside the manager.
type service struct {
	config        Config
	router        *gin.Engine
	manager       *evolve.Manager
	tracerCleanup func(context.Context)
}

// New creates a new engine Service with the given configuration.
//
// # Description
//
// New initializes all engine components:
//  1. Applies default configuration for missing values
//  2. Initializes Prometheus metrics (unless disabled)
//  3. Initializes OpenTelemetry tracing (if an endpoint is configured)
//  4. Creates the fitness client and run manager
//  5. Sets up HTTP routes
//
// # Outputs
//
//   - Service: Ready-to-run engine service
//   - error: Non-nil if initialization fails
func New(cfg Config) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}

	if *s.config.EnableMetrics {
		if observability.DefaultMetrics == nil {
			observability.InitMetrics()
		}
		slog.Info("Initialized Prometheus metrics")
	}

	if s.config.OTelEndpoint != "" {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	scorer := fitness.NewClient(s.config.FitnessURL)
	s.manager = evolve.NewManager(scorer)

	s.initRouter()
	return s, nil
}

// Run starts the HTTP server and blocks until SIGINT/SIGTERM or a fatal
// server error. A signal triggers graceful shutdown: in-flight steps run
// to completion within the configured grace period.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	server := &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting engine server", "port", s.config.Port, "fitness_url", s.config.FitnessURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		slog.Info("Shutting down engine server", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownGrace)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// Manager returns the run manager.
func (s *service) Manager() *evolve.Manager {
	return s.manager
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.FitnessURL == "" {
		cfg.FitnessURL = "http://127.0.0.1:8090"
	}
	if cfg.EnableMetrics == nil {
		enabled := true
		cfg.EnableMetrics = &enabled
	}
	if cfg.ShutdownGrace == 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// Sets up an OTLP trace exporter over an insecure gRPC connection,
// appropriate for internal collector networks.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("engine-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	if s.config.OTelEndpoint != "" {
		s.router.Use(otelgin.Middleware("engine-service"))
	}

	routes.SetupRoutes(s.router, s.manager, *s.config.EnableMetrics)
}

// cleanup releases resources held by the service.
func (s *service) cleanup() {
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
