// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package agent provides the reasoning agent service for PlantPulse.
//
// This package contains the main Service type that coordinates all
// components: HTTP routing, the model client, the phased reasoning
// engine, the production line simulator, conversation memory, and
// observability infrastructure.
//
// # Usage
//
//	cfg := agent.Config{Port: 12310, LLMBackend: "ollama"}
//	svc, err := agent.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/plantpulse-ai/plantpulse/services/agent/handlers"
	"github.com/plantpulse-ai/plantpulse/services/agent/llm"
	"github.com/plantpulse-ai/plantpulse/services/agent/memory"
	"github.com/plantpulse-ai/plantpulse/services/agent/middleware"
	"github.com/plantpulse-ai/plantpulse/services/agent/observability"
	"github.com/plantpulse-ai/plantpulse/services/agent/prompts"
	"github.com/plantpulse-ai/plantpulse/services/agent/reasoning"
	"github.com/plantpulse-ai/plantpulse/services/agent/routes"
	"github.com/plantpulse-ai/plantpulse/services/agent/simulator"
	"github.com/plantpulse-ai/plantpulse/services/agent/tools"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the agent service.
//
// # Description
//
// Service abstracts the agent lifecycle, enabling testing and
// alternative implementations. Only essential lifecycle methods are
// exposed.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and
// should only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing. Callers must
	// not modify routes after construction.
	Router() *gin.Engine
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
type service struct {
	config        Config
	router        *gin.Engine
	store         *memory.Store
	hub           *prompts.Hub
	retention     *memory.Retention
	tracerCleanup func(context.Context)
}

// =============================================================================
// Constructor
// =============================================================================

// New creates the agent Service with the given configuration.
//
// # Description
//
// New initializes all components in dependency order:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing and Prometheus metrics
//  3. Opens the conversation memory store and retention sweeper
//  4. Creates the simulator, tool invoker, and prompt hub
//  5. Creates the model client for the configured backend
//  6. Wires the reasoning engine, handlers, and HTTP routes
//
// # Outputs
//
//   - Service: Ready-to-run agent service
//   - error: Non-nil if initialization fails; partial initialization is
//     cleaned up before returning
func New(cfg Config) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}

	if !s.config.DisableTracing {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	// Metrics live on the default registry; reuse the singleton when a
	// second service is constructed in-process (tests).
	metrics := observability.DefaultMetrics
	if metrics == nil {
		metrics = observability.InitMetrics()
	}

	store, err := memory.Open(s.config.MemoryPath, s.config.SummarizeInterval)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("open memory store: %w", err)
	}
	s.store = store

	if s.config.MemoryTTL > 0 {
		s.retention = memory.NewRetention(store, s.config.MemoryTTL,
			s.config.RetentionSweepInterval, nil, nil)
		s.retention.Start()
	}

	var sim *simulator.Simulator
	if s.config.SimulatorSeed != 0 {
		sim = simulator.NewWithSeed(s.config.SimulatorSeed)
	} else {
		sim = simulator.New()
	}
	invoker := tools.NewInvoker(sim, nil)

	hub, err := prompts.NewHub(s.config.PromptsDir, nil)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("initialize prompt hub: %w", err)
	}
	s.hub = hub
	builder := prompts.NewBuilder(hub)

	client, err := s.initLLMClient()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("initialize llm client: %w", err)
	}

	engine := reasoning.NewEngine(client, invoker, builder, slog.Default())
	chat := handlers.NewChatHandler(engine, store, builder, client, metrics, slog.Default())

	s.initRouter(routes.Options{
		Chat:      chat,
		Tools:     handlers.NewToolsHandler(invoker),
		APIToken:  s.config.APIToken,
		RateLimit: s.rateLimiter(),
	})

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
// Cleanup is automatic on return.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("starting agent server", "port", s.config.Port, "backend", s.config.LLMBackend)
	return s.router.Run(addr)
}

func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// initTracer initializes OpenTelemetry distributed tracing with an OTLP
// gRPC exporter. The connection is lazy; a missing collector only drops
// spans.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("plantpulse-agent")))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
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
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}
	return cleanup, nil
}

// initLLMClient creates the model client for the configured backend.
func (s *service) initLLMClient() (llm.Client, error) {
	switch s.config.LLMBackend {
	case "openai":
		slog.Info("using OpenAI-compatible LLM backend", "model", s.config.LLMModel)
		return llm.NewOpenAI(s.config.LLMAPIKey, s.config.LLMBaseURL, s.config.LLMModel), nil
	case "ollama":
		slog.Info("using Ollama LLM backend", "model", s.config.LLMModel)
		return llm.NewOllama(s.config.LLMBaseURL, s.config.LLMModel)
	default:
		return nil, fmt.Errorf("unknown llm backend %q (want openai or ollama)", s.config.LLMBackend)
	}
}

// rateLimiter builds the per-client limiter, nil when disabled.
func (s *service) rateLimiter() *middleware.RateLimiter {
	if s.config.RateLimitRPS <= 0 {
		return nil
	}
	return middleware.NewRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst)
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter(opts routes.Options) {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	routes.SetupRoutes(s.router, opts)
}

// cleanup releases all resources held by the service. Called when Run()
// exits or on initialization failure.
func (s *service) cleanup() {
	if s.retention != nil {
		s.retention.Stop()
	}
	if s.hub != nil {
		if err := s.hub.Close(); err != nil {
			slog.Warn("prompt hub close error", "error", err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("memory store close error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
