// Copyright (C) 2026 Mentora Labs (dev@mentora.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/mentora-ai/mentora/services/gateway/config"
	"github.com/mentora-ai/mentora/services/gateway/middleware"
	"github.com/mentora-ai/mentora/services/gateway/observability"
	"github.com/mentora-ai/mentora/services/gateway/routes"
	"github.com/mentora-ai/mentora/services/gateway/store"
	"github.com/mentora-ai/mentora/services/gateway/upstream"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "localhost:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("mentora-gateway")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	// --- Load config ---
	cfgPath := os.Getenv("MENTORA_CONFIG")
	if cfgPath == "" {
		cfgPath, err = config.DefaultPath()
		if err != nil {
			log.Fatalf("FATAL: could not resolve config path: %v", err)
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("FATAL: could not load config: %v", err)
	}

	// --- Upstream client (fails fast on missing API key) ---
	client, err := upstream.NewClient(upstream.Config{
		APIKey:      cfg.Upstream.APIKey,
		BaseURL:     cfg.Upstream.BaseURL,
		ChatModel:   cfg.Upstream.ChatModel,
		ImageModel:  cfg.Upstream.ImageModel,
		HTTPTimeout: cfg.Upstream.HTTPTimeout,
	})
	if err != nil {
		log.Fatalf("FATAL: could not configure the upstream client: %v", err)
	}

	// --- Store ---
	storePath := cfg.Store.Path
	if storePath == "" {
		storePath = filepath.Join(filepath.Dir(cfgPath), "db")
	}
	storeCfg := store.DefaultConfig()
	storeCfg.Path = storePath
	storeCfg.Logger = logger
	db, err := store.Open(storeCfg)
	if err != nil {
		log.Fatalf("FATAL: could not open the store: %v", err)
	}
	defer db.Close()

	// --- Metrics ---
	observability.InitMetrics()

	// --- Router ---
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("mentora-gateway"))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigin))
	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitPerSecond, cfg.Server.RateLimitBurst)
	defer limiter.Close()
	router.Use(limiter.Middleware())
	routes.SetupRoutes(router, client, db)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Gateway listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	// Watch the config file so a rotated API key is applied without a
	// restart. Only credential changes are applied live; everything else
	// still needs a restart.
	g.Go(func() error {
		currentKey := cfg.Upstream.APIKey
		err := config.Watch(gctx, cfgPath, func(next *config.Config) {
			if next.Upstream.APIKey == "" || next.Upstream.APIKey == currentKey {
				return
			}
			if rotator, ok := client.(upstream.CredentialRotator); ok {
				rotator.SetAPIKey(next.Upstream.APIKey)
				currentKey = next.Upstream.APIKey
				slog.Info("Upstream API key rotated")
			}
		})
		if err == context.Canceled {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("gateway exited: %v", err)
	}
	slog.Info("Gateway stopped")
}
