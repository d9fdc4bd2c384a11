package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/qaradev/cacheproxy/internal/admin"
	"github.com/qaradev/cacheproxy/internal/config"
	"github.com/qaradev/cacheproxy/internal/engine"
	"github.com/qaradev/cacheproxy/internal/logging"
	"github.com/qaradev/cacheproxy/internal/metrics"
	"github.com/qaradev/cacheproxy/internal/middleware"
	"github.com/qaradev/cacheproxy/internal/tracing"
)

// main initializes and starts the caching proxy
// Orchestrates configuration loading, engine startup, the admin
// surface, and graceful shutdown on SIGINT/SIGTERM
func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatal(err)
	}
	cfg := config.GetInstance()
	if flag.NArg() > 0 {
		port, err := strconv.Atoi(flag.Arg(0))
		if err != nil {
			log.Fatalf("invalid port %q: %v", flag.Arg(0), err)
		}
		cfg.Server.Port = port
	}

	shutdownTracing, err := tracing.InitTracing(tracing.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Environment:    cfg.Tracing.Environment,
		JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SamplingRatio:  cfg.Tracing.SamplingRatio,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		log.Fatalf("failed to initialise tracing: %v", err)
	}
	defer shutdownTracing()

	logger := logging.NewLogger(cfg.Tracing.ServiceName)
	m := metrics.NewMetrics()

	eng := engine.New(cfg, logger, m)

	adminChain := []middleware.Middleware{
		middleware.NewLogging(logger),
		middleware.NewMetrics(m),
	}
	adminSrv := admin.New(portAddr(cfg.Server.AdminPort), eng, m, adminChain)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("starting proxy on port %d (admin on %d)", cfg.Server.Port, cfg.Server.AdminPort)
		if err := eng.ListenAndServe(); err != nil {
			log.Fatalf("engine failed to start: %v", err)
		}
	}()

	go func() {
		if err := adminSrv.ListenAndServe(); err != nil {
			log.Printf("admin server failed: %v", err)
		}
	}()

	<-sigChan
	log.Println("received termination signal, shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := eng.Shutdown(shutdownCtx); err != nil {
		log.Printf("error during engine shutdown: %v", err)
	}
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("error during admin server shutdown: %v", err)
	}

	log.Println("proxy stopped")
}

func portAddr(port int) string {
	return fmt.Sprintf(":%d", port)
}
