// Command gateway starts the LLM proxy gateway's HTTP listener: the data
// plane (gin, every ingress route) and a secondary
// health/introspection mux (chi+cors), sharing one AppState.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nexusgate/llm-gateway/internal/config"
	"github.com/nexusgate/llm-gateway/internal/gateway"
	"github.com/nexusgate/llm-gateway/internal/logging"
	"github.com/nexusgate/llm-gateway/internal/pipeline"
	"github.com/nexusgate/llm-gateway/internal/server"
	"github.com/nexusgate/llm-gateway/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the gateway's YAML configuration")
	adminAddr := flag.String("admin-addr", "", "address for the secondary health/introspection listener (disabled if empty)")
	flag.Parse()

	if err := run(*configPath, *adminAddr); err != nil {
		fmt.Fprintln(os.Stderr, "gateway:", err)
		os.Exit(1)
	}
}

func run(configPath, adminAddr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.New("main", logging.ParseLevel(cfg.Features.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	teleSettings := telemetry.Settings{
		Enabled:      cfg.Features.OTLPEndpoint != "",
		OTLPEndpoint: cfg.Features.OTLPEndpoint,
	}
	shutdownTelemetry, err := telemetry.InstallOTLPExporter(ctx, teleSettings)
	if err != nil {
		return fmt.Errorf("install telemetry: %w", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	state, err := gateway.NewAppState(cfg, teleSettings)
	if err != nil {
		return fmt.Errorf("build app state: %w", err)
	}

	engine := pipeline.New(state)
	router := server.New(engine, cfg.Server.BasePath, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var adminServer *http.Server
	if adminAddr != "" {
		adminServer = &http.Server{
			Addr:              adminAddr,
			Handler:           server.NewAdminMux(state),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("listening on %s", addr)
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- fmt.Errorf("data plane listener: %w", serveErr)
			return
		}
		errCh <- nil
	}()
	if adminServer != nil {
		go func() {
			log.Info("admin listener on %s", adminAddr)
			if serveErr := adminServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				errCh <- fmt.Errorf("admin listener: %w", serveErr)
				return
			}
			errCh <- nil
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case serveErr := <-errCh:
		if serveErr != nil {
			return serveErr
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		return fmt.Errorf("shutdown data plane listener: %w", shutdownErr)
	}
	if adminServer != nil {
		if shutdownErr := adminServer.Shutdown(shutdownCtx); shutdownErr != nil {
			return fmt.Errorf("shutdown admin listener: %w", shutdownErr)
		}
	}
	return nil
}
