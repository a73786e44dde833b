package main

import (
	"context"
	stderrors "errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"extruder/internal"
	"extruder/internal/config"
	"extruder/internal/container"
	"extruder/internal/ops"
	"extruder/ui"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load application configuration
	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := internal.NewLogger(internal.ParseLogLevel(appConfig.LogLevel))
	internal.DefaultLogger = logger
	gin.SetMode(appConfig.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create dependency injection container
	appContainer, err := container.New(appConfig, logger)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	if err := appContainer.Init(ctx); err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer appContainer.Close()

	server, err := ui.NewServer(ui.Deps{
		Catalog:  appContainer.Catalog,
		Analyzer: appContainer.Analyzer,
		Charts:   appContainer.Charts,
		Config:   appConfig,
		Logger:   logger,
	})
	if err != nil {
		log.Fatalf("Failed to create dashboard: %v", err)
	}

	// The ops server always answers /healthz; pprof is mounted only when enabled
	servers := []*http.Server{
		{
			Addr:              ":" + appConfig.Server.Port,
			Handler:           server.Handler(),
			ReadHeaderTimeout: appConfig.Server.ReadTimeout,
		},
		{
			Addr: ":" + appConfig.Profiling.Port,
			Handler: ops.NewRouter(ops.Config{
				Version:   version,
				Profiling: appConfig.Profiling.Enabled,
			}, appContainer.HealthChecks()),
			ReadHeaderTimeout: appConfig.Server.ReadTimeout,
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			log.Printf("Listening on http://localhost%s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Printf("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), appConfig.Server.ShutdownTimeout)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Printf("Shutdown of %s failed: %v", srv.Addr, err)
			}
		}
		return nil
	})

	start := time.Now()
	if err := g.Wait(); err != nil {
		log.Fatalf("Server error after %s: %v", time.Since(start).Round(time.Second), err)
	}
}
