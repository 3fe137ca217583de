package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tradeease/workflowgate/internal/alert"
	alertrepo "github.com/tradeease/workflowgate/internal/alert/repositoryimpl"
	"github.com/tradeease/workflowgate/internal/audit"
	"github.com/tradeease/workflowgate/internal/config"
	"github.com/tradeease/workflowgate/internal/eventbus"
	"github.com/tradeease/workflowgate/internal/gateway"
	"github.com/tradeease/workflowgate/internal/monitor"
	"github.com/tradeease/workflowgate/internal/scanner"
	workflowrepo "github.com/tradeease/workflowgate/internal/workflowdef/repositoryimpl"
	"github.com/tradeease/workflowgate/pkg/clog"
	"github.com/tradeease/workflowgate/pkg/storage"

	server "github.com/tradeease/workflowgate/internal"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewTextHandler(os.Stderr, level)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	// Setup storage
	var store storage.Storage
	switch env.StorageEnv.Type {
	case "s3":
		store, err = storage.NewS3Storage(context.Background(), env.StorageEnv.S3Bucket, env.StorageEnv.S3Prefix, env.StorageEnv.S3Region)
		if err != nil {
			slog.Error("failed to create S3 storage", "error", err)
			os.Exit(1)
		}
	default:
		store, err = storage.NewLocalStorage(env.StorageEnv.BaseDir)
		if err != nil {
			slog.Error("failed to create local storage", "error", err)
			os.Exit(1)
		}
	}

	// Setup event bus
	bus := eventbus.New()

	// Setup repositories
	workflowRepo := workflowrepo.NewYAMLRepository(store)
	alertRepo := alertrepo.NewYAMLRepository(store)

	// Graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// Setup activity monitor
	gatewayEnv := config.GatewayEnvFromEnv(env)
	mon := monitor.New(monitor.Config{
		Limit:           gatewayEnv.RateLimitPerWindow,
		Window:          gatewayEnv.RateLimitWindow,
		Retention:       gatewayEnv.RetentionHorizon,
		CleanupInterval: gatewayEnv.CleanupInterval,
		ResetInterval:   gatewayEnv.ResetInterval,
	})
	go mon.Start(ctx)

	// Setup forbidden-pattern scanner
	sc := scanner.New(scanner.DefaultTable())
	if path := gatewayEnv.PatternTablePath; path != "" {
		table, err := scanner.LoadTableFile(path)
		if err != nil {
			slog.Error("failed to load pattern table", "path", path, "error", err)
			os.Exit(1)
		}
		sc.Reload(table)
		go func() {
			if err := sc.Watch(ctx, path); err != nil {
				slog.Error("pattern table watch stopped", "error", err)
			}
		}()
	}

	auditLogger := audit.NewLogger(slog.Default(), bus)
	gw := gateway.New(gateway.ConfigFromEnv(gatewayEnv), sc, mon, auditLogger)

	// Setup alerting for blocked operations
	vapidEnv := config.VAPIDEnvFromEnv(env)
	alertSender := alert.NewSender(vapidEnv, alertRepo)
	alertDispatcher := alert.NewDispatcher(bus, alertSender)
	go alertDispatcher.Start(ctx)

	srv := server.NewServer(env, gw, workflowRepo, alertRepo, vapidEnv, auditLogger)

	go func() {
		if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
