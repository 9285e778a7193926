package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"usermgmt/internal/platform/config"
	"usermgmt/internal/platform/httpserver"
	"usermgmt/internal/platform/logger"
	"usermgmt/internal/platform/metrics"
	"usermgmt/internal/platform/otel"
	"usermgmt/internal/users"
	"usermgmt/internal/users/adapters/hasher"
	usermetrics "usermgmt/internal/users/metrics"
	"usermgmt/internal/users/policy"
	"usermgmt/internal/users/service"
	"usermgmt/pkg/platform/audit/publisher"
	"usermgmt/pkg/platform/httputil"
	"usermgmt/pkg/platform/middleware/actor"
	"usermgmt/pkg/platform/middleware/device"
	"usermgmt/pkg/platform/middleware/metadata"
	"usermgmt/pkg/platform/middleware/request"
	"usermgmt/pkg/platform/middleware/requesttime"
)

// main wires infrastructure into the directory service, exposes the HTTP
// router, and drains background work on shutdown.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Setup(ctx, cfg.Server.ServiceName, cfg.Tracing)
	if err != nil {
		return err
	}

	infra, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	auditPublisher := publisher.NewPublisher(infra.auditStore,
		publisher.WithAsyncBuffer(1024),
		publisher.WithLogger(log),
	)

	opts := []service.Option{
		service.WithLogger(log),
		service.WithAuditPublisher(auditPublisher),
		service.WithMetrics(usermetrics.New()),
		service.WithNotifyTimeout(cfg.Kafka.NotifyTimeout),
		service.WithRegistrationPolicy(policy.NewRegistrationPolicy(
			policy.WithBlockedDomains(cfg.Policy.BlockedDomains),
			policy.WithReservedUsernames(cfg.Policy.ReservedUsernames),
		)),
	}
	if infra.reserver != nil {
		opts = append(opts, service.WithReserver(infra.reserver))
	}
	directory := users.NewService(infra.accounts, hasher.NewBcrypt(), infra.notifier, opts...)

	router := newRouter(cfg, log, users.NewHandler(directory, log), infra)
	srv := httpserver.New(cfg.Server, router)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting usermgmt", "addr", cfg.Server.Addr, "store", cfg.Server.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	if err := directory.Drain(shutdownCtx); err != nil {
		log.Warn("welcome notifications still in flight at shutdown", "error", err)
	}
	auditPublisher.Close()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracer shutdown failed", "error", err)
	}
	return nil
}

func newRouter(cfg config.Config, log *slog.Logger, handler *users.Handler, infra *infrastructure) http.Handler {
	httpMetrics := metrics.New()

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(device.Middleware)
	r.Use(httpMetrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := infra.Health(r.Context()); err != nil {
			log.WarnContext(r.Context(), "health check failed", "error", err)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(actor.Resolve(cfg.Server.GatewayToken, log))
		handler.Register(r)
	})
	return r
}
