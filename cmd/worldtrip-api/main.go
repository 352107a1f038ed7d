// Command worldtrip-api serves the booking REST API.
package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"worldtrip/internal/api"
	"worldtrip/internal/blob"
	"worldtrip/internal/config"
	"worldtrip/internal/core"
	"worldtrip/internal/infra/events"
)

var exitFunc = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	exitFunc(run(ctx, os.Stdout))
}

func run(ctx context.Context, stdout io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}
	log := newLogger(stdout, cfg.LogLevel)
	if err := serve(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		return 1
	}
	return 0
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func serve(ctx context.Context, cfg config.App, log *slog.Logger) error {
	store, err := core.OpenPersistentStore(cfg.Storage, core.NewDefaultRulesEngine(nil))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if c, ok := store.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}
	files, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		return err
	}
	opts := []core.Option{
		core.WithLogger(log),
		core.WithAuditRecorder(core.NewLogAuditRecorder(log)),
		core.WithMetricsRecorder(core.MultiMetricsRecorder{prom, core.NewExpvarMetricsRecorder("worldtrip_operations")}),
	}
	if cfg.LogLevel == "debug" {
		opts = append(opts, core.WithTracer(core.NewJSONTracer(os.Stderr)))
	}
	if cfg.AMQPURL != "" {
		pub, err := events.Dial(ctx, events.DialConfig{URL: cfg.AMQPURL, Exchange: cfg.AMQPExchange, Logger: log})
		if err != nil {
			return err
		}
		defer func() { _ = pub.Close() }()
		opts = append(opts, core.WithEventPublisher(pub))
	}
	svc := core.NewService(store, opts...)
	if err := bootstrap(ctx, svc, files, cfg.LegacySnapshotKey, log); err != nil {
		return err
	}

	apiCfg := api.Config{Logger: log, Registry: reg}
	if cfg.AdminAuthEnabled() {
		apiCfg.Authorizer = api.NewJWTAuthorizer(cfg.AdminJWTSecret)
	}
	e, err := api.New(svc, apiCfg)
	if err != nil {
		return err
	}
	e.GET("/debug/vars", echo.WrapHandler(expvar.Handler()))
	return listen(ctx, e, cfg, log)
}

// bootstrap imports the legacy snapshot when one is present under key and
// seeds the default catalog otherwise.
func bootstrap(ctx context.Context, svc *core.Service, files blob.Store, key string, log *slog.Logger) error {
	if key != "" {
		_, rc, err := files.Get(ctx, key)
		switch {
		case err == nil:
			defer func() { _ = rc.Close() }()
			report, err := svc.ImportLegacySnapshot(ctx, rc)
			if err != nil {
				return fmt.Errorf("import %s: %w", key, err)
			}
			for _, f := range report.Failures {
				log.Warn("legacy record skipped", "entity", f.Entity, "id", f.ID, "reason", f.Reason)
			}
			return nil
		case !errors.Is(err, blob.ErrNotFound):
			return fmt.Errorf("read %s: %w", key, err)
		}
	}
	n, err := svc.SeedDefaultPackages(ctx)
	if err != nil {
		return fmt.Errorf("seed packages: %w", err)
	}
	if n > 0 {
		log.Info("seeded default packages", "count", n)
	}
	return nil
}

func listen(ctx context.Context, e *echo.Echo, cfg config.App, log *slog.Logger) error {
	errc := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", cfg.HTTPAddr, "env", cfg.Env, "storage", cfg.Storage.Driver, "admin_auth", cfg.AdminAuthEnabled())
		errc <- e.Start(cfg.HTTPAddr)
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down", "timeout", cfg.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
