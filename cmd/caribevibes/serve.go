package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	auth "github.com/IngAlexfit/caribeVibes-system-sub001"
	"github.com/IngAlexfit/caribeVibes-system-sub001/activitymap"
	"github.com/IngAlexfit/caribeVibes-system-sub001/config"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Migrate the database and start the HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadRuntime(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app, err := newServer(cfg, store, registry, logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Server.Addr)
		errCh <- app.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return oops.Code("SERVER_FAILED").With("addr", cfg.Server.Addr).Wrap(err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	if err := app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
		return oops.Code("SHUTDOWN_FAILED").Wrap(err)
	}

	logger.Info("server stopped")
	return nil
}

// newServer wires the auth service into a fiber app
func newServer(cfg *config.Config, store auth.CredentialStore, registry *prometheus.Registry, logger *slog.Logger) (*fiber.App, error) {
	authCfg, err := cfg.AuthConfig()
	if err != nil {
		return nil, err
	}

	metrics, err := auth.NewMetricsSink(registry)
	if err != nil {
		return nil, oops.Code("METRICS_FAILED").Wrap(err)
	}

	authLogger := auth.NewSlogLogger(logger.With("component", "auth"))

	auther, err := auth.NewAuthenticator(store, authCfg)
	if err != nil {
		return nil, err
	}
	auther.WithLogger(authLogger).WithActivitySink(auth.ActivitySinks{
		metrics,
		activitymap.NewLogSink(logger.With("component", "activity")),
	})

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		DisableStartupMessage: true,
	})

	app.Use(requestTelemetry(otel.Tracer("caribevibes/http"), logger))

	auth.RegisterAuthRoutes(app.Group("/api/auth"),
		auth.WithAuthenticator(auther),
		auth.WithTokenValidator(auther.TokenValidator()),
		auth.WithControllerLogger(authLogger),
		auth.WithDebug(cfg.Server.Debug),
	)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		Registry: registry,
	})))

	return app, nil
}

// requestTelemetry opens a span per request and logs the outcome with the
// span context attached.
func requestTelemetry(tracer trace.Tracer, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		ctx, span := tracer.Start(c.UserContext(), c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.target", c.Path()),
			),
		)
		defer span.End()

		c.SetUserContext(ctx)

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, fiber.ErrInternalServerError.Message)
		}

		logger.InfoContext(ctx, "request",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration", time.Since(start),
		)

		return err
	}
}
