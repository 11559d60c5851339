package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SscSPs/procure_to_pay/internal/handlers"
	"github.com/SscSPs/procure_to_pay/internal/middleware"
	"github.com/SscSPs/procure_to_pay/internal/platform/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

type serveOptions struct {
	migrate bool
}

func serveCmd(logger *slog.Logger) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

Configuration is read from the environment and an optional .env file.
With STORAGE_DRIVER=postgres pending migrations are applied first unless
--migrate=false is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), logger, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.migrate, "migrate", true, "apply database migrations before serving")
	return cmd
}

func runServe(ctx context.Context, logger *slog.Logger, opts serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if opts.migrate && cfg.StorageDriver == config.StorageDriverPostgres {
		if err := applyMigrations(logger, cfg); err != nil {
			return err
		}
	}

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	router, err := newRouter(app)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed to run: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

func newRouter(app *application) (*gin.Engine, error) {
	if app.cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware (logging, tracing, recovery)
	r.Use(middleware.StructuredLoggingMiddleware(app.logger), middleware.TracingMiddleware(), gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = app.cfg.CORSAllowedOrigins
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", "X-Request-ID")
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	r.Use(cors.New(corsConfig))

	limiter, err := middleware.NewLimiter(app.cfg.RateLimit, app.redisClient)
	if err != nil {
		return nil, err
	}
	r.Use(middleware.RateLimit(limiter))

	if err := r.SetTrustedProxies(nil); err != nil {
		return nil, fmt.Errorf("failed to set trusted proxies: %w", err)
	}

	handlers.RegisterRoutes(r, app.cfg, app.services)
	return r, nil
}
