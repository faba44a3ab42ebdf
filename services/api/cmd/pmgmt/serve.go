package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pmgmt/pkg/bus"
	"pmgmt/pkg/config"
	"pmgmt/pkg/render"
	gos3 "pmgmt/pkg/s3"
	"pmgmt/pkg/telemetry"
	"pmgmt/services/api"
	"pmgmt/services/archive"
	"pmgmt/services/store"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion API and dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			return serve(ctx, cfg, newLogger(cfg.LogLevel))
		},
	}
}

func serve(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	if !cfg.DashboardAuthConfigured() {
		logger.Warn().Msg("PMGMT_USERNAME and PMGMT_PASSWORD are not set; dashboard requests will fail")
	}

	shutdownTelemetry, middleware, err := telemetry.Init(ctx, telemetry.Options{
		ServiceName: serviceName,
		Endpoint:    cfg.OTLPEndpoint,
		Logger:      logger,
		QuietPaths:  []string{"/healthz", "/readyz", "/metrics"},
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	database, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error().Err(err).Msg("close database")
		}
	}()

	hosts, err := store.New(database)
	if err != nil {
		return err
	}
	deps := &api.Store{Hosts: hosts, DB: database}

	if cfg.ArchiveEnabled() {
		archiver, err := newArchiver(ctx, cfg, logger)
		if err != nil {
			return err
		}
		deps.Archiver = archiver
		logger.Info().
			Str("bucket", cfg.ArchiveBucket).
			Bool("encrypted", archiver.Encrypted()).
			Msg("report archiving enabled")
	}

	if cfg.NATSURL != "" {
		b, err := bus.New(cfg.NATSURL, nats.Name(serviceName))
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer b.Close()
		if err := b.EnsureStream(ctx, cfg.EventsStream, bus.StreamSubjects); err != nil {
			return fmt.Errorf("ensure stream %s: %w", cfg.EventsStream, err)
		}
		deps.Bus = b
		logger.Info().Str("stream", cfg.EventsStream).Msg("event publishing enabled")
	}

	renderer, err := render.New()
	if err != nil {
		return err
	}

	a, err := api.New(deps, renderer, api.Config{
		Username:       cfg.Username,
		Password:       cfg.Password,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		RateLimit:      cfg.RateLimit,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	routes, err := a.Routes()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           middleware(routes),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("driver", database.Driver).Msg("starting pmgmt")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown server")
	}
	if err := a.Wait(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("pending side effects abandoned")
	}
	return nil
}

func newArchiver(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*archive.Archiver, error) {
	client, err := gos3.NewClient(ctx, gos3.Config{
		Endpoint:       cfg.S3Endpoint,
		Region:         cfg.S3Region,
		AccessKey:      cfg.S3AccessKey,
		SecretKey:      cfg.S3SecretKey,
		DisableTLS:     cfg.S3DisableTLS,
		ForcePathStyle: cfg.S3ForcePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.CheckBucket(checkCtx, cfg.ArchiveBucket); err != nil {
		logger.Warn().Err(err).Msg("archive bucket not reachable; reports are still stored without archives until it is")
	}
	recipients, err := cfg.AgeRecipients()
	if err != nil {
		return nil, err
	}
	return archive.New(client, cfg.ArchiveBucket, recipients...)
}
