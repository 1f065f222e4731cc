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

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/hemoconecta/donor-portal-api/internal/adapters/httpapi"
	rediscampaigncache "github.com/hemoconecta/donor-portal-api/internal/adapters/redis/campaigncache"
	"github.com/hemoconecta/donor-portal-api/internal/app/broadcast"
	"github.com/hemoconecta/donor-portal-api/internal/app/campaigns"
	"github.com/hemoconecta/donor-portal-api/internal/app/donors"
	"github.com/hemoconecta/donor-portal-api/internal/app/participation"
	"github.com/hemoconecta/donor-portal-api/internal/app/segmentation"
	"github.com/hemoconecta/donor-portal-api/internal/platform/auth/jwtverifier"
	platformclock "github.com/hemoconecta/donor-portal-api/internal/platform/clock"
	"github.com/hemoconecta/donor-portal-api/internal/platform/config"
	"github.com/hemoconecta/donor-portal-api/internal/platform/metrics"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/campaigncache"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/idempotency"
)

const purgeInterval = time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	logger := cfg.Logging.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := platformclock.NewSystemClock()

	store, err := openStorage(ctx, cfg.Storage, clk, logger)
	if err != nil {
		return err
	}
	defer store.close()

	sender, err := newMailSender(ctx, cfg.Mail, logger)
	if err != nil {
		return fmt.Errorf("mail backend: %w", err)
	}

	var cache campaigncache.Cache
	if cfg.Cache.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		cache = rediscampaigncache.New(rdb, rediscampaigncache.WithTTL(cfg.Cache.CampaignTTL))
	}

	m := metrics.New()

	api := httpapi.NewServer(httpapi.Services{
		Donors:        donors.NewService(store.donors, store.ledger, clk),
		Campaigns:     campaigns.NewService(store.campaigns, cache, clk, logger),
		Participation: participation.NewService(store.ledger, clk, cache, m, logger),
		Broadcast: broadcast.NewService(
			segmentation.NewEngine(store.donors, clk),
			broadcast.NewDispatcher(sender,
				broadcast.WithRate(cfg.Broadcast.RatePerSecond),
				broadcast.WithMetrics(m),
				broadcast.WithLogger(logger),
			),
			sender,
			broadcast.Config{From: cfg.Mail.From, DefaultSubject: cfg.Broadcast.DefaultSubject},
		),
	}, store.idem, clk, logger)

	var authMW func(http.Handler) http.Handler
	switch cfg.Auth.Mode {
	case "dev":
		logger.Warn("dev auth mode: X-Debug-Subject is trusted, do not expose this deployment")
		authMW = httpapi.NewDevAuthMiddleware(cfg.Auth.DevSubject)
	default:
		authMW = httpapi.NewAuthMiddleware(jwtverifier.NewWithOptions(cfg.Auth.JWT, nil, clk))
	}

	handler := httpapi.NewRouter(api, httpapi.RouterOptions{
		AuthMiddleware:     authMW,
		AdminSubjects:      cfg.Auth.AdminSubjects,
		CORSAllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
		Metrics:            m,
		Logger:             logger,
	})

	if p, ok := store.idem.(idempotency.Purger); ok {
		go purgeIdempotency(ctx, p, logger)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening",
			"addr", srv.Addr,
			"storage", cfg.Storage.Backend,
			"mail", cfg.Mail.Backend,
			"cache", cache != nil,
			"auth", cfg.Auth.Mode,
			"version", version,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func purgeIdempotency(ctx context.Context, p idempotency.Purger, logger *slog.Logger) {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := p.Purge(ctx)
			if err != nil {
				logger.Warn("idempotency purge failed", "err", err)
				continue
			}
			if n > 0 {
				logger.Debug("idempotency records purged", "count", n)
			}
		}
	}
}
