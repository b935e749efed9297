package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/zavodil/near-social-auth/internal/audit"
	"github.com/zavodil/near-social-auth/internal/invite"
	"github.com/zavodil/near-social-auth/internal/nearclient"
	"github.com/zavodil/near-social-auth/internal/platform/config"
	"github.com/zavodil/near-social-auth/internal/platform/httpserver"
	"github.com/zavodil/near-social-auth/internal/platform/logger"
	"github.com/zavodil/near-social-auth/internal/platform/postgres"
	"github.com/zavodil/near-social-auth/internal/platform/redis"
	"github.com/zavodil/near-social-auth/internal/social"
	"github.com/zavodil/near-social-auth/internal/verify"
	"github.com/zavodil/near-social-auth/internal/verify/handler"
	"github.com/zavodil/near-social-auth/pkg/platform/middleware/metadata"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal packages.
func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("configuration failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.Postgres.URL)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	invites := invite.NewPostgres(db)
	auditStore := audit.NewPostgres(db)
	if cfg.Postgres.InitSchema {
		if err := invites.EnsureSchema(ctx); err != nil {
			log.Error("invites schema init failed", "error", err)
			os.Exit(1)
		}
		if err := auditStore.EnsureSchema(ctx); err != nil {
			log.Error("audit schema init failed", "error", err)
			os.Exit(1)
		}
	}

	cache, err := redis.New(ctx, cfg.Redis.URL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if cache != nil {
		defer cache.Close()
		log.Info("access key cache enabled", "ttl", cfg.Redis.AccessKeyTTL)
	}

	rpc := nearclient.New(cfg.NEAR, log)
	lister := nearclient.NewCachedLister(rpc, cache, cfg.Redis.AccessKeyTTL, log)
	checker := nearclient.NewKeyChecker(lister, cfg.NEAR.ContractID)

	socialClient := social.New(cfg.Social, log)

	auditor := audit.NewPublisher(256, log)
	auditWorker := audit.NewWorker(auditStore, auditor.Inbox(), log)

	service := verify.NewService(checker, socialClient, invites, auditor, log, cfg.NEAR.AccountSuffix)

	router := chi.NewRouter()
	router.Use(metadata.ClientMetadata)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		if cache != nil {
			if err := cache.Health(r.Context()); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	handler.New(service, log).Register(router)

	srv := httpserver.New(cfg.Server.Addr, router)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := httpserver.New(cfg.Server.MetricsAddr, metricsMux)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return auditWorker.Run(groupCtx)
	})
	group.Go(func() error {
		log.Info("server listening", "addr", cfg.Server.Addr, "network", cfg.NEAR.NetworkID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		log.Info("metrics listening", "addr", cfg.Server.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
