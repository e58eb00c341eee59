package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gogenie-storefront/internal/cart"
	"gogenie-storefront/internal/config"
	"gogenie-storefront/internal/db"
	"gogenie-storefront/internal/httpserver"
	"gogenie-storefront/internal/logger"
	"gogenie-storefront/internal/metrics"
	"gogenie-storefront/internal/migrate"
	"gogenie-storefront/internal/realtime"
	cartrepo "gogenie-storefront/internal/repository/cart"
	"gogenie-storefront/internal/retail"
	cartsvc "gogenie-storefront/internal/service/cart"
	"gogenie-storefront/internal/service/checkout"
	ordersvc "gogenie-storefront/internal/service/order"
	"gogenie-storefront/internal/tracking"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("cmd", "api"))

	if err := run(cfg, log); err != nil {
		log.Error("api exited", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	readiness := map[string]httpserver.ReadinessCheck{}

	var carts cartrepo.Repository
	switch cfg.CartStore {
	case config.CartStorePostgres:
		pool, err := db.Connect(ctx, cfg.DBConnString, log)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := migrate.Apply(ctx, pool, log); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		carts = cartrepo.NewPostgres(pool)
		readiness["db"] = func(ctx context.Context) error { return db.Ping(ctx, pool) }
	default:
		carts = cartrepo.NewMemory()
	}
	log.Info("cart store selected", zap.String("store", cfg.CartStore))

	client, err := retail.NewClient(cfg.RetailAPIURL,
		retail.WithTimeout(cfg.RetailAPITimeout),
		retail.WithLogger(log.Named("retail")),
	)
	if err != nil {
		return fmt.Errorf("retail client: %w", err)
	}

	policy := cart.Policy{
		FreeDeliveryThreshold: cfg.FreeDeliveryThreshold,
		DeliveryFee:           cfg.DeliveryFee,
	}
	normalizer := tracking.NewNormalizer(log.Named("tracking"), m.UnmappedStatus)
	tracker := ordersvc.NewTracker(client, normalizer, log.Named("orders"), m)

	srv, err := httpserver.New(cfg.HTTPAddr, log.Named("http"), httpserver.Deps{
		CartSvc: cartsvc.New(carts, policy, log.Named("cart"), m),
		CheckoutSvc: checkout.New(carts, client, checkout.Config{
			Policy:         policy,
			DefaultStoreID: cfg.DefaultStoreID,
		}, log.Named("checkout"), m),
		Orders:         tracker,
		Stores:         client,
		Metrics:        m.Handler(),
		Readiness:      readiness,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Production:     cfg.IsProduction(),
	})
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		readiness["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }

		listener := realtime.NewListener(rdb, tracker, realtime.Config{
			ServiceToken: cfg.RetailServiceToken,
		}, log.Named("realtime"), m)
		g.Go(func() error { return listener.Run(gctx) })
	} else {
		log.Info("REDIS_URL not set, realtime order updates disabled")
	}

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		log.Info("server stopped")
		return nil
	})

	return g.Wait()
}
