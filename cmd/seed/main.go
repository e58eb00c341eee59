package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"gogenie-storefront/internal/config"
	"gogenie-storefront/internal/db"
	"gogenie-storefront/internal/logger"
	"gogenie-storefront/internal/migrate"
	cartrepo "gogenie-storefront/internal/repository/cart"
	"gogenie-storefront/internal/seed"
)

func main() {
	session := flag.String("session", seed.DemoSessionID, "session id to write the demo cart to")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("cmd", "seed"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DBConnString, log)
	if err != nil {
		log.Fatal("connect db", zap.Error(err))
	}
	defer pool.Close()

	if err := migrate.Apply(ctx, pool, log); err != nil {
		log.Fatal("apply migrations", zap.Error(err))
	}

	items, err := seed.Apply(ctx, cartrepo.NewPostgres(pool), *session, cfg.DefaultStoreID)
	if err != nil {
		log.Fatal("seed cart", zap.Error(err))
	}
	log.Info("demo cart seeded", zap.String("session_id", *session), zap.Int("lines", len(items)))
}
