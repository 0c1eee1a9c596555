package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/dimasprab/go-order-recon/internal/config"
	kafkax "github.com/dimasprab/go-order-recon/internal/kafka"
	"github.com/dimasprab/go-order-recon/internal/logx"
	"github.com/dimasprab/go-order-recon/internal/notify"
	"github.com/dimasprab/go-order-recon/internal/orders"
	"github.com/dimasprab/go-order-recon/internal/postgres"
	"github.com/dimasprab/go-order-recon/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logx.New(cfg.ServiceName + "-notifier")
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &notify.Service{
		Repo:  &notify.Repo{DB: db},
		Redis: rdb,
		Log:   log,
	}

	group := getenv("NOTIFIER_GROUP", "notifier-svc")
	workers := mustAtoi(os.Getenv("NOTIFIER_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicNotifications, workers)

	go func() {
		log.Info("notifier consumer started",
			zap.String("group", group),
			zap.String("topic", orders.TopicNotifications),
			zap.Int("workers", workers),
		)
		if err := cons.Start(ctx, svc.HandleNotifyUser); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down notifier")
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}
