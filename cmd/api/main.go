package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/dimasprab/go-order-recon/internal/config"
	"github.com/dimasprab/go-order-recon/internal/httpx"
	"github.com/dimasprab/go-order-recon/internal/inventory"
	kafkax "github.com/dimasprab/go-order-recon/internal/kafka"
	"github.com/dimasprab/go-order-recon/internal/logx"
	"github.com/dimasprab/go-order-recon/internal/notify"
	"github.com/dimasprab/go-order-recon/internal/orders"
	"github.com/dimasprab/go-order-recon/internal/payment"
	"github.com/dimasprab/go-order-recon/internal/postgres"
	"github.com/dimasprab/go-order-recon/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logx.New(cfg.ServiceName)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers: notification events + order lifecycle events. With no
	// brokers configured the api runs standalone and drops events.
	var (
		sink       notify.Sink = notify.NopSink{}
		eventProd  *kafkax.Producer
		statusProd *kafkax.Producer
		producers  []*kafkax.Producer
	)
	if len(cfg.KafkaBrokers) > 0 {
		notifProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicNotifications, 1024)
		eventProd = kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
		statusProd = kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024)
		producers = []*kafkax.Producer{notifProd, eventProd, statusProd}
		for _, p := range producers {
			p.Start(ctx)
		}
		sink = &notify.KafkaSink{Producer: notifProd, Service: cfg.ServiceName, Log: log}
	} else {
		log.Warn("no kafka brokers configured, events disabled")
	}

	// Core wiring
	ledger := &inventory.Ledger{DB: db}
	repo := &orders.Repo{DB: db, Ledger: ledger}

	var source payment.TransactionSource
	if cfg.BankEndpoint != "" {
		source = payment.NewAggregatorClient(cfg.BankEndpoint, cfg.BankToken, cfg.BankTimeout)
	}
	reconciler := payment.NewReconciler(repo, source, sink, rdb, cfg.PaymentMarker, log)
	reconciler.Events = statusProd
	reconciler.Service = cfg.ServiceName

	// HTTP
	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{
		Repo:         repo,
		Sink:         sink,
		Events:       eventProd,
		StatusEvents: statusProd,
		Redis:        rdb,
		Service:      cfg.ServiceName,
		Log:          log,
	}
	oh.Register(router)
	ph := &httpx.PaymentHandler{Reconciler: reconciler, Log: log}
	ph.Register(router)
	nh := &httpx.NotificationsHandler{Store: &notify.Repo{DB: db}, Log: log}
	nh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	cancel() // stop producer loops; they flush and close
	for _, p := range producers {
		p.WaitClosed()
	}
}
