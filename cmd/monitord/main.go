package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/ben458-1/URL-Server-Monitor/internal/config/monitord"
	"github.com/ben458-1/URL-Server-Monitor/internal/broadcast"
	"github.com/ben458-1/URL-Server-Monitor/internal/httpapi"
	"github.com/ben458-1/URL-Server-Monitor/internal/obs"
	"github.com/ben458-1/URL-Server-Monitor/internal/probe"
	kafkaRepo "github.com/ben458-1/URL-Server-Monitor/internal/repository/kafka"
	pg "github.com/ben458-1/URL-Server-Monitor/internal/repository/postgres"
	"github.com/ben458-1/URL-Server-Monitor/internal/scheduler"
	"github.com/ben458-1/URL-Server-Monitor/internal/status"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to yaml config")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()
	l.Info("starting monitord",
		zap.Duration("tick", cfg.Sched.Tick),
		zap.String("http_addr", cfg.Server.HTTPAddr),
		zap.String("metrics_addr", cfg.Server.MetricsAddr),
	)

	otelCloser, err := obs.SetupOTel(ctx, cfg.OTEL)
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	db, err := pg.New(ctx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	dbPing := func(ctx context.Context) error { return db.Pool.Ping(ctx) }
	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, dbPing, l)

	// wiring
	targets := pg.NewTargetRepo(db)
	store := pg.NewHealthRepo(db)
	hub := broadcast.NewHub(l, cfg.Hub.QueueSize)
	prober := probe.NewHTTP(cfg.Probe)

	var events scheduler.Events
	if cfg.Kafka.Enable {
		if err := kafkaRepo.EnsureTopic(ctx, cfg.Kafka.Brokers, kafkaRepo.TopicSpec{Name: cfg.Kafka.Topic}, l); err != nil {
			l.Warn("ensure status topic", zap.Error(err))
		}
		prod := kafkaRepo.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic).WithLogger(l)
		defer func() { _ = prod.Close() }()
		events = kafkaRepo.NewStatusEvents(prod, l)
	}

	runner := scheduler.New(l, targets, store, prober, hub, events, cfg.Sched)

	api := httpapi.NewServer(l, status.New(store), hub, dbPing, cfg.Server.CORSOrigins)
	httpSrv := &http.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      api.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 2)
	go func() { errCh <- runner.Run(ctx) }()
	go func() {
		l.Info("http listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	l.Info("monitord started")

	select {
	case <-ctx.Done():
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("runtime error", zap.Error(err))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shCtx)
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
