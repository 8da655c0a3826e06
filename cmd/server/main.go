package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"clob/api/wsserver"
	"clob/config"
	"clob/domain/orderbook"
	"clob/infra/store"
	"clob/jobs/broadcaster"
	"clob/jobs/marketdata"
	"clob/service"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// ---------------- Config ----------------

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("configuration invalid", zap.Error(err))
	}

	// ---------------- Durable log ----------------

	st, err := store.Open(cfg.DataDir, log)
	if err != nil {
		log.Fatal("durable log open failed", zap.Error(err))
	}
	defer st.Close()

	// ---------------- Recovery ----------------
	// Must finish before any submission is accepted.

	book := orderbook.NewOrderBook()
	if _, err := service.Recover(st, book, log); err != nil {
		log.Fatal("recovery failed", zap.Error(err))
	}

	// ---------------- Service ----------------

	svc := service.NewOrderService(book, st, log, cfg.PersistQueueDepth)
	svc.Start()

	// ---------------- Background jobs ----------------

	jobsCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	if cfg.Kafka.Enabled {
		bc, err := broadcaster.New(st, cfg.Kafka.Brokers, cfg.Kafka.TradeTopic, log)
		if err != nil {
			log.Fatal("broadcaster init failed", zap.Error(err))
		}
		defer bc.Close()
		go bc.Run(jobsCtx)

		depth := marketdata.NewPublisher(svc, cfg.Kafka.Brokers, cfg.Kafka.DepthTopic, cfg.Kafka.DepthInterval, cfg.Kafka.DepthLevels, log)
		defer depth.Close()
		go depth.Run(jobsCtx)
	}

	// ---------------- Transport ----------------

	srv := wsserver.New(svc, log)

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe(":" + cfg.Port)
	}()

	// ---------------- Shutdown ----------------

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigc:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errc:
		if err != nil {
			log.Error("server exited", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("listener shutdown failed", zap.Error(err))
	}

	cancelJobs()

	// Drains every queued persistence batch before the store closes.
	svc.Close()

	log.Info("engine stopped")
}
