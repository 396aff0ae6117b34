package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mesa-table-service/internal/billing"
	"mesa-table-service/internal/callbacks"
	"mesa-table-service/internal/catalog"
	"mesa-table-service/internal/config"
	"mesa-table-service/internal/dayclose"
	"mesa-table-service/internal/db"
	"mesa-table-service/internal/dispatch"
	httpapi "mesa-table-service/internal/http"
	"mesa-table-service/internal/http/handlers"
	"mesa-table-service/internal/logger"
	"mesa-table-service/internal/messaging"
	"mesa-table-service/internal/notify"
	"mesa-table-service/internal/orders"
	"mesa-table-service/internal/payments"
	"mesa-table-service/internal/queue"
	"mesa-table-service/internal/ws"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	var queueClient *queue.Client
	if cfg.RabbitMQURL != "" {
		qc, err := queue.New(cfg.RabbitMQURL, log)
		if err != nil {
			if cfg.Env == "production" {
				log.Fatal("rabbitmq connection failed", zap.Error(err))
			}
			log.Warn("rabbitmq connection failed; continuing without broker", zap.Error(err))
			qc = nil
		}
		if qc != nil {
			if err := qc.EnsureExchangeKind(queue.EventsExchange, "topic"); err != nil {
				if cfg.Env == "production" {
					log.Fatal("rabbitmq events exchange failed", zap.Error(err))
				}
				log.Warn("rabbitmq events exchange failed; continuing without broker", zap.Error(err))
				_ = qc.Close()
				qc = nil
			}
		}
		if qc != nil {
			if err := queue.EnsureCallbackTopology(ctx, qc); err != nil {
				if cfg.Env == "production" {
					log.Fatal("rabbitmq callback topology failed", zap.Error(err))
				}
				log.Warn("rabbitmq callback topology failed; continuing without broker", zap.Error(err))
				_ = qc.Close()
				qc = nil
			}
		}
		if qc != nil {
			if err := queue.EnsureOutboundTopology(ctx, qc); err != nil {
				if cfg.Env == "production" {
					log.Fatal("rabbitmq outbound topology failed", zap.Error(err))
				}
				log.Warn("rabbitmq outbound topology failed; continuing without broker", zap.Error(err))
				_ = qc.Close()
				qc = nil
			}
		}

		queueClient = qc
		if qc != nil {
			defer qc.Close()
		}
	} else {
		log.Info("broker disabled (RABBITMQ_URL is empty)")
	}

	messenger := &messaging.AMQPMessenger{Queue: queueClient, Logger: log}
	menuCatalog := &catalog.Catalog{DB: pool}
	ledger := billing.NewLedger(pool, log, cfg.DefaultTaxRate)
	router := &dispatch.Router{Catalog: menuCatalog, Messenger: messenger, Logger: log}
	intake := &orders.Intake{DB: pool, Catalog: menuCatalog, Messenger: messenger, Logger: log}
	coordinator := &orders.Coordinator{DB: pool, Ledger: ledger, Router: router, Queue: queueClient, Logger: log}
	settlement := &payments.Settlement{DB: pool, Ledger: ledger, Messenger: messenger, Logger: log}
	dayClose := &dayclose.Engine{DB: pool, Messenger: messenger, Logger: log}

	if queueClient != nil && cfg.RabbitMQWorkerMode == "daemon" {
		log.Info("callback worker enabled", zap.String("queue", queue.CallbacksQueue))
		dispatcher := &callbacks.Dispatcher{Coordinator: coordinator, Settlement: settlement, Logger: log}
		go func() {
			err := queueClient.ConsumeWithRetry(ctx, queue.CallbacksQueue, dispatcher.Handle, 5, 5*time.Second)
			if err != nil && err != context.Canceled {
				log.Error("callback consumer stopped", zap.Error(err))
			}
		}()
	}

	poller := notify.NewPoller(pool, messenger, log, cfg.NotifyPollInterval)
	go poller.Run(ctx)

	wsServer := ws.New(pool, log, cfg)
	h := &handlers.Handler{
		DB:          pool,
		Logger:      log,
		Config:      cfg,
		Intake:      intake,
		Coordinator: coordinator,
		Ledger:      ledger,
		Settlement:  settlement,
		DayClose:    dayClose,
		Catalog:     menuCatalog,
	}

	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(pool, log, cfg, h, wsServer),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("table service api ready", zap.String("base", "/api"))
		log.Info("table service ws ready", zap.String("base", "/ws"))
		log.Info("table service listening", zap.String("addr", cfg.HTTPAddr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := apiServer.Shutdown(ctxShutdown); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
}
