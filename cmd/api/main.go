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

	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/accounts"
	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/config"
	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/delivery"
	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/httpx"
	kafkax "github.com/TranNgocKhiet/meal-prep-service-sub000/internal/kafka"
	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/menu"
	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/orders"
	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/payment"
	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/postgres"
	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal("db migrate", zap.Error(err))
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	pCreated.Start(ctx)
	pConfirmed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicPaymentConfirmed, 1024)
	pConfirmed.Start(ctx)
	pFailed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicPaymentFailed, 1024)
	pFailed.Start(ctx)
	pDelivered := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderDelivered, 1024)
	pDelivered.Start(ctx)

	ledger := &menu.Store{DB: db}
	orderStore := &orders.PGStore{DB: db}

	orderSvc := &orders.Service{
		Store:             orderStore,
		Ledger:            ledger,
		Accounts:          &accounts.Store{DB: db},
		ProducerCreated:   pCreated,
		ProducerDelivered: pDelivered,
		ServiceName:       cfg.ServiceName,
		Log:               log,
	}
	scheduleSvc := &delivery.Service{
		Store:  &delivery.PGStore{DB: db},
		Orders: orderSvc,
		Log:    log,
	}
	coordinator := &payment.Coordinator{
		Orders:            orderStore,
		Ledger:            ledger,
		Scheduler:         scheduleSvc,
		Validator:         payment.HMACValidator{Secret: []byte(cfg.GatewaySecret)},
		ProducerConfirmed: pConfirmed,
		ProducerFailed:    pFailed,
		ServiceName:       cfg.ServiceName,
		Log:               log,
	}

	router := httpx.NewRouter()
	h := &httpx.Handler{
		Orders:    orderSvc,
		Payments:  coordinator,
		Menu:      ledger,
		Schedules: scheduleSvc,
		Redis:     rdb,
		Log:       log,
	}
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	for _, p := range []*kafkax.Producer{pCreated, pConfirmed, pFailed, pDelivered} {
		p.Close()
	}
	for _, p := range []*kafkax.Producer{pCreated, pConfirmed, pFailed, pDelivered} {
		p.WaitClosed()
	}
}
