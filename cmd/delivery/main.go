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

	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/config"
	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/delivery"
	kafkax "github.com/TranNgocKhiet/meal-prep-service-sub000/internal/kafka"
	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/orders"
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

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// courier assignment never completes deliveries, so no order marker here
	scheduleSvc := &delivery.Service{
		Store: &delivery.PGStore{DB: db},
		Log:   log,
	}
	assigner := &delivery.Assigner{
		Schedules: scheduleSvc,
		Redis:     rdb,
		Couriers:  cfg.Couriers,
		Log:       log,
	}

	group := getenv("DELIVERY_GROUP", "delivery-svc")
	workers := mustAtoi(os.Getenv("DELIVERY_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicPaymentConfirmed, workers, log)

	go func() {
		log.Info("delivery consumer started",
			zap.String("group", group),
			zap.String("topic", orders.TopicPaymentConfirmed),
			zap.Int("workers", workers),
		)
		if err := cons.Start(ctx, assigner.HandlePaymentConfirmed); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down consumer")
	cancel()
	time.Sleep(500 * time.Millisecond)
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

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
