package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"example.com/roster/internal/config"
	"example.com/roster/internal/consumer"
	"example.com/roster/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.ValidateConsumer(); err != nil {
		log.Fatalf("invalid consumer config: %v", err)
	}

	logg, err := logger.New(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	if err := run(cfg, logg); err != nil {
		logg.Errorw("roster consumer stopped", "error", err)
		_ = logg.Sync()
		os.Exit(1)
	}
	_ = logg.Sync()
}

func run(cfg *config.Config, logg *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	handler := consumer.NewPersistenceHandler(pool)

	metricsSrv := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logg.Infow("consumer metrics listening", "address", cfg.Metrics.Address)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Errorw("metrics server error", "error", err)
		}
	}()

	var wg sync.WaitGroup
	for _, topic := range cfg.Consumer.TopicList() {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:         cfg.Kafka.BrokerList(),
			GroupID:         cfg.Consumer.GroupID,
			Topic:           topic,
			MinBytes:        1e3,
			MaxBytes:        10e6,
			CommitInterval:  time.Second,
			RetentionTime:   24 * time.Hour,
			ReadLagInterval: -1,
		})

		proc := consumer.NewProcessor(reader, handler, consumer.WithLogger(logg.With("topic", topic)))

		wg.Add(1)
		go func(topic string, r *kafka.Reader) {
			defer wg.Done()
			defer r.Close()

			logg.Infow("consumer started", "topic", topic, "group", cfg.Consumer.GroupID)
			if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logg.Errorw("consumer stopped with error", "topic", topic, "error", err)
			}
		}(topic, reader)
	}

	<-ctx.Done()
	logg.Infow("consumer shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logg.Warnw("metrics server shutdown error", "error", err)
	}

	wg.Wait()
	return nil
}
