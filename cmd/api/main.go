package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"example.com/roster/internal/api"
	"example.com/roster/internal/config"
	"example.com/roster/internal/domain"
	"example.com/roster/internal/logger"
	"example.com/roster/internal/observability"
	"example.com/roster/internal/outbox"
	"example.com/roster/internal/roster"
	httptransport "example.com/roster/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logg, err := logger.New(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	if err := run(cfg, logg); err != nil {
		logg.Errorw("roster api stopped", "error", err)
		_ = logg.Sync()
		os.Exit(1)
	}
	_ = logg.Sync()
}

func run(cfg *config.Config, logg *zap.SugaredLogger) error {
	catalog, err := roster.LoadCatalog(cfg.Roster.SeedFile)
	if err != nil {
		return err
	}
	store := roster.NewInMemoryStore(catalog, roster.WithCapacityEnforcement(cfg.Roster.EnforceCapacity))
	for name, activity := range catalog {
		observability.SetParticipants(name, len(activity.Participants))
	}

	opts := []domain.Option{domain.WithLogger(logg)}

	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()

	var dispatcher *outbox.Dispatcher
	if cfg.Kafka.Enabled() {
		producer := outbox.NewKafkaProducer(cfg.Kafka.BrokerList())
		defer producer.Close()

		dispatcher = newDispatcher(cfg, producer, logg)
		go dispatcher.Start(dispatchCtx)

		opts = append(opts, domain.WithPublisher(dispatcher))
		logg.Infow("event publishing enabled", "brokers", cfg.Kafka.BrokerList(), "topic", cfg.Kafka.Topic)
	} else {
		logg.Infow("event publishing disabled")
	}

	service := domain.NewService(store, opts...)

	mux := http.NewServeMux()
	api.NewHandler(service, logg).RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTP.Address,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}, api.RequestLogger(logg)(api.CORS(cfg.HTTP.CORSOrigin)(mux)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logg.Infow("roster api listening", "address", cfg.HTTP.Address, "activities", catalog.Names())
	serveErr := httptransport.Serve(ctx, server, cfg.HTTP.ShutdownTimeout)

	// The listener is closed before the queue is drained so no event is enqueued after the final flush.
	if dispatcher != nil {
		stopDispatch()
		dispatcher.Wait()
		if pending := dispatcher.Pending(); pending > 0 {
			logg.Warnw("events left undelivered at shutdown", "pending", pending)
		}
		if dead := dispatcher.DeadLetters(); len(dead) > 0 {
			logg.Warnw("events dead-lettered during run", "count", len(dead), "last_reason", dead[len(dead)-1].Reason)
		}
	}
	return serveErr
}

// newDispatcher frames events with schema id 0 when no registry URL is configured.
func newDispatcher(cfg *config.Config, producer *outbox.KafkaProducer, logg *zap.SugaredLogger) *outbox.Dispatcher {
	outboxCfg := outbox.Config{
		Topic:        cfg.Kafka.Topic,
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
		QueueSize:    cfg.Outbox.QueueSize,
		MaxRetries:   cfg.Outbox.MaxRetries,
		BaseDelay:    cfg.Outbox.BaseDelay,
	}
	if cfg.SchemaRegistryURL == "" {
		return outbox.NewDispatcher(producer, nil, outboxCfg, outbox.WithLogger(logg))
	}
	registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL, 10*time.Second)
	return outbox.NewDispatcher(producer, registry, outboxCfg, outbox.WithLogger(logg))
}
