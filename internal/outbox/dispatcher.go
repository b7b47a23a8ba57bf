// Package outbox buffers roster change events in memory and delivers them to Kafka.
package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"example.com/roster/internal/events"
)

// ErrQueueFull is returned by Publish when the pending queue is at capacity.
var ErrQueueFull = errors.New("outbox queue is full")

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

// Config tunes a Dispatcher.
type Config struct {
	Topic        string
	PollInterval time.Duration
	BatchSize    int
	QueueSize    int
	MaxRetries   int
	BaseDelay    time.Duration
}

// Option configures optional behaviour for the Dispatcher.
type Option func(*Dispatcher)

// WithLogger overrides the logger used to report delivery problems.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithClock overrides the time source used for retry scheduling.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// Dispatcher queues events and delivers them to Kafka using Schema Registry framing.
// Messages leave the queue in FIFO order; a message waiting for its retry blocks the ones behind it.
type Dispatcher struct {
	producer     messageWriter
	registry     schemaRegistrar
	topic        string
	pollInterval time.Duration
	batchSize    int
	queueSize    int
	maxRetries   int
	baseDelay    time.Duration
	logger       *zap.SugaredLogger
	now          func() time.Time

	mu       sync.Mutex
	pending  []Message
	// inflight counts claimed messages not yet delivered or re-queued; they still hold queue capacity.
	inflight int
	dead     *deadLetterLog

	schemaIDCache    sync.Map
	shutdownComplete chan struct{}
}

// NewDispatcher constructs a Dispatcher. A nil registry frames every message with schema id 0.
func NewDispatcher(producer messageWriter, registry schemaRegistrar, cfg Config, opts ...Option) *Dispatcher {
	if registry == nil {
		registry = NoopRegistry{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}

	d := &Dispatcher{
		producer:         producer,
		registry:         registry,
		topic:            cfg.Topic,
		pollInterval:     cfg.PollInterval,
		batchSize:        cfg.BatchSize,
		queueSize:        cfg.QueueSize,
		maxRetries:       cfg.MaxRetries,
		baseDelay:        cfg.BaseDelay,
		logger:           zap.NewNop().Sugar(),
		now:              time.Now,
		dead:             newDeadLetterLog(defaultDeadLetterCapacity),
		shutdownComplete: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Publish implements domain.Publisher by enqueueing the event for delivery.
// The queue bound covers messages being delivered, so failed batches always fit back in.
func (d *Dispatcher) Publish(ctx context.Context, evt events.Envelope) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.pending)+d.inflight >= d.queueSize {
		droppedCounter.Inc()
		return ErrQueueFull
	}
	d.pending = append(d.pending, Message{
		EventID:       evt.EventID,
		EventType:     evt.EventType,
		Topic:         d.topic,
		SchemaSubject: d.topic + "-" + evt.EventType,
		PartitionKey:  evt.Activity,
		Payload:       value,
		EnqueuedAt:    d.now(),
	})
	queueDepthGauge.Set(float64(len(d.pending)))
	return nil
}

// Pending returns the number of queued messages.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// DeadLetters returns the most recent messages that exhausted their retries, oldest first.
func (d *Dispatcher) DeadLetters() []DeadLetter {
	return d.dead.list()
}

// Start launches the polling loop. It should be called in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	for {
		if err := d.processBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Warnw("outbox dispatcher error", "error", err)
		}

		select {
		case <-ctx.Done():
			d.flush()
			return
		case <-ticker.C:
		}
	}
}

// Wait waits until dispatcher stops.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

// flush makes one bounded attempt to deliver whatever is still queued at shutdown.
func (d *Dispatcher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for d.Pending() > 0 && ctx.Err() == nil {
		before := d.Pending()
		if err := d.processBatch(ctx); err != nil {
			d.logger.Warnw("outbox flush stopped", "pending", d.Pending(), "error", err)
			return
		}
		if d.Pending() >= before {
			return
		}
	}
}

func (d *Dispatcher) processBatch(ctx context.Context) error {
	start := time.Now()

	messages := d.claimReady()
	if len(messages) == 0 {
		return nil
	}
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	if err := d.deliver(ctx, messages); err != nil {
		failedCounter.Add(float64(len(messages)))
		d.scheduleRetry(messages, err)
		return fmt.Errorf("deliver %d messages: %w", len(messages), err)
	}

	d.settle(len(messages))
	deliveredCounter.Add(float64(len(messages)))
	return nil
}

func (d *Dispatcher) settle(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inflight -= n
}

// claimReady removes up to batchSize messages from the head of the queue whose retry time has passed.
func (d *Dispatcher) claimReady() []Message {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	n := 0
	for n < len(d.pending) && n < d.batchSize {
		if d.pending[n].NextAttemptAt.After(now) {
			break
		}
		n++
	}
	if n == 0 {
		return nil
	}

	claimed := make([]Message, n)
	copy(claimed, d.pending[:n])
	d.pending = append(d.pending[:0:0], d.pending[n:]...)
	d.inflight += n
	queueDepthGauge.Set(float64(len(d.pending)))
	return claimed
}

// scheduleRetry puts failed messages back at the head of the queue or dead-letters them.
func (d *Dispatcher) scheduleRetry(messages []Message, cause error) {
	now := d.now()
	retry := make([]Message, 0, len(messages))
	for _, msg := range messages {
		msg.Attempts++
		if msg.Attempts >= d.maxRetries {
			d.dead.add(DeadLetter{Message: msg, Reason: cause.Error(), FailedAt: now})
			dlqCounter.WithLabelValues(msg.Topic).Inc()
			d.logger.Errorw("outbox message dead-lettered",
				"event_id", msg.EventID,
				"event_type", msg.EventType,
				"attempts", msg.Attempts,
				"error", cause,
			)
			continue
		}
		msg.NextAttemptAt = now.Add(d.backoffDelay(msg.Attempts))
		retry = append(retry, msg)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.inflight -= len(messages)
	d.pending = append(retry, d.pending...)
	queueDepthGauge.Set(float64(len(d.pending)))
}

// backoffDelay calculates exponential backoff capped at one hour.
func (d *Dispatcher) backoffDelay(attempt int) time.Duration {
	if attempt > 30 {
		return time.Hour
	}
	delay := time.Duration(1<<uint(attempt-1)) * d.baseDelay
	if delay > time.Hour || delay <= 0 {
		delay = time.Hour
	}
	return delay
}

func (d *Dispatcher) deliver(ctx context.Context, messages []Message) error {
	batches := make(map[string][]kafka.Message)

	for _, msg := range messages {
		meta, ok := schemaCatalog[msg.EventType]
		if !ok {
			return fmt.Errorf("no schema metadata for event_type=%s", msg.EventType)
		}

		schemaID, err := d.schemaID(ctx, msg.SchemaSubject, meta.Schema)
		if err != nil {
			return err
		}

		batches[msg.Topic] = append(batches[msg.Topic], kafka.Message{
			Key:   []byte(msg.PartitionKey),
			Value: encodeWireFormat(schemaID, msg.Payload),
			Time:  d.now().UTC(),
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(msg.EventType)},
				{Key: "event_id", Value: []byte(msg.EventID)},
				{Key: "schema_subject", Value: []byte(msg.SchemaSubject)},
			},
		})
	}

	for topic, batch := range batches {
		if err := d.producer.WriteMessages(ctx, topic, batch...); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) schemaID(ctx context.Context, subject, schema string) (int, error) {
	cacheKey := subject + "::" + schema
	if cached, found := d.schemaIDCache.Load(cacheKey); found {
		return cached.(int), nil
	}
	id, err := d.registry.EnsureSchema(ctx, subject, schema)
	if err != nil {
		return 0, fmt.Errorf("ensure schema %s: %w", subject, err)
	}
	d.schemaIDCache.Store(cacheKey, id)
	return id, nil
}

// Message is a queued event awaiting delivery.
type Message struct {
	EventID       string
	EventType     string
	Topic         string
	SchemaSubject string
	PartitionKey  string
	Payload       json.RawMessage
	EnqueuedAt    time.Time
	Attempts      int
	NextAttemptAt time.Time
}

// encodeWireFormat applies Confluent framing for Schema Registry aware payloads.
func encodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, 5+len(payload))
	frame[0] = 0
	binary.BigEndian.PutUint32(frame[1:5], uint32(schemaID))
	copy(frame[5:], payload)
	return frame
}
