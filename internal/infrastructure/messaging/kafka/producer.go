package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/LoreKit/internal/application/annotation"
	"github.com/turtacn/LoreKit/internal/config"
	"github.com/turtacn/LoreKit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LoreKit/pkg/errors"
)

var ErrProducerClosed = errors.New(errors.ErrCodeInternal, "producer closed")

const (
	defaultWriteTimeout = 10 * time.Second
	defaultMaxAttempts  = 3
)

// WriterInterface abstracts kafka.Writer for testing.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ProducerMetrics counts delivered and failed messages.
type ProducerMetrics struct {
	MessagesSent   atomic.Int64
	MessagesFailed atomic.Int64
	BytesSent      atomic.Int64
}

// Producer writes JSON messages of one event type to one topic.  It
// satisfies annotation.EventSink.
type Producer struct {
	writer    WriterInterface
	topic     string
	eventType string
	logger    logging.Logger
	closed    atomic.Bool
	metrics   ProducerMetrics
}

var _ annotation.EventSink = (*Producer)(nil)

// NewProducer builds a Producer for topic over cfg.Brokers.
func NewProducer(cfg config.KafkaConfig, topic, eventType string, logger logging.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	if topic == "" {
		return nil, errors.New(errors.ErrCodeValidation, "kafka topic required")
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = defaultWriteTimeout
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		MaxAttempts:  defaultMaxAttempts,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{DialTimeout: 10 * time.Second},
	}
	return NewProducerWithWriter(writer, topic, eventType, logger), nil
}

// NewProducerWithWriter wraps an existing writer.
func NewProducerWithWriter(w WriterInterface, topic, eventType string, logger logging.Logger) *Producer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Producer{writer: w, topic: topic, eventType: eventType, logger: logger.Named("kafka_producer")}
}

// Publish implements annotation.EventSink.
func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if len(value) == 0 {
		return errors.New(errors.ErrCodeValidation, "message value required")
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(key),
		Value: value,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: HeaderContentType, Value: []byte("application/json")},
			{Key: HeaderEventType, Value: []byte(p.eventType)},
		},
	}

	start := time.Now()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.MessagesFailed.Add(1)
		return errors.Wrap(err, errors.ErrCodeEventPublish, "publish failed").WithDetail("topic=" + p.topic)
	}
	p.metrics.MessagesSent.Add(1)
	p.metrics.BytesSent.Add(int64(len(value)))

	p.logger.Debug("message published",
		logging.String("topic", p.topic),
		logging.String("key", key),
		logging.Int64("latency_ms", time.Since(start).Milliseconds()))
	return nil
}

// PublishRuleChange encodes and publishes change.
func (p *Producer) PublishRuleChange(ctx context.Context, change RuleChange) error {
	if err := change.Validate(); err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "invalid rule change")
	}
	if change.ChangedAt.IsZero() {
		change.ChangedAt = time.Now().UTC()
	}
	data, err := json.Marshal(change)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode rule change")
	}
	return p.Publish(ctx, change.Key(), data)
}

// Sent returns the number of delivered messages.
func (p *Producer) Sent() int64 { return p.metrics.MessagesSent.Load() }

// Failed returns the number of failed deliveries.
func (p *Producer) Failed() int64 { return p.metrics.MessagesFailed.Load() }

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.writer.Close()
	p.logger.Info("kafka producer closed", logging.Int64("sent", p.metrics.MessagesSent.Load()))
	return err
}
