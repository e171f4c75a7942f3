package kafka

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/LoreKit/internal/application/annotation"
	"github.com/turtacn/LoreKit/internal/config"
	"github.com/turtacn/LoreKit/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/LoreKit/pkg/errors"
)

var ErrAlreadyRunning = apperrors.New(apperrors.ErrCodeInternal, "consumer already running")

const fetchRetryBackoff = time.Second

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerMetrics counts handled messages.
type ConsumerMetrics struct {
	MessagesConsumed atomic.Int64
	MessagesApplied  atomic.Int64
	MessagesSkipped  atomic.Int64
}

// RuleChangeConsumer applies RuleChange messages to a RuleReloader.  It is
// the multi-replica counterpart of the filesystem watcher: every replica runs
// one with its own group id, or all share a group when only one must react.
type RuleChangeConsumer struct {
	reader  ReaderInterface
	target  annotation.RuleReloader
	logger  logging.Logger
	running atomic.Bool
	metrics ConsumerMetrics
}

// NewRuleChangeConsumer reads cfg.RulesTopic as member of cfg.GroupID.
func NewRuleChangeConsumer(cfg config.KafkaConfig, target annotation.RuleReloader, logger logging.Logger) (*RuleChangeConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeValidation, "kafka brokers required")
	}
	if cfg.RulesTopic == "" || cfg.GroupID == "" {
		return nil, apperrors.New(apperrors.ErrCodeValidation, "kafka rules topic and group id required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.RulesTopic,
		StartOffset:    kafka.LastOffset,
		MinBytes:       1,
		MaxBytes:       1 << 20,
		MaxWait:        time.Second,
		CommitInterval: 0,
	})
	return NewRuleChangeConsumerWithReader(reader, target, logger), nil
}

// NewRuleChangeConsumerWithReader wraps an existing reader.
func NewRuleChangeConsumerWithReader(r ReaderInterface, target annotation.RuleReloader, logger logging.Logger) *RuleChangeConsumer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RuleChangeConsumer{reader: r, target: target, logger: logger.Named("rule_changes")}
}

// Run consumes until ctx is done.  Malformed messages are committed and
// skipped so that they cannot wedge the partition.
func (c *RuleChangeConsumer) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	c.logger.Info("rule change consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("rule change consumer stopped")
				return nil
			}
			c.logger.Warn("fetch failed", logging.Err(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(fetchRetryBackoff):
			}
			continue
		}
		c.metrics.MessagesConsumed.Add(1)
		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Warn("commit failed", logging.Int64("offset", msg.Offset), logging.Err(err))
		}
	}
}

func (c *RuleChangeConsumer) handle(ctx context.Context, msg kafka.Message) {
	change, err := DecodeRuleChange(msg.Value)
	if err != nil {
		c.metrics.MessagesSkipped.Add(1)
		c.logger.Warn("skipping malformed rule change",
			logging.Int("partition", msg.Partition),
			logging.Int64("offset", msg.Offset),
			logging.Err(err))
		return
	}

	if change.All {
		c.logger.Info("base rules changed")
		if err := c.target.ReloadBase(ctx); err != nil {
			c.logger.Error("base rules reload failed; keeping previous parser", logging.Err(err))
		}
		c.target.InvalidateAll()
	} else if err := c.target.Invalidate(change.Project); err != nil {
		c.metrics.MessagesSkipped.Add(1)
		c.logger.Warn("ignoring rule change", logging.String("project", change.Project), logging.Err(err))
		return
	}
	c.metrics.MessagesApplied.Add(1)
}

// Applied returns the number of rule changes applied.
func (c *RuleChangeConsumer) Applied() int64 { return c.metrics.MessagesApplied.Load() }

// Skipped returns the number of rule changes skipped.
func (c *RuleChangeConsumer) Skipped() int64 { return c.metrics.MessagesSkipped.Load() }

// Close closes the reader.
func (c *RuleChangeConsumer) Close() error {
	return c.reader.Close()
}
