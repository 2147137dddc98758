package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/petermyo/DecentralizeFileShare/internal/app/model"
	apprepository "github.com/petermyo/DecentralizeFileShare/internal/app/repository"
	"go.uber.org/zap"
)

const (
	consumerBatchSize = 10
	consumerMaxWait   = 5 * time.Second
	// consumerBackoff is the pause after a failed fetch that was not a timeout.
	consumerBackoff = time.Second
)

// batchFetcher is the part of a pull subscription the fetch loop uses.
type batchFetcher interface {
	Fetch(batch int, opts ...nats.PullOpt) ([]*nats.Msg, error)
	Unsubscribe() error
}

// AccessConsumer consumes access events from NATS JetStream and stores them.
type AccessConsumer struct {
	js     nats.JetStreamContext
	logger *zap.Logger
	repo   apprepository.AccessEventRepository
	cancel context.CancelFunc
	done   chan struct{}

	backoff time.Duration
}

// NewAccessConsumer creates a new access event consumer.
func NewAccessConsumer(js nats.JetStreamContext, logger *zap.Logger, repo apprepository.AccessEventRepository) *AccessConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessConsumer{js: js, logger: logger, repo: repo, backoff: consumerBackoff}
}

// Start ensures the stream and durable consumer exist and begins consuming.
func (c *AccessConsumer) Start() error {
	if err := EnsureAccessStream(c.js); err != nil {
		return err
	}

	if _, err := c.js.ConsumerInfo(model.AccessStreamName, model.AccessConsumerName); err != nil {
		_, err = c.js.AddConsumer(model.AccessStreamName, &nats.ConsumerConfig{
			Durable:   model.AccessConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.AccessStreamSubject, model.AccessConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.consume(ctx, sub)
	return nil
}

// Stop ends the fetch loop and waits for the in-flight batch.
func (c *AccessConsumer) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

// EnsureAccessStream creates the access stream when it does not exist yet.
func EnsureAccessStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(model.AccessStreamName); err == nil {
		return nil
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     model.AccessStreamName,
		Subjects: []string{model.AccessStreamSubject},
		MaxBytes: model.AccessStreamMaxBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

func (c *AccessConsumer) consume(ctx context.Context, sub batchFetcher) {
	defer close(c.done)
	defer func() { _ = sub.Unsubscribe() }()

	for {
		if ctx.Err() != nil {
			c.logger.Info("access consumer stopped")
			return
		}

		fetchCtx, cancel := context.WithTimeout(ctx, consumerMaxWait)
		msgs, err := sub.Fetch(consumerBatchSize, nats.Context(fetchCtx))
		cancel()
		if err != nil && !errors.Is(err, nats.ErrTimeout) && !errors.Is(err, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Error("failed to fetch messages", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(c.backoff):
			}
			continue
		}

		for _, msg := range msgs {
			if err := c.store(ctx, msg.Data); err != nil {
				c.logger.Error("failed to store access event", zap.Error(err))
				_ = msg.Nak()
				continue
			}
			_ = msg.Ack()
		}
	}
}

// store decodes and persists one event payload.
func (c *AccessConsumer) store(ctx context.Context, data []byte) error {
	var event model.AccessEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("unmarshal access event: %w", err)
	}
	if err := c.repo.Create(ctx, &event); err != nil {
		return fmt.Errorf("store access event %s: %w", event.ID, err)
	}

	c.logger.Debug("access event stored",
		zap.String("id", event.ID),
		zap.String("code", event.Code),
		zap.String("outcome", event.Outcome),
		zap.Time("timestamp", event.Timestamp),
	)
	return nil
}
