package service

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/petermyo/DecentralizeFileShare/internal/app/model"
	prominfra "github.com/petermyo/DecentralizeFileShare/internal/infra/prometheus"
	"go.uber.org/zap"
)

// jetStreamPublisher is the part of nats.JetStreamContext the publisher uses.
type jetStreamPublisher interface {
	PublishAsync(subj string, data []byte, opts ...nats.PubOpt) (nats.PubAckFuture, error)
}

// AccessPublisher publishes access events to NATS JetStream without waiting for acks.
type AccessPublisher struct {
	js      jetStreamPublisher
	metrics *prominfra.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewAccessPublisher creates a new access event publisher.
func NewAccessPublisher(js nats.JetStreamContext, metrics *prominfra.Metrics, logger *zap.Logger) *AccessPublisher {
	return newAccessPublisher(js, metrics, logger)
}

func newAccessPublisher(js jetStreamPublisher, metrics *prominfra.Metrics, logger *zap.Logger) *AccessPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessPublisher{js: js, metrics: metrics, logger: logger, now: time.Now}
}

// Publish stamps and enqueues one access event.
func (p *AccessPublisher) Publish(kind model.RecordKind, code, outcome, ip, userAgent string) error {
	event := model.AccessEvent{
		ID:        uuid.New().String(),
		Code:      code,
		Kind:      kind,
		Outcome:   outcome,
		IP:        ip,
		UserAgent: userAgent,
		Timestamp: p.now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.metrics.ObservePublish("error")
		return err
	}

	if _, err := p.js.PublishAsync(model.AccessStreamSubject, data); err != nil {
		p.metrics.ObservePublish("error")
		p.logger.Warn("failed to publish access event", zap.String("code", code), zap.Error(err))
		return err
	}
	p.metrics.ObservePublish("ok")
	return nil
}
