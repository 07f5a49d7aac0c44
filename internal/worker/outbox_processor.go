package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
	"github.com/jwalitptl/practice-api/pkg/logger"
	"github.com/jwalitptl/practice-api/pkg/messaging"
	"github.com/jwalitptl/practice-api/pkg/metrics"
	"github.com/jwalitptl/practice-api/pkg/notify"
)

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// Channel is the broker channel every event is published to.
	Channel string
}

func (c OutboxProcessorConfig) validate() error {
	var problems []string
	if c.BatchSize <= 0 {
		problems = append(problems, "batch size must be greater than 0")
	}
	if c.PollInterval <= 0 {
		problems = append(problems, "poll interval must be greater than 0")
	}
	if c.Channel == "" {
		problems = append(problems, "channel is required")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// OutboxProcessor relays committed outbox events to the broker and sends
// appointment notices. A failed publish leaves the event pending for the
// next poll until the retry cap parks it.
type OutboxProcessor struct {
	repo     repository.OutboxRepository
	broker   messaging.Broker
	notifier notify.Notifier
	config   OutboxProcessorConfig
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	notifier notify.Notifier,
	config OutboxProcessorConfig,
	log *logger.Logger,
	m *metrics.Metrics,
) (*OutboxProcessor, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid outbox processor config: %w", err)
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if log == nil {
		log = logger.NewLogger(nil)
	}

	return &OutboxProcessor{
		repo:     repo,
		broker:   broker,
		notifier: notifier,
		config:   config,
		logger:   log.With("outbox_processor"),
		metrics:  m,
	}, nil
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor", "channel", p.config.Channel)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// ProcessBatch handles one batch of pending events and returns how many
// were published.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	if p.metrics != nil {
		timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
		defer timer.ObserveDuration()
	}

	n, err := p.repo.ClaimPending(ctx, p.config.BatchSize, func(evt *model.OutboxEvent) error {
		return p.processEvent(ctx, evt)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to claim pending events: %w", err)
	}
	return n, nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, evt *model.OutboxEvent) error {
	msg := messaging.Message{
		ID:         evt.ID.String(),
		Type:       evt.EventType,
		PracticeID: evt.PracticeID.String(),
		Payload:    evt.Payload,
	}
	if err := p.broker.Publish(ctx, p.config.Channel, msg); err != nil {
		if p.metrics != nil {
			p.metrics.OutboxEventsFailed.Inc()
			p.metrics.OutboxRetries.WithLabelValues(evt.EventType).Inc()
		}
		p.logger.Warn("Failed to publish event",
			"event_id", evt.ID.String(),
			"event_type", evt.EventType,
			"retry_count", evt.RetryCount,
			"error", err.Error())
		return err
	}

	// notices are best effort; the event is already published
	p.notify(ctx, evt)

	if p.metrics != nil {
		p.metrics.OutboxEventsProcessed.Inc()
	}
	return nil
}

func (p *OutboxProcessor) notify(ctx context.Context, evt *model.OutboxEvent) {
	if !strings.HasPrefix(evt.EventType, "appointment.") {
		return
	}

	var payload model.AppointmentEvent
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		p.logger.Error(err, "Failed to decode appointment event", "event_id", evt.ID.String())
		return
	}
	subject, body, ok := notify.AppointmentNotice(evt.EventType, payload)
	if !ok {
		return
	}
	if err := p.notifier.Notify(ctx, subject, body); err != nil {
		p.logger.Error(err, "Failed to send appointment notice", "event_id", evt.ID.String())
	}
}
