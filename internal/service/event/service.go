package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
)

// Service writes domain events to the outbox. Delivery happens in the worker.
type Service struct {
	outboxRepo repository.OutboxRepository
}

func NewService(outboxRepo repository.OutboxRepository) *Service {
	return &Service{outboxRepo: outboxRepo}
}

func (s *Service) Emit(ctx context.Context, practiceID uuid.UUID, eventType string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	evt := &model.OutboxEvent{
		PracticeID: practiceID,
		EventType:  eventType,
		Payload:    payloadJSON,
	}
	if err := s.outboxRepo.Create(ctx, evt); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// Record is Emit for callers whose mutation has already been committed; a
// failure is logged rather than returned.
func (s *Service) Record(ctx context.Context, practiceID uuid.UUID, eventType string, payload interface{}) {
	if err := s.Emit(ctx, practiceID, eventType, payload); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to emit event")
	}
}
