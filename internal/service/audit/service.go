package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
)

type requestMetaKey struct{}

// RequestMeta is the caller information attached to audit entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// WithRequestMeta stores caller information on ctx for later audit entries.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

func requestMeta(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}

type Service struct {
	repo repository.AuditRepository
	now  func() time.Time
}

func NewService(repo repository.AuditRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Log creates an audit log entry
func (s *Service) Log(ctx context.Context, actor model.Actor, action, entityType string, entityID uuid.UUID, changes interface{}) error {
	var raw json.RawMessage
	if changes != nil {
		b, err := json.Marshal(changes)
		if err != nil {
			return fmt.Errorf("failed to marshal audit changes: %w", err)
		}
		raw = b
	}

	meta := requestMeta(ctx)
	entry := &model.AuditLog{
		ID:         uuid.New(),
		UserID:     actor.UserID,
		PracticeID: actor.PracticeID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Changes:    raw,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		CreatedAt:  s.now().UTC(),
	}
	return s.repo.Create(ctx, entry)
}

// Record is Log for callers whose mutation has already been committed; a
// failure is logged rather than returned.
func (s *Service) Record(ctx context.Context, actor model.Actor, action, entityType string, entityID uuid.UUID, changes interface{}) {
	if err := s.Log(ctx, actor, action, entityType, entityID, changes); err != nil {
		log.Error().
			Err(err).
			Str("action", action).
			Str("entity_type", entityType).
			Str("entity_id", entityID.String()).
			Msg("failed to write audit log")
	}
}

// Purge removes entries older than the retention window.
func (s *Service) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteBefore(ctx, s.now().Add(-retention))
}
