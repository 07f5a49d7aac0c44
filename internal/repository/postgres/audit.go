package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
)

type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(base BaseRepository) repository.AuditRepository {
	return &auditRepository{base}
}

func (r *auditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	query := `
		INSERT INTO audit_logs (
			id, user_id, practice_id, action, entity_type, entity_id,
			changes, ip_address, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	changes := []byte(log.Changes)
	if len(changes) == 0 {
		changes = []byte("{}")
	}

	_, err := r.exec(ctx, r.db, "create audit log", query,
		log.ID, log.UserID, log.PracticeID, log.Action, log.EntityType, log.EntityID,
		changes, log.IPAddress, log.UserAgent, log.CreatedAt,
	)
	return mapError("create audit log", "audit log", err)
}

// DeleteBefore purges entries older than cutoff and reports how many went.
func (r *auditRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.exec(ctx, r.db, "purge audit logs",
		`DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, mapError("purge audit logs", "audit log", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapError("purge audit logs", "audit log", err)
	}
	return n, nil
}
