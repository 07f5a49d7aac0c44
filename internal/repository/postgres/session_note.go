package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
)

type sessionNoteRepository struct {
	BaseRepository
}

func NewSessionNoteRepository(base BaseRepository) repository.SessionNoteRepository {
	return &sessionNoteRepository{base}
}

func (r *sessionNoteRepository) Create(ctx context.Context, n *model.SessionNote) error {
	query := `
		INSERT INTO session_notes (
			id, practice_id, appointment_id, client_id, practitioner_id,
			content, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.CreatedAt = time.Now().UTC()
	n.UpdatedAt = n.CreatedAt

	_, err := r.exec(ctx, r.db, "create session note", query,
		n.ID, n.PracticeID, n.AppointmentID, n.ClientID, n.PractitionerID,
		n.Content, n.CreatedBy, n.CreatedAt,
	)
	return mapError("create session note", "session note", err)
}

func (r *sessionNoteRepository) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*model.SessionNote, error) {
	query := `
		SELECT id, practice_id, appointment_id, client_id, practitioner_id,
			   content, created_by, created_at, updated_at
		FROM session_notes
		WHERE appointment_id = $1
		ORDER BY created_at
	`
	notes := []*model.SessionNote{}
	if err := r.selectAll(ctx, r.db, "list session notes", &notes, query, appointmentID); err != nil {
		return nil, mapError("list session notes", "session note", err)
	}
	return notes, nil
}
