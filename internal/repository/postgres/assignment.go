package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
)

const assignmentColumns = `id, assistant_id, practitioner_id, practice_id, created_by, created_at`

const insertAssignmentQuery = `
	INSERT INTO practitioner_assignments (
		id, assistant_id, practitioner_id, practice_id, created_by, created_at
	) VALUES ($1, $2, $3, $4, $5, $6)
`

type assignmentRepository struct {
	BaseRepository
}

func NewAssignmentRepository(base BaseRepository) repository.AssignmentRepository {
	return &assignmentRepository{base}
}

func (r *assignmentRepository) Create(ctx context.Context, a *model.PractitionerAssignment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now().UTC()

	_, err := r.exec(ctx, r.db, "create assignment", insertAssignmentQuery,
		a.ID, a.AssistantID, a.PractitionerID, a.PracticeID, a.CreatedBy, a.CreatedAt)
	return mapError("create assignment", "assignment", err)
}

func (r *assignmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.PractitionerAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM practitioner_assignments WHERE id = $1`

	var a model.PractitionerAssignment
	if err := r.get(ctx, r.db, "get assignment", &a, query, id); err != nil {
		return nil, mapError("get assignment", "assignment", err)
	}
	return &a, nil
}

func (r *assignmentRepository) ListByAssistant(ctx context.Context, assistantID uuid.UUID) ([]*model.PractitionerAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM practitioner_assignments
		WHERE assistant_id = $1 ORDER BY created_at, practitioner_id`

	out := []*model.PractitionerAssignment{}
	if err := r.selectAll(ctx, r.db, "list assignments", &out, query, assistantID); err != nil {
		return nil, mapError("list assignments", "assignment", err)
	}
	return out, nil
}

func (r *assignmentRepository) ListByPractitioner(ctx context.Context, practitionerID uuid.UUID) ([]*model.PractitionerAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM practitioner_assignments
		WHERE practitioner_id = $1 ORDER BY created_at, assistant_id`

	out := []*model.PractitionerAssignment{}
	if err := r.selectAll(ctx, r.db, "list assignments", &out, query, practitionerID); err != nil {
		return nil, mapError("list assignments", "assignment", err)
	}
	return out, nil
}

func (r *assignmentRepository) PractitionerIDs(ctx context.Context, assistantID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT DISTINCT practitioner_id FROM practitioner_assignments
		WHERE assistant_id = $1 ORDER BY practitioner_id`

	ids := []uuid.UUID{}
	if err := r.selectAll(ctx, r.db, "list assigned practitioners", &ids, query, assistantID); err != nil {
		return nil, mapError("list assigned practitioners", "assignment", err)
	}
	return ids, nil
}

func (r *assignmentRepository) Exists(ctx context.Context, assistantID, practitionerID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM practitioner_assignments
		WHERE assistant_id = $1 AND practitioner_id = $2
	)`

	var exists bool
	if err := r.get(ctx, r.db, "check assignment", &exists, query, assistantID, practitionerID); err != nil {
		return false, mapError("check assignment", "assignment", err)
	}
	return exists, nil
}

// Replace swaps the assistant's whole assignment set in one transaction. The
// assistant's profile row is locked first so concurrent replaces for the same
// assistant serialise instead of interleaving their deletes and inserts.
func (r *assignmentRepository) Replace(
	ctx context.Context,
	assistantID uuid.UUID,
	practitionerIDs []uuid.UUID,
	practiceID, actorID uuid.UUID,
) ([]*model.PractitionerAssignment, error) {
	now := time.Now().UTC()

	var created []*model.PractitionerAssignment
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		created = make([]*model.PractitionerAssignment, 0, len(practitionerIDs))

		var locked uuid.UUID
		if err := r.get(ctx, tx, "lock assistant", &locked,
			`SELECT id FROM profiles WHERE id = $1 FOR UPDATE`, assistantID); err != nil {
			return mapError("lock assistant", "assistant", err)
		}

		if _, err := r.exec(ctx, tx, "delete assignments",
			`DELETE FROM practitioner_assignments WHERE assistant_id = $1`, assistantID); err != nil {
			return mapError("delete assignments", "assignment", err)
		}

		for _, pid := range practitionerIDs {
			a := &model.PractitionerAssignment{
				ID:             uuid.New(),
				AssistantID:    assistantID,
				PractitionerID: pid,
				PracticeID:     practiceID,
				CreatedBy:      actorID,
				CreatedAt:      now,
			}
			if _, err := r.exec(ctx, tx, "create assignment", insertAssignmentQuery,
				a.ID, a.AssistantID, a.PractitionerID, a.PracticeID, a.CreatedBy, a.CreatedAt); err != nil {
				return mapError("create assignment", "assignment", err)
			}
			created = append(created, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *assignmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, r.db, "delete assignment", "assignment",
		`DELETE FROM practitioner_assignments WHERE id = $1`, id)
}

func (r *assignmentRepository) DeletePair(ctx context.Context, assistantID, practitionerID uuid.UUID) error {
	return r.execOne(ctx, r.db, "delete assignment", "assignment",
		`DELETE FROM practitioner_assignments WHERE assistant_id = $1 AND practitioner_id = $2`,
		assistantID, practitionerID)
}

// DeleteByAssistant removes every assignment of the assistant. Having none is
// not an error.
func (r *assignmentRepository) DeleteByAssistant(ctx context.Context, assistantID uuid.UUID) error {
	_, err := r.exec(ctx, r.db, "delete assignments",
		`DELETE FROM practitioner_assignments WHERE assistant_id = $1`, assistantID)
	return mapError("delete assignments", "assignment", err)
}
