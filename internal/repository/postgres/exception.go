package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
)

const exceptionColumns = `id, practitioner_id, practice_id, exception_type, start_datetime, end_datetime,
	modified_start_time, modified_end_time, allowed_appointment_types, description, is_active,
	created_at, updated_at`

type exceptionRepository struct {
	BaseRepository
}

func NewExceptionRepository(base BaseRepository) repository.ExceptionRepository {
	return &exceptionRepository{base}
}

func (r *exceptionRepository) Create(ctx context.Context, e *model.AvailabilityException) error {
	query := `
		INSERT INTO availability_exceptions (
			id, practitioner_id, practice_id, exception_type, start_datetime, end_datetime,
			modified_start_time, modified_end_time, allowed_appointment_types, description,
			is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
	`
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = time.Now().UTC()
	e.UpdatedAt = e.CreatedAt

	_, err := r.exec(ctx, r.db, "create exception", query,
		e.ID, e.PractitionerID, e.PracticeID, e.ExceptionType, e.StartDatetime, e.EndDatetime,
		e.ModifiedStartTime, e.ModifiedEndTime, e.AllowedAppointmentTypes, e.Description,
		e.IsActive, e.CreatedAt,
	)
	return mapError("create exception", "availability exception", err)
}

func (r *exceptionRepository) Get(ctx context.Context, id uuid.UUID) (*model.AvailabilityException, error) {
	query := `SELECT ` + exceptionColumns + ` FROM availability_exceptions WHERE id = $1`

	var e model.AvailabilityException
	if err := r.get(ctx, r.db, "get exception", &e, query, id); err != nil {
		return nil, mapError("get exception", "availability exception", err)
	}
	return &e, nil
}

func (r *exceptionRepository) Update(ctx context.Context, e *model.AvailabilityException) error {
	query := `
		UPDATE availability_exceptions SET
			exception_type = $2, start_datetime = $3, end_datetime = $4,
			modified_start_time = $5, modified_end_time = $6, allowed_appointment_types = $7,
			description = $8, is_active = $9, updated_at = $10
		WHERE id = $1
	`
	e.UpdatedAt = time.Now().UTC()

	return r.execOne(ctx, r.db, "update exception", "availability exception", query,
		e.ID, e.ExceptionType, e.StartDatetime, e.EndDatetime,
		e.ModifiedStartTime, e.ModifiedEndTime, e.AllowedAppointmentTypes,
		e.Description, e.IsActive, e.UpdatedAt,
	)
}

func (r *exceptionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, r.db, "delete exception", "availability exception",
		`DELETE FROM availability_exceptions WHERE id = $1`, id)
}

func (r *exceptionRepository) List(ctx context.Context, practitionerID uuid.UUID, activeOnly bool) ([]*model.AvailabilityException, error) {
	query := `SELECT ` + exceptionColumns + ` FROM availability_exceptions WHERE practitioner_id = $1`
	if activeOnly {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY start_datetime, id`

	out := []*model.AvailabilityException{}
	if err := r.selectAll(ctx, r.db, "list exceptions", &out, query, practitionerID); err != nil {
		return nil, mapError("list exceptions", "availability exception", err)
	}
	return out, nil
}

// Overlapping returns active exceptions intersecting the closed interval
// [start, end].
func (r *exceptionRepository) Overlapping(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) ([]*model.AvailabilityException, error) {
	query := `SELECT ` + exceptionColumns + ` FROM availability_exceptions
		WHERE practitioner_id = $1
		  AND is_active = TRUE
		  AND start_datetime <= $3
		  AND end_datetime >= $2
		ORDER BY start_datetime, id`

	out := []*model.AvailabilityException{}
	if err := r.selectAll(ctx, r.db, "overlapping exceptions", &out, query, practitionerID, start, end); err != nil {
		return nil, mapError("list overlapping exceptions", "availability exception", err)
	}
	return out, nil
}
