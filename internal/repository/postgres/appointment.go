package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
)

const appointmentColumns = `id, practice_id, client_id, practitioner_id, appointment_type,
	start_time, end_time, status, notes, cancel_reason, created_by, created_at, updated_at`

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

const insertAppointmentQuery = `
	INSERT INTO appointments (
		id, practice_id, client_id, practitioner_id, appointment_type,
		start_time, end_time, status, notes, cancel_reason, created_by,
		created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
`

const updateAppointmentQuery = `
	UPDATE appointments
	SET start_time = $2, end_time = $3, status = $4, notes = $5,
		cancel_reason = $6, updated_at = $7
	WHERE id = $1
`

func (r *appointmentRepository) Create(ctx context.Context, a *model.Appointment) error {
	return r.insert(ctx, r.db, a)
}

// CreateIfFree inserts a unless a live appointment of the same practitioner
// overlaps it. The practitioner row is locked for the duration so concurrent
// bookings serialize.
func (r *appointmentRepository) CreateIfFree(ctx context.Context, a *model.Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := r.claimSlot(ctx, tx, a); err != nil {
			return err
		}
		return r.insert(ctx, tx, a)
	})
}

func (r *appointmentRepository) insert(ctx context.Context, q querier, a *model.Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt

	_, err := r.exec(ctx, q, "create appointment", insertAppointmentQuery,
		a.ID, a.PracticeID, a.ClientID, a.PractitionerID, a.AppointmentType,
		a.StartTime, a.EndTime, a.Status, a.Notes, a.CancelReason, a.CreatedBy,
		a.CreatedAt,
	)
	return mapError("create appointment", "appointment", err)
}

// claimSlot takes the practitioner lock and refuses a when it overlaps a
// live appointment other than itself.
func (r *appointmentRepository) claimSlot(ctx context.Context, tx *sqlx.Tx, a *model.Appointment) error {
	var locked uuid.UUID
	if err := r.get(ctx, tx, "lock practitioner", &locked,
		`SELECT id FROM profiles WHERE id = $1 FOR UPDATE`, a.PractitionerID); err != nil {
		return mapError("lock practitioner", "practitioner", err)
	}

	ids, err := r.conflicting(ctx, tx, a.PractitionerID, a.StartTime, a.EndTime, &a.ID)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		return apperrors.Conflict("appointment overlaps an existing booking", nil).
			WithCode(string(model.ReasonConflict))
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var a model.Appointment
	if err := r.get(ctx, r.db, "get appointment", &a, query, id); err != nil {
		return nil, mapError("get appointment", "appointment", err)
	}
	return &a, nil
}

func (r *appointmentRepository) Update(ctx context.Context, a *model.Appointment) error {
	a.UpdatedAt = time.Now().UTC()
	return r.execOne(ctx, r.db, "update appointment", "appointment", updateAppointmentQuery,
		a.ID, a.StartTime, a.EndTime, a.Status, a.Notes, a.CancelReason, a.UpdatedAt)
}

// UpdateIfFree is Update guarded by the same practitioner lock and overlap
// check as CreateIfFree.
func (r *appointmentRepository) UpdateIfFree(ctx context.Context, a *model.Appointment) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := r.claimSlot(ctx, tx, a); err != nil {
			return err
		}
		a.UpdatedAt = time.Now().UTC()
		return r.execOne(ctx, tx, "update appointment", "appointment", updateAppointmentQuery,
			a.ID, a.StartTime, a.EndTime, a.Status, a.Notes, a.CancelReason, a.UpdatedAt)
	})
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE practice_id = $1`
	args := []interface{}{filters.PracticeID}

	// nil PractitionerIDs means unrestricted; an empty non-nil slice matches nothing.
	if filters.PractitionerIDs != nil {
		query += fmt.Sprintf(" AND practitioner_id = ANY($%d::uuid[])", len(args)+1)
		args = append(args, uuidArray(filters.PractitionerIDs))
	}
	if filters.ClientID != uuid.Nil {
		query += fmt.Sprintf(" AND client_id = $%d", len(args)+1)
		args = append(args, filters.ClientID)
	}
	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filters.Status)
	}
	if !filters.StartDate.IsZero() {
		query += fmt.Sprintf(" AND end_time > $%d", len(args)+1)
		args = append(args, filters.StartDate)
	}
	if !filters.EndDate.IsZero() {
		query += fmt.Sprintf(" AND start_time < $%d", len(args)+1)
		args = append(args, filters.EndDate)
	}

	query += fmt.Sprintf(" ORDER BY start_time, id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filters.Limit(), filters.Offset())

	out := []*model.Appointment{}
	if err := r.selectAll(ctx, r.db, "list appointments", &out, query, args...); err != nil {
		return nil, mapError("list appointments", "appointment", err)
	}
	return out, nil
}

// FindConflicting returns ids of non-cancelled appointments whose half-open
// interval [start_time, end_time) intersects [start, end).
func (r *appointmentRepository) FindConflicting(
	ctx context.Context,
	practitionerID uuid.UUID,
	start, end time.Time,
	excludeID *uuid.UUID,
) ([]uuid.UUID, error) {
	return r.conflicting(ctx, r.db, practitionerID, start, end, excludeID)
}

func (r *appointmentRepository) conflicting(
	ctx context.Context,
	q querier,
	practitionerID uuid.UUID,
	start, end time.Time,
	excludeID *uuid.UUID,
) ([]uuid.UUID, error) {
	query := `SELECT id FROM appointments
		WHERE practitioner_id = $1
		  AND status <> 'cancelled'
		  AND start_time < $3
		  AND end_time > $2`
	args := []interface{}{practitionerID, start, end}

	if excludeID != nil {
		query += ` AND id <> $4`
		args = append(args, *excludeID)
	}
	query += ` ORDER BY start_time, id`

	ids := []uuid.UUID{}
	if err := r.selectAll(ctx, q, "find conflicting appointments", &ids, query, args...); err != nil {
		return nil, mapError("find conflicting appointments", "appointment", err)
	}
	return ids, nil
}
