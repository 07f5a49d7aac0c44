package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
)

const slotColumns = `id, practitioner_id, practice_id, day_of_week, appointment_type,
	start_time, end_time, is_active, created_at, updated_at`

type availabilityRepository struct {
	BaseRepository
}

func NewAvailabilityRepository(base BaseRepository) repository.AvailabilityRepository {
	return &availabilityRepository{base}
}

func (r *availabilityRepository) ListActive(ctx context.Context, practitionerID uuid.UUID) ([]*model.AvailabilitySlot, error) {
	query := `SELECT ` + slotColumns + ` FROM availability_slots
		WHERE practitioner_id = $1 AND is_active = TRUE
		ORDER BY day_of_week, appointment_type`

	slots := []*model.AvailabilitySlot{}
	if err := r.selectAll(ctx, r.db, "list slots", &slots, query, practitionerID); err != nil {
		return nil, mapError("list slots", "availability slot", err)
	}
	return slots, nil
}

func (r *availabilityRepository) Get(ctx context.Context, id uuid.UUID) (*model.AvailabilitySlot, error) {
	query := `SELECT ` + slotColumns + ` FROM availability_slots WHERE id = $1`

	var slot model.AvailabilitySlot
	if err := r.get(ctx, r.db, "get slot", &slot, query, id); err != nil {
		return nil, mapError("get slot", "availability slot", err)
	}
	return &slot, nil
}

// Find returns the active slot for the key, or nil when there is none.
func (r *availabilityRepository) Find(ctx context.Context, practitionerID uuid.UUID, day model.Weekday, appointmentType string) (*model.AvailabilitySlot, error) {
	query := `SELECT ` + slotColumns + ` FROM availability_slots
		WHERE practitioner_id = $1 AND day_of_week = $2 AND appointment_type = $3 AND is_active = TRUE`

	var slot model.AvailabilitySlot
	err := r.get(ctx, r.db, "find slot", &slot, query, practitionerID, day, appointmentType)
	if err != nil {
		if ignoreNoRows(err) == nil {
			return nil, nil
		}
		return nil, mapError("find slot", "availability slot", err)
	}
	return &slot, nil
}

// UpsertBulk writes all slots in one transaction, keyed by
// (practitioner_id, day_of_week, appointment_type).
func (r *availabilityRepository) UpsertBulk(ctx context.Context, slots []*model.AvailabilitySlot) ([]*model.AvailabilitySlot, error) {
	query := `
		INSERT INTO availability_slots (
			id, practitioner_id, practice_id, day_of_week, appointment_type,
			start_time, end_time, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (practitioner_id, day_of_week, appointment_type) DO UPDATE SET
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + slotColumns

	now := time.Now().UTC()
	var saved []*model.AvailabilitySlot
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		saved = make([]*model.AvailabilitySlot, 0, len(slots))
		for _, s := range slots {
			var out model.AvailabilitySlot
			if err := r.get(ctx, tx, "upsert slot", &out, query,
				uuid.New(), s.PractitionerID, s.PracticeID, s.DayOfWeek, s.AppointmentType,
				s.StartTime, s.EndTime, s.IsActive, now,
			); err != nil {
				return mapError("upsert slot", "availability slot", err)
			}
			saved = append(saved, &out)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (r *availabilityRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE availability_slots SET is_active = FALSE, updated_at = $2 WHERE id = $1`
	return r.execOne(ctx, r.db, "deactivate slot", "availability slot", query, id, time.Now().UTC())
}

func (r *availabilityRepository) DeleteAll(ctx context.Context, practitionerID uuid.UUID) error {
	_, err := r.exec(ctx, r.db, "delete slots",
		`DELETE FROM availability_slots WHERE practitioner_id = $1`, practitionerID)
	return mapError("delete slots", "availability slot", err)
}
