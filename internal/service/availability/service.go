package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
	"github.com/jwalitptl/practice-api/internal/service/audit"
	"github.com/jwalitptl/practice-api/internal/service/permission"
	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
)

type Service struct {
	slots      repository.AvailabilityRepository
	exceptions repository.ExceptionRepository
	users      repository.UserRepository
	perms      *permission.Service
	checker    *Checker
	auditor    *audit.Service
}

func NewService(
	slots repository.AvailabilityRepository,
	exceptions repository.ExceptionRepository,
	users repository.UserRepository,
	perms *permission.Service,
	checker *Checker,
	auditor *audit.Service,
) *Service {
	return &Service{
		slots:      slots,
		exceptions: exceptions,
		users:      users,
		perms:      perms,
		checker:    checker,
		auditor:    auditor,
	}
}

// SlotsFor lists a practitioner's active recurring slots.
func (s *Service) SlotsFor(ctx context.Context, actor model.Actor, practitionerID uuid.UUID) ([]*model.AvailabilitySlot, error) {
	if err := s.canRead(ctx, actor, practitionerID); err != nil {
		return nil, err
	}
	return s.slots.ListActive(ctx, practitionerID)
}

// SlotFor returns the active slot for a day and type, or nil.
func (s *Service) SlotFor(ctx context.Context, practitionerID uuid.UUID, day model.Weekday, appointmentType string) (*model.AvailabilitySlot, error) {
	if !day.Valid() {
		return nil, apperrors.Validation(fmt.Sprintf("invalid day of week %d", day), nil)
	}
	return s.slots.Find(ctx, practitionerID, day, appointmentType)
}

// UpsertSlots writes slots keyed by (day, type). Existing slots not in the
// request are left alone.
func (s *Service) UpsertSlots(ctx context.Context, actor model.Actor, practitionerID uuid.UUID, inputs []model.SlotInput) ([]*model.AvailabilitySlot, error) {
	if err := s.canWrite(ctx, actor, practitionerID); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, apperrors.Validation("at least one slot is required", nil)
	}

	slots := make([]*model.AvailabilitySlot, 0, len(inputs))
	for i, in := range inputs {
		if err := validateSlot(in); err != nil {
			return nil, apperrors.Validation(fmt.Sprintf("slot %d: %s", i, err.Error()), nil)
		}
		active := true
		if in.IsActive != nil {
			active = *in.IsActive
		}
		slots = append(slots, &model.AvailabilitySlot{
			PractitionerID:  practitionerID,
			PracticeID:      actor.PracticeID,
			DayOfWeek:       in.DayOfWeek,
			AppointmentType: in.AppointmentType,
			StartTime:       in.StartTime,
			EndTime:         in.EndTime,
			IsActive:        active,
		})
	}

	saved, err := s.slots.UpsertBulk(ctx, slots)
	if err != nil {
		return nil, fmt.Errorf("failed to save availability: %w", err)
	}
	s.auditor.Record(ctx, actor, model.AuditActionUpdate, model.AuditEntityAvailability, practitionerID, saved)
	return saved, nil
}

func (s *Service) DeactivateSlot(ctx context.Context, actor model.Actor, slotID uuid.UUID) error {
	slot, err := s.slots.Get(ctx, slotID)
	if err != nil {
		return err
	}
	if slot.PracticeID != actor.PracticeID {
		return apperrors.NotFound("availability slot", nil)
	}
	if err := s.canWrite(ctx, actor, slot.PractitionerID); err != nil {
		return err
	}
	if err := s.slots.Deactivate(ctx, slotID); err != nil {
		return fmt.Errorf("failed to deactivate slot: %w", err)
	}
	s.auditor.Record(ctx, actor, model.AuditActionDelete, model.AuditEntityAvailability, slotID, nil)
	return nil
}

// ResetSlots removes every slot of a practitioner.
func (s *Service) ResetSlots(ctx context.Context, actor model.Actor, practitionerID uuid.UUID) error {
	if err := s.canWrite(ctx, actor, practitionerID); err != nil {
		return err
	}
	if err := s.slots.DeleteAll(ctx, practitionerID); err != nil {
		return fmt.Errorf("failed to reset availability: %w", err)
	}
	s.auditor.Record(ctx, actor, model.AuditActionDelete, model.AuditEntityAvailability, practitionerID,
		map[string]interface{}{"reset": true})
	return nil
}

func (s *Service) ExceptionsFor(ctx context.Context, actor model.Actor, practitionerID uuid.UUID, activeOnly bool) ([]*model.AvailabilityException, error) {
	if err := s.canRead(ctx, actor, practitionerID); err != nil {
		return nil, err
	}
	return s.exceptions.List(ctx, practitionerID, activeOnly)
}

// Overlapping lists active exceptions touching [start, end], bounds included.
func (s *Service) Overlapping(ctx context.Context, actor model.Actor, practitionerID uuid.UUID, start, end time.Time) ([]*model.AvailabilityException, error) {
	if err := s.canRead(ctx, actor, practitionerID); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, apperrors.Validation("end must not be before start", nil)
	}
	return s.exceptions.Overlapping(ctx, practitionerID, start, end)
}

func (s *Service) GetException(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.AvailabilityException, error) {
	e, err := s.exceptions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.PracticeID != actor.PracticeID {
		return nil, apperrors.NotFound("availability exception", nil)
	}
	if err := s.canRead(ctx, actor, e.PractitionerID); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) CreateException(ctx context.Context, actor model.Actor, practitionerID uuid.UUID, in model.ExceptionInput) (*model.AvailabilityException, error) {
	if err := s.canWrite(ctx, actor, practitionerID); err != nil {
		return nil, err
	}
	if err := validateException(in); err != nil {
		return nil, err
	}

	e := &model.AvailabilityException{
		ID:             uuid.New(),
		PractitionerID: practitionerID,
		PracticeID:     actor.PracticeID,
		IsActive:       true,
	}
	applyException(e, in)

	if err := s.exceptions.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to create exception: %w", err)
	}
	s.auditor.Record(ctx, actor, model.AuditActionCreate, model.AuditEntityException, e.ID, e)
	return e, nil
}

func (s *Service) UpdateException(ctx context.Context, actor model.Actor, id uuid.UUID, in model.ExceptionInput) (*model.AvailabilityException, error) {
	e, err := s.exceptions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.PracticeID != actor.PracticeID {
		return nil, apperrors.NotFound("availability exception", nil)
	}
	if err := s.canWrite(ctx, actor, e.PractitionerID); err != nil {
		return nil, err
	}
	if err := validateException(in); err != nil {
		return nil, err
	}

	applyException(e, in)
	if err := s.exceptions.Update(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to update exception: %w", err)
	}
	s.auditor.Record(ctx, actor, model.AuditActionUpdate, model.AuditEntityException, e.ID, e)
	return e, nil
}

func (s *Service) DeleteException(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	e, err := s.exceptions.Get(ctx, id)
	if err != nil {
		return err
	}
	if e.PracticeID != actor.PracticeID {
		return apperrors.NotFound("availability exception", nil)
	}
	if err := s.canWrite(ctx, actor, e.PractitionerID); err != nil {
		return err
	}
	if err := s.exceptions.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete exception: %w", err)
	}
	s.auditor.Record(ctx, actor, model.AuditActionDelete, model.AuditEntityException, id, nil)
	return nil
}

// CheckBookable is IsBookable for callers that may see the practitioner.
func (s *Service) CheckBookable(ctx context.Context, actor model.Actor, req model.BookingRequest) (*model.Bookability, error) {
	if err := s.canRead(ctx, actor, req.PractitionerID); err != nil {
		return nil, err
	}
	if err := s.checkPractitioner(ctx, actor, req.PractitionerID); err != nil {
		return nil, err
	}
	if req.AppointmentType == "" {
		return nil, apperrors.Validation("appointment type is required", nil)
	}
	return s.checker.IsBookable(ctx, req)
}

func (s *Service) canRead(ctx context.Context, actor model.Actor, practitionerID uuid.UUID) error {
	ok, err := s.perms.CanAccessPractitionerData(ctx, actor, practitionerID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Forbidden("cannot access this practitioner's availability")
	}
	return nil
}

// canWrite allows practitioners to edit their own schedule and admins to
// edit anyone's in the practice.
func (s *Service) canWrite(ctx context.Context, actor model.Actor, practitionerID uuid.UUID) error {
	if err := s.perms.Require(ctx, actor, model.PermManageAvailability); err != nil {
		return err
	}
	if !s.perms.IsAdmin(actor.Role) && actor.UserID != practitionerID {
		log.Warn().
			Str("user_id", actor.UserID.String()).
			Str("practitioner_id", practitionerID.String()).
			Msg("availability write for another practitioner denied")
		return apperrors.Forbidden("cannot manage another practitioner's availability")
	}
	return s.checkPractitioner(ctx, actor, practitionerID)
}

// checkPractitioner requires id to be a practitioner of the actor's practice.
func (s *Service) checkPractitioner(ctx context.Context, actor model.Actor, practitionerID uuid.UUID) error {
	u, err := s.users.Get(ctx, practitionerID)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return apperrors.NotFound("practitioner", err)
		}
		return err
	}
	if u.PracticeID != actor.PracticeID {
		return apperrors.NotFound("practitioner", nil)
	}
	if u.Role != model.RolePractitioner {
		return apperrors.Validation("availability can only be set for practitioners", nil).WithCode("not_practitioner")
	}
	return nil
}

func validateSlot(in model.SlotInput) error {
	switch {
	case !in.DayOfWeek.Valid():
		return fmt.Errorf("day_of_week must be between 0 and 6")
	case in.AppointmentType == "":
		return fmt.Errorf("appointment_type is required")
	case !in.StartTime.Valid() || !in.EndTime.Valid():
		return fmt.Errorf("invalid time of day")
	case in.StartTime >= in.EndTime:
		return fmt.Errorf("start_time must be before end_time")
	}
	return nil
}

func validateException(in model.ExceptionInput) error {
	if !in.ExceptionType.Valid() {
		return apperrors.Validation(fmt.Sprintf("unknown exception type %q", in.ExceptionType), nil)
	}
	if in.StartDatetime.IsZero() || in.EndDatetime.IsZero() {
		return apperrors.Validation("start_datetime and end_datetime are required", nil)
	}
	if in.EndDatetime.Before(in.StartDatetime) {
		return apperrors.Validation("end_datetime must not be before start_datetime", nil)
	}

	switch in.ExceptionType {
	case model.ExceptionModifiedHours:
		if in.ModifiedStartTime == nil || in.ModifiedEndTime == nil {
			return apperrors.Validation("modified_hours requires modified_start_time and modified_end_time", nil)
		}
		if *in.ModifiedStartTime >= *in.ModifiedEndTime {
			return apperrors.Validation("modified_start_time must be before modified_end_time", nil)
		}
	case model.ExceptionTypeOnly:
		if len(in.AllowedAppointmentTypes) == 0 {
			return apperrors.Validation("type_only requires allowed_appointment_types", nil)
		}
	}
	return nil
}

// applyException copies the input onto e, clearing fields the type does
// not use.
func applyException(e *model.AvailabilityException, in model.ExceptionInput) {
	e.ExceptionType = in.ExceptionType
	e.StartDatetime = in.StartDatetime.UTC()
	e.EndDatetime = in.EndDatetime.UTC()
	e.Description = in.Description
	e.ModifiedStartTime = nil
	e.ModifiedEndTime = nil
	e.AllowedAppointmentTypes = nil

	switch in.ExceptionType {
	case model.ExceptionModifiedHours:
		e.ModifiedStartTime = in.ModifiedStartTime
		e.ModifiedEndTime = in.ModifiedEndTime
	case model.ExceptionTypeOnly:
		e.AllowedAppointmentTypes = pq.StringArray(in.AllowedAppointmentTypes)
	}
	if in.IsActive != nil {
		e.IsActive = *in.IsActive
	}
}
