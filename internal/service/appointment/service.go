package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
	"github.com/jwalitptl/practice-api/internal/service/audit"
	"github.com/jwalitptl/practice-api/internal/service/event"
	"github.com/jwalitptl/practice-api/internal/service/permission"
	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
)

// Default business rules, overridable through Options.
const (
	MinAppointmentDuration = 15 * time.Minute
	MaxAppointmentDuration = 4 * time.Hour
)

// BookabilityChecker runs the schedule and conflict checks for an interval.
type BookabilityChecker interface {
	IsBookable(ctx context.Context, req model.BookingRequest) (*model.Bookability, error)
}

type Options struct {
	MinDuration time.Duration
	MaxDuration time.Duration
}

type Service struct {
	repo        repository.AppointmentRepository
	clients     repository.ClientRepository
	users       repository.UserRepository
	assignments repository.AssignmentRepository
	gate        *Gate
	perms       *permission.Service
	checker     BookabilityChecker
	events      *event.Service
	auditor     *audit.Service
	opts        Options
}

func NewService(
	repo repository.AppointmentRepository,
	clients repository.ClientRepository,
	users repository.UserRepository,
	assignments repository.AssignmentRepository,
	gate *Gate,
	perms *permission.Service,
	checker BookabilityChecker,
	events *event.Service,
	auditor *audit.Service,
	opts Options,
) *Service {
	if opts.MinDuration <= 0 {
		opts.MinDuration = MinAppointmentDuration
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = MaxAppointmentDuration
	}
	return &Service{
		repo:        repo,
		clients:     clients,
		users:       users,
		assignments: assignments,
		gate:        gate,
		perms:       perms,
		checker:     checker,
		events:      events,
		auditor:     auditor,
		opts:        opts,
	}
}

func (s *Service) validateAppointmentTime(start, end time.Time) error {
	duration := end.Sub(start)
	if duration <= 0 {
		return apperrors.Validation("end_time must be after start_time", nil).WithCode(string(model.ReasonInvalidInterval))
	}
	if duration < s.opts.MinDuration {
		return apperrors.Validation(fmt.Sprintf("appointment duration must be at least %v", s.opts.MinDuration), nil).
			WithCode("duration_too_short")
	}
	if duration > s.opts.MaxDuration {
		return apperrors.Validation(fmt.Sprintf("appointment duration cannot exceed %v", s.opts.MaxDuration), nil).
			WithCode("duration_too_long")
	}
	return nil
}

func (s *Service) CreateAppointment(ctx context.Context, actor model.Actor, req model.CreateAppointmentRequest) (*model.Appointment, error) {
	practitionerID, err := s.gate.ResolvePractitioner(ctx, actor, req.PractitionerID)
	if err != nil {
		return nil, err
	}
	if err := s.checkPractitioner(ctx, actor, practitionerID); err != nil {
		return nil, err
	}
	if req.AppointmentType == "" {
		return nil, apperrors.Validation("appointment_type is required", nil)
	}
	if err := s.validateAppointmentTime(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	client, err := s.clients.Get(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}
	if client.PracticeID != actor.PracticeID {
		return nil, apperrors.NotFound("client", nil)
	}

	if err := s.ensureBookable(ctx, model.BookingRequest{
		PractitionerID:  practitionerID,
		AppointmentType: req.AppointmentType,
		Start:           req.StartTime,
		End:             req.EndTime,
	}); err != nil {
		return nil, err
	}

	apt := &model.Appointment{
		Base:            model.Base{ID: uuid.New()},
		PracticeID:      actor.PracticeID,
		ClientID:        client.ID,
		PractitionerID:  practitionerID,
		AppointmentType: req.AppointmentType,
		StartTime:       req.StartTime.UTC(),
		EndTime:         req.EndTime.UTC(),
		Status:          model.AppointmentStatusScheduled,
		Notes:           req.Notes,
		CreatedBy:       actor.UserID,
	}
	if err := s.repo.CreateIfFree(ctx, apt); err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}

	s.emit(ctx, actor, model.EventAppointmentCreated, apt)
	s.auditor.Record(ctx, actor, model.AuditActionCreate, model.AuditEntityAppointment, apt.ID, apt)
	return apt, nil
}

// checkPractitioner requires id to be a practitioner of the actor's practice.
// Users of other practices read as missing.
func (s *Service) checkPractitioner(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	u, err := s.users.Get(ctx, id)
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
		return apperrors.Validation("appointments can only be booked with practitioners", nil).WithCode("not_practitioner")
	}
	return nil
}

// GetAppointment loads an appointment the actor may act on. Appointments
// from other practices read as missing.
func (s *Service) GetAppointment(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if apt.PracticeID != actor.PracticeID {
		return nil, apperrors.NotFound("appointment", nil)
	}
	if err := s.gate.Authorize(ctx, actor, apt.PractitionerID); err != nil {
		return nil, err
	}
	return apt, nil
}

// ListAppointments applies the actor's practitioner scope on top of filters.
func (s *Service) ListAppointments(ctx context.Context, actor model.Actor, filters model.AppointmentFilters) ([]*model.Appointment, error) {
	if err := s.perms.Require(ctx, actor, model.PermManageAppointments); err != nil {
		return nil, err
	}
	filters.PracticeID = actor.PracticeID

	var scope []uuid.UUID
	switch actor.Role {
	case model.RoleAdmin, model.RoleStaff:
	case model.RolePractitioner:
		scope = []uuid.UUID{actor.UserID}
	case model.RoleAssistant:
		ids, err := s.assignments.PractitionerIDs(ctx, actor.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to load assignments: %w", err)
		}
		// no assignments means no visible appointments, not an open scope
		scope = append([]uuid.UUID{}, ids...)
	default:
		return []*model.Appointment{}, nil
	}

	filters.PractitionerIDs = narrowScope(scope, filters.PractitionerIDs)
	if filters.PractitionerIDs != nil && len(filters.PractitionerIDs) == 0 {
		return []*model.Appointment{}, nil
	}

	appointments, err := s.repo.List(ctx, &filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

// narrowScope intersects the actor's scope with the requested practitioner
// ids. A nil result means unrestricted.
func narrowScope(scope, requested []uuid.UUID) []uuid.UUID {
	if scope == nil {
		return requested
	}
	if requested == nil {
		return scope
	}
	allowed := make(map[uuid.UUID]bool, len(scope))
	for _, id := range scope {
		allowed[id] = true
	}
	out := []uuid.UUID{}
	for _, id := range requested {
		if allowed[id] {
			out = append(out, id)
		}
	}
	return out
}

func (s *Service) Reschedule(ctx context.Context, actor model.Actor, id uuid.UUID, start, end time.Time) (*model.Appointment, error) {
	apt, err := s.GetAppointment(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.reschedule(ctx, apt, start, end); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateIfFree(ctx, apt); err != nil {
		return nil, fmt.Errorf("failed to update appointment: %w", err)
	}

	s.emit(ctx, actor, model.EventAppointmentMoved, apt)
	s.auditor.Record(ctx, actor, model.AuditActionUpdate, model.AuditEntityAppointment, apt.ID,
		map[string]interface{}{"start_time": apt.StartTime, "end_time": apt.EndTime})
	return apt, nil
}

func (s *Service) reschedule(ctx context.Context, apt *model.Appointment, start, end time.Time) error {
	if apt.Status.Terminal() {
		return apperrors.Validation(fmt.Sprintf("cannot reschedule a %s appointment", apt.Status), nil).
			WithCode("terminal_status")
	}
	if err := s.validateAppointmentTime(start, end); err != nil {
		return err
	}
	if err := s.ensureBookable(ctx, model.BookingRequest{
		PractitionerID:       apt.PractitionerID,
		AppointmentType:      apt.AppointmentType,
		Start:                start,
		End:                  end,
		ExcludeAppointmentID: &apt.ID,
	}); err != nil {
		return err
	}
	apt.StartTime = start.UTC()
	apt.EndTime = end.UTC()
	return nil
}

// UpdateAppointment applies a partial update. Time changes are checked like
// a reschedule; status changes follow the transition table.
func (s *Service) UpdateAppointment(ctx context.Context, actor model.Actor, id uuid.UUID, req model.UpdateAppointmentRequest) (*model.Appointment, error) {
	apt, err := s.GetAppointment(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	moved := false
	if req.StartTime != nil || req.EndTime != nil {
		if req.StartTime == nil || req.EndTime == nil {
			return nil, apperrors.Validation("start_time and end_time must be changed together", nil)
		}
		if !req.StartTime.Equal(apt.StartTime) || !req.EndTime.Equal(apt.EndTime) {
			if err := s.reschedule(ctx, apt, *req.StartTime, *req.EndTime); err != nil {
				return nil, err
			}
			moved = true
		}
	}
	if req.Notes != nil {
		apt.Notes = *req.Notes
	}

	cancelled := false
	if req.Status != nil && *req.Status != apt.Status {
		if err := transition(apt, *req.Status, req.CancelReason); err != nil {
			return nil, err
		}
		cancelled = apt.Status == model.AppointmentStatusCancelled
	}

	save := s.repo.Update
	if moved && !cancelled {
		save = s.repo.UpdateIfFree
	}
	if err := save(ctx, apt); err != nil {
		return nil, fmt.Errorf("failed to update appointment: %w", err)
	}

	switch {
	case cancelled:
		s.emit(ctx, actor, model.EventAppointmentCancelled, apt)
	case moved:
		s.emit(ctx, actor, model.EventAppointmentMoved, apt)
	}
	s.auditor.Record(ctx, actor, model.AuditActionUpdate, model.AuditEntityAppointment, apt.ID, req)
	return apt, nil
}

func (s *Service) UpdateStatus(ctx context.Context, actor model.Actor, id uuid.UUID, status model.AppointmentStatus, reason *string) (*model.Appointment, error) {
	return s.UpdateAppointment(ctx, actor, id, model.UpdateAppointmentRequest{Status: &status, CancelReason: reason})
}

func (s *Service) CancelAppointment(ctx context.Context, actor model.Actor, id uuid.UUID, reason string) (*model.Appointment, error) {
	apt, err := s.GetAppointment(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := transition(apt, model.AppointmentStatusCancelled, &reason); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, apt); err != nil {
		return nil, fmt.Errorf("failed to cancel appointment: %w", err)
	}

	s.emit(ctx, actor, model.EventAppointmentCancelled, apt)
	s.auditor.Record(ctx, actor, model.AuditActionCancel, model.AuditEntityAppointment, id,
		map[string]interface{}{"status": apt.Status, "cancel_reason": reason})
	return apt, nil
}

var allowedTransitions = map[model.AppointmentStatus][]model.AppointmentStatus{
	model.AppointmentStatusScheduled: {
		model.AppointmentStatusConfirmed,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow,
		model.AppointmentStatusCompleted,
	},
	model.AppointmentStatusConfirmed: {
		model.AppointmentStatusCompleted,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow,
	},
}

func transition(apt *model.Appointment, to model.AppointmentStatus, reason *string) error {
	if !to.Valid() {
		return apperrors.Validation(fmt.Sprintf("unknown status %q", to), nil)
	}
	for _, next := range allowedTransitions[apt.Status] {
		if next == to {
			apt.Status = to
			if to == model.AppointmentStatusCancelled && reason != nil && *reason != "" {
				apt.CancelReason = reason
			}
			return nil
		}
	}
	return apperrors.Validation(fmt.Sprintf("cannot change status from %s to %s", apt.Status, to), nil).
		WithCode("invalid_transition")
}

func (s *Service) ensureBookable(ctx context.Context, req model.BookingRequest) error {
	res, err := s.checker.IsBookable(ctx, req)
	if err != nil {
		return err
	}
	if res.Bookable {
		return nil
	}
	if res.Reason == model.ReasonConflict {
		return apperrors.Conflict("appointment overlaps an existing booking", nil).WithCode(string(res.Reason))
	}
	return apperrors.Validation(fmt.Sprintf("practitioner is not available: %s", res.Reason), nil).
		WithCode(string(res.Reason))
}

func (s *Service) emit(ctx context.Context, actor model.Actor, eventType string, apt *model.Appointment) {
	s.events.Record(ctx, apt.PracticeID, eventType, model.AppointmentEvent{
		AppointmentID:  apt.ID,
		PracticeID:     apt.PracticeID,
		PractitionerID: apt.PractitionerID,
		ClientID:       apt.ClientID,
		StartTime:      apt.StartTime,
		EndTime:        apt.EndTime,
		Status:         apt.Status,
		ActorID:        actor.UserID,
	})
}
