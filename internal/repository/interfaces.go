package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/practice-api/internal/model"
)

// All repository interfaces in one file
type (
	// UserRepository reads practice accounts. Accounts are managed by the
	// identity provider; this service only looks them up.
	UserRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetMany(ctx context.Context, ids []uuid.UUID) ([]*model.User, error)
	}

	RolePermissionRepository interface {
		ListByRole(ctx context.Context, role model.Role) ([]model.PermissionCode, error)
		List(ctx context.Context) ([]model.RolePermission, error)
		Grant(ctx context.Context, role model.Role, permission model.PermissionCode) error
		Revoke(ctx context.Context, role model.Role, permission model.PermissionCode) error
	}

	AssignmentRepository interface {
		Create(ctx context.Context, assignment *model.PractitionerAssignment) error
		Get(ctx context.Context, id uuid.UUID) (*model.PractitionerAssignment, error)
		ListByAssistant(ctx context.Context, assistantID uuid.UUID) ([]*model.PractitionerAssignment, error)
		ListByPractitioner(ctx context.Context, practitionerID uuid.UUID) ([]*model.PractitionerAssignment, error)
		PractitionerIDs(ctx context.Context, assistantID uuid.UUID) ([]uuid.UUID, error)
		Exists(ctx context.Context, assistantID, practitionerID uuid.UUID) (bool, error)
		Replace(ctx context.Context, assistantID uuid.UUID, practitionerIDs []uuid.UUID, practiceID, actorID uuid.UUID) ([]*model.PractitionerAssignment, error)
		Delete(ctx context.Context, id uuid.UUID) error
		DeletePair(ctx context.Context, assistantID, practitionerID uuid.UUID) error
		DeleteByAssistant(ctx context.Context, assistantID uuid.UUID) error
	}

	AvailabilityRepository interface {
		ListActive(ctx context.Context, practitionerID uuid.UUID) ([]*model.AvailabilitySlot, error)
		Get(ctx context.Context, id uuid.UUID) (*model.AvailabilitySlot, error)
		Find(ctx context.Context, practitionerID uuid.UUID, day model.Weekday, appointmentType string) (*model.AvailabilitySlot, error)
		UpsertBulk(ctx context.Context, slots []*model.AvailabilitySlot) ([]*model.AvailabilitySlot, error)
		Deactivate(ctx context.Context, id uuid.UUID) error
		DeleteAll(ctx context.Context, practitionerID uuid.UUID) error
	}

	ExceptionRepository interface {
		Create(ctx context.Context, exception *model.AvailabilityException) error
		Get(ctx context.Context, id uuid.UUID) (*model.AvailabilityException, error)
		Update(ctx context.Context, exception *model.AvailabilityException) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, practitionerID uuid.UUID, activeOnly bool) ([]*model.AvailabilityException, error)
		Overlapping(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) ([]*model.AvailabilityException, error)
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		Update(ctx context.Context, appointment *model.Appointment) error
		// CreateIfFree and UpdateIfFree write atomically with an overlap
		// check, failing with a conflict when the slot is taken.
		CreateIfFree(ctx context.Context, appointment *model.Appointment) error
		UpdateIfFree(ctx context.Context, appointment *model.Appointment) error
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		FindConflicting(ctx context.Context, practitionerID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]uuid.UUID, error)
	}

	ClientRepository interface {
		Create(ctx context.Context, client *model.Client) error
		Get(ctx context.Context, id uuid.UUID) (*model.Client, error)
	}

	SessionNoteRepository interface {
		Create(ctx context.Context, note *model.SessionNote) error
		ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*model.SessionNote, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		ClaimPending(ctx context.Context, limit int, handle func(*model.OutboxEvent) error) (int, error)
	}
)

// Repositories bundles one implementation of every repository.
type Repositories struct {
	Users           UserRepository
	RolePermissions RolePermissionRepository
	Assignments     AssignmentRepository
	Availability    AvailabilityRepository
	Exceptions      ExceptionRepository
	Appointments    AppointmentRepository
	Clients         ClientRepository
	SessionNotes    SessionNoteRepository
	Audit           AuditRepository
	Outbox          OutboxRepository
}
