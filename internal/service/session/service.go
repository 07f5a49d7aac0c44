package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
	"github.com/jwalitptl/practice-api/internal/service/appointment"
	"github.com/jwalitptl/practice-api/internal/service/audit"
	"github.com/jwalitptl/practice-api/internal/service/permission"
	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
)

// Service manages clients and the session notes written against their
// appointments.
type Service struct {
	clients      repository.ClientRepository
	notes        repository.SessionNoteRepository
	appointments repository.AppointmentRepository
	perms        *permission.Service
	gate         *appointment.Gate
	auditor      *audit.Service
}

func NewService(
	clients repository.ClientRepository,
	notes repository.SessionNoteRepository,
	appointments repository.AppointmentRepository,
	perms *permission.Service,
	gate *appointment.Gate,
	auditor *audit.Service,
) *Service {
	return &Service{
		clients:      clients,
		notes:        notes,
		appointments: appointments,
		perms:        perms,
		gate:         gate,
		auditor:      auditor,
	}
}

func (s *Service) CreateClient(ctx context.Context, actor model.Actor, req model.CreateClientRequest) (*model.Client, error) {
	if err := s.perms.Require(ctx, actor, model.PermManageClients); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		return nil, apperrors.Validation("first_name and last_name are required", nil)
	}

	canSeeMedical, err := s.perms.HasPermission(ctx, actor.Role, model.PermViewMedicalData)
	if err != nil {
		return nil, err
	}
	if req.MedicalNotes != nil && !canSeeMedical {
		return nil, apperrors.Forbidden("medical notes require view_medical_data").WithCode("missing_permission")
	}

	c := &model.Client{
		Base:         model.Base{ID: uuid.New()},
		PracticeID:   actor.PracticeID,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        req.Email,
		Phone:        req.Phone,
		DateOfBirth:  req.DateOfBirth,
		MedicalNotes: req.MedicalNotes,
		CreatedBy:    actor.UserID,
	}
	if err := s.clients.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	s.auditor.Record(ctx, actor, model.AuditActionCreate, model.AuditEntityClient, c.ID, nil)
	return c, nil
}

// GetClient returns a client of the actor's practice. Medical notes are
// blanked for roles without view_medical_data.
func (s *Service) GetClient(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Client, error) {
	if err := s.perms.Require(ctx, actor, model.PermManageClients); err != nil {
		return nil, err
	}
	c, err := s.clients.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.PracticeID != actor.PracticeID {
		return nil, apperrors.NotFound("client", nil)
	}

	canSeeMedical, err := s.perms.HasPermission(ctx, actor.Role, model.PermViewMedicalData)
	if err != nil {
		return nil, err
	}
	if !canSeeMedical {
		c.MedicalNotes = nil
	}
	return c, nil
}

func (s *Service) ListNotes(ctx context.Context, actor model.Actor, appointmentID uuid.UUID) ([]*model.SessionNote, error) {
	if err := s.perms.Require(ctx, actor, model.PermViewSessions); err != nil {
		return nil, err
	}
	apt, err := s.loadAppointment(ctx, actor, appointmentID)
	if err != nil {
		return nil, err
	}
	ok, err := s.perms.CanAccessPractitionerData(ctx, actor, apt.PractitionerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.Forbidden("cannot view this practitioner's sessions")
	}
	return s.notes.ListByAppointment(ctx, appointmentID)
}

func (s *Service) CreateNote(ctx context.Context, actor model.Actor, appointmentID uuid.UUID, req model.CreateSessionNoteRequest) (*model.SessionNote, error) {
	if err := s.perms.Require(ctx, actor, model.PermManageSessions); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, apperrors.Validation("content is required", nil)
	}
	apt, err := s.loadAppointment(ctx, actor, appointmentID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(ctx, actor, apt.PractitionerID); err != nil {
		return nil, err
	}
	if apt.Status == model.AppointmentStatusCancelled {
		return nil, apperrors.Validation("cannot add notes to a cancelled appointment", nil).WithCode("terminal_status")
	}

	n := &model.SessionNote{
		Base:           model.Base{ID: uuid.New()},
		PracticeID:     apt.PracticeID,
		AppointmentID:  apt.ID,
		ClientID:       apt.ClientID,
		PractitionerID: apt.PractitionerID,
		Content:        req.Content,
		CreatedBy:      actor.UserID,
	}
	if err := s.notes.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create session note: %w", err)
	}

	s.auditor.Record(ctx, actor, model.AuditActionCreate, model.AuditEntitySessionNote, n.ID,
		map[string]interface{}{"appointment_id": apt.ID})
	return n, nil
}

func (s *Service) loadAppointment(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.appointments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if apt.PracticeID != actor.PracticeID {
		return nil, apperrors.NotFound("appointment", nil)
	}
	return apt, nil
}
