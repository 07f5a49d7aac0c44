package assignment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
	"github.com/jwalitptl/practice-api/internal/service/audit"
	"github.com/jwalitptl/practice-api/internal/service/event"
	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
)

type Service struct {
	repo    repository.AssignmentRepository
	users   repository.UserRepository
	events  *event.Service
	auditor *audit.Service
}

func NewService(repo repository.AssignmentRepository, users repository.UserRepository, events *event.Service, auditor *audit.Service) *Service {
	return &Service{
		repo:    repo,
		users:   users,
		events:  events,
		auditor: auditor,
	}
}

func (s *Service) AssignmentsByAssistant(ctx context.Context, assistantID uuid.UUID) ([]*model.PractitionerAssignment, error) {
	return s.repo.ListByAssistant(ctx, assistantID)
}

func (s *Service) AssignmentsByPractitioner(ctx context.Context, practitionerID uuid.UUID) ([]*model.PractitionerAssignment, error) {
	return s.repo.ListByPractitioner(ctx, practitionerID)
}

// AssignedPractitionerIDs returns the distinct practitioners an assistant
// may act for.
func (s *Service) AssignedPractitionerIDs(ctx context.Context, assistantID uuid.UUID) ([]uuid.UUID, error) {
	return s.repo.PractitionerIDs(ctx, assistantID)
}

func (s *Service) IsAssigned(ctx context.Context, assistantID, practitionerID uuid.UUID) (bool, error) {
	return s.repo.Exists(ctx, assistantID, practitionerID)
}

// ListForActor returns an assistant's assignments. Admins may read anyone's;
// an assistant may read their own.
func (s *Service) ListForActor(ctx context.Context, actor model.Actor, assistantID uuid.UUID) ([]*model.PractitionerAssignment, error) {
	if actor.Role != model.RoleAdmin && actor.UserID != assistantID {
		return nil, apperrors.Forbidden("cannot view another user's assignments")
	}
	if _, err := s.loadAssistant(ctx, actor, assistantID); err != nil {
		return nil, err
	}
	return s.repo.ListByAssistant(ctx, assistantID)
}

// ReplaceAssignments swaps the assistant's whole assignment set for
// practitionerIDs in one transaction. An empty list clears it.
func (s *Service) ReplaceAssignments(ctx context.Context, actor model.Actor, assistantID uuid.UUID, practitionerIDs []uuid.UUID) ([]*model.PractitionerAssignment, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := s.loadAssistant(ctx, actor, assistantID); err != nil {
		return nil, err
	}

	ids := dedupe(practitionerIDs)
	if err := s.checkPractitioners(ctx, actor, ids); err != nil {
		return nil, err
	}

	assignments, err := s.repo.Replace(ctx, assistantID, ids, actor.PracticeID, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to replace assignments: %w", err)
	}

	s.events.Record(ctx, actor.PracticeID, model.EventAssignmentReplaced, model.AssignmentEvent{
		AssistantID:     assistantID,
		PracticeID:      actor.PracticeID,
		PractitionerIDs: ids,
		ActorID:         actor.UserID,
	})
	s.auditor.Record(ctx, actor, model.AuditActionReplace, model.AuditEntityAssignment, assistantID,
		map[string]interface{}{"practitioner_ids": ids})

	return assignments, nil
}

// Assign adds a single practitioner to an assistant's set.
func (s *Service) Assign(ctx context.Context, actor model.Actor, assistantID, practitionerID uuid.UUID) (*model.PractitionerAssignment, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := s.loadAssistant(ctx, actor, assistantID); err != nil {
		return nil, err
	}
	if err := s.checkPractitioners(ctx, actor, []uuid.UUID{practitionerID}); err != nil {
		return nil, err
	}

	a := &model.PractitionerAssignment{
		ID:             uuid.New(),
		AssistantID:    assistantID,
		PractitionerID: practitionerID,
		PracticeID:     actor.PracticeID,
		CreatedBy:      actor.UserID,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}

	s.auditor.Record(ctx, actor, model.AuditActionCreate, model.AuditEntityAssignment, a.ID, a)
	return a, nil
}

func (s *Service) Unassign(ctx context.Context, actor model.Actor, assistantID, practitionerID uuid.UUID) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if _, err := s.loadAssistant(ctx, actor, assistantID); err != nil {
		return err
	}
	if err := s.repo.DeletePair(ctx, assistantID, practitionerID); err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	s.auditor.Record(ctx, actor, model.AuditActionDelete, model.AuditEntityAssignment, assistantID,
		map[string]interface{}{"practitioner_id": practitionerID})
	return nil
}

func (s *Service) DeleteByID(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if a.PracticeID != actor.PracticeID {
		return apperrors.NotFound("assignment", nil)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	s.auditor.Record(ctx, actor, model.AuditActionDelete, model.AuditEntityAssignment, id, nil)
	return nil
}

func (s *Service) DeleteByAssistant(ctx context.Context, actor model.Actor, assistantID uuid.UUID) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if _, err := s.loadAssistant(ctx, actor, assistantID); err != nil {
		return err
	}
	if err := s.repo.DeleteByAssistant(ctx, assistantID); err != nil {
		return fmt.Errorf("failed to delete assignments: %w", err)
	}
	s.auditor.Record(ctx, actor, model.AuditActionDelete, model.AuditEntityAssignment, assistantID, nil)
	return nil
}

func requireAdmin(actor model.Actor) error {
	if actor.Role != model.RoleAdmin {
		log.Warn().
			Str("user_id", actor.UserID.String()).
			Str("role", string(actor.Role)).
			Msg("non-admin attempted to change assignments")
		return apperrors.Forbidden("only admins can manage assignments")
	}
	return nil
}

func (s *Service) loadAssistant(ctx context.Context, actor model.Actor, assistantID uuid.UUID) (*model.User, error) {
	u, err := s.users.Get(ctx, assistantID)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return nil, apperrors.NotFound("assistant", err)
		}
		return nil, err
	}
	// Other practices' users are reported as missing.
	if u.PracticeID != actor.PracticeID {
		return nil, apperrors.NotFound("assistant", nil)
	}
	if u.Role != model.RoleAssistant {
		return nil, apperrors.Validation(fmt.Sprintf("user %s is not an assistant", assistantID), nil).
			WithCode("not_assistant")
	}
	return u, nil
}

func (s *Service) checkPractitioners(ctx context.Context, actor model.Actor, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	users, err := s.users.GetMany(ctx, ids)
	if err != nil {
		return err
	}

	found := make(map[uuid.UUID]*model.User, len(users))
	for _, u := range users {
		found[u.ID] = u
	}
	for _, id := range ids {
		u, ok := found[id]
		if !ok || u.PracticeID != actor.PracticeID {
			return apperrors.NotFound(fmt.Sprintf("practitioner %s", id), nil)
		}
		if u.Role != model.RolePractitioner {
			return apperrors.Validation(fmt.Sprintf("user %s is not a practitioner", id), nil).
				WithCode("not_practitioner")
		}
	}
	return nil
}

// dedupe drops repeated ids, keeping first-seen order.
func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
