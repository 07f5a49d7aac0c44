package appointment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/service/permission"
	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
	"github.com/jwalitptl/practice-api/pkg/metrics"
)

// AssignmentChecker answers whether an assistant may act for a practitioner.
type AssignmentChecker interface {
	IsAssigned(ctx context.Context, assistantID, practitionerID uuid.UUID) (bool, error)
}

// Gate decides which practitioners' appointments an actor may touch.
type Gate struct {
	perms       *permission.Service
	assignments AssignmentChecker
	metrics     *metrics.Metrics
}

func NewGate(perms *permission.Service, assignments AssignmentChecker, m *metrics.Metrics) *Gate {
	return &Gate{perms: perms, assignments: assignments, metrics: m}
}

// CanActOnPractitioner requires manage_appointments, then admins and staff
// may act for anyone, practitioners for themselves and assistants for their
// assigned practitioners.
func (g *Gate) CanActOnPractitioner(ctx context.Context, actor model.Actor, practitionerID uuid.UUID) (bool, error) {
	ok, err := g.perms.HasPermission(ctx, actor.Role, model.PermManageAppointments)
	if err != nil || !ok {
		return false, err
	}

	switch actor.Role {
	case model.RoleAdmin, model.RoleStaff:
		return true, nil
	case model.RolePractitioner:
		return actor.UserID == practitionerID, nil
	case model.RoleAssistant:
		assigned, err := g.assignments.IsAssigned(ctx, actor.UserID, practitionerID)
		if err != nil {
			return false, fmt.Errorf("failed to check assignment: %w", err)
		}
		return assigned, nil
	}
	return false, nil
}

// ResolvePractitioner picks the practitioner a request acts on, defaulting
// to the actor, and rejects it unless the gate allows it.
func (g *Gate) ResolvePractitioner(ctx context.Context, actor model.Actor, requested *uuid.UUID) (uuid.UUID, error) {
	practitionerID := actor.UserID
	if requested != nil && *requested != uuid.Nil {
		practitionerID = *requested
	}
	if err := g.Authorize(ctx, actor, practitionerID); err != nil {
		return uuid.Nil, err
	}
	return practitionerID, nil
}

// Authorize is CanActOnPractitioner as an error.
func (g *Gate) Authorize(ctx context.Context, actor model.Actor, practitionerID uuid.UUID) error {
	ok, err := g.CanActOnPractitioner(ctx, actor, practitionerID)
	if err != nil {
		return err
	}
	if !ok {
		g.metrics.Denied("practitioner_scope")
		log.Warn().
			Str("user_id", actor.UserID.String()).
			Str("role", string(actor.Role)).
			Str("practitioner_id", practitionerID.String()).
			Msg("appointment action denied")
		return apperrors.Forbidden("not allowed to act for this practitioner").WithCode("practitioner_scope")
	}
	return nil
}
