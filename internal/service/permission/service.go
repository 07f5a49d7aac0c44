package permission

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
	"github.com/jwalitptl/practice-api/internal/service/audit"
	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
	"github.com/jwalitptl/practice-api/pkg/metrics"
)

// Source supplies the role to permission mapping.
type Source interface {
	PermissionsFor(ctx context.Context, role model.Role) ([]model.PermissionCode, error)
}

// StaticSource is a fixed in-process mapping.
type StaticSource map[model.Role][]model.PermissionCode

func (s StaticSource) PermissionsFor(_ context.Context, role model.Role) ([]model.PermissionCode, error) {
	return s[role], nil
}

// DatabaseSource reads the role_permissions table on every call so edits
// take effect without a restart.
type DatabaseSource struct {
	repo repository.RolePermissionRepository
}

func NewDatabaseSource(repo repository.RolePermissionRepository) *DatabaseSource {
	return &DatabaseSource{repo: repo}
}

func (s *DatabaseSource) PermissionsFor(ctx context.Context, role model.Role) ([]model.PermissionCode, error) {
	return s.repo.ListByRole(ctx, role)
}

type Service struct {
	source      Source
	assignments repository.AssignmentRepository
	rolePerms   repository.RolePermissionRepository
	auditor     *audit.Service
	metrics     *metrics.Metrics
}

// NewService builds the resolver. rolePerms may be nil, in which case the
// mapping is read-only.
func NewService(
	source Source,
	assignments repository.AssignmentRepository,
	rolePerms repository.RolePermissionRepository,
	auditor *audit.Service,
	m *metrics.Metrics,
) *Service {
	return &Service{
		source:      source,
		assignments: assignments,
		rolePerms:   rolePerms,
		auditor:     auditor,
		metrics:     m,
	}
}

// PermissionsFor resolves the permission set of a role. Unknown roles get
// an empty set.
func (s *Service) PermissionsFor(ctx context.Context, role model.Role) (model.PermissionSet, error) {
	if !role.Valid() {
		return model.PermissionSet{}, nil
	}

	codes, err := s.source.PermissionsFor(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve permissions: %w", err)
	}

	known := make([]model.PermissionCode, 0, len(codes))
	for _, c := range codes {
		if c.Valid() {
			known = append(known, c)
		}
	}
	return model.NewPermissionSet(known...), nil
}

func (s *Service) HasPermission(ctx context.Context, role model.Role, code model.PermissionCode) (bool, error) {
	set, err := s.PermissionsFor(ctx, role)
	if err != nil {
		return false, err
	}
	return set.Has(code), nil
}

func (s *Service) IsAdmin(role model.Role) bool {
	return role == model.RoleAdmin
}

// CanAccessPractitionerData reports whether actor may see the data of the
// given practitioner.
func (s *Service) CanAccessPractitionerData(ctx context.Context, actor model.Actor, practitionerID uuid.UUID) (bool, error) {
	switch actor.Role {
	case model.RoleAdmin, model.RoleStaff:
		return true, nil
	case model.RolePractitioner:
		return actor.UserID == practitionerID, nil
	case model.RoleAssistant:
		ok, err := s.assignments.Exists(ctx, actor.UserID, practitionerID)
		if err != nil {
			return false, fmt.Errorf("failed to check assignment: %w", err)
		}
		return ok, nil
	default:
		return false, nil
	}
}

// Require returns a ForbiddenError unless actor's role carries code.
func (s *Service) Require(ctx context.Context, actor model.Actor, code model.PermissionCode) error {
	ok, err := s.HasPermission(ctx, actor.Role, code)
	if err != nil {
		return err
	}
	if !ok {
		s.metrics.Denied("missing_permission")
		log.Warn().
			Str("user_id", actor.UserID.String()).
			Str("role", string(actor.Role)).
			Str("permission", string(code)).
			Msg("permission denied")
		return apperrors.Forbidden(fmt.Sprintf("missing permission %s", code)).WithCode("missing_permission")
	}
	return nil
}

// Mapping returns the resolved permission set of every role.
func (s *Service) Mapping(ctx context.Context) (map[model.Role]model.PermissionSet, error) {
	out := make(map[model.Role]model.PermissionSet, len(model.Roles))
	for _, role := range model.Roles {
		set, err := s.PermissionsFor(ctx, role)
		if err != nil {
			return nil, err
		}
		out[role] = set
	}
	return out, nil
}

func (s *Service) Grant(ctx context.Context, actor model.Actor, role model.Role, code model.PermissionCode) error {
	if err := s.checkEditable(ctx, actor, role, code); err != nil {
		return err
	}
	if err := s.rolePerms.Grant(ctx, role, code); err != nil {
		return err
	}
	s.auditor.Record(ctx, actor, model.AuditActionGrant, model.AuditEntityPermission, uuid.Nil,
		model.RolePermission{Role: role, Permission: code})
	return nil
}

func (s *Service) Revoke(ctx context.Context, actor model.Actor, role model.Role, code model.PermissionCode) error {
	if err := s.checkEditable(ctx, actor, role, code); err != nil {
		return err
	}
	if err := s.rolePerms.Revoke(ctx, role, code); err != nil {
		return err
	}
	s.auditor.Record(ctx, actor, model.AuditActionRevoke, model.AuditEntityPermission, uuid.Nil,
		model.RolePermission{Role: role, Permission: code})
	return nil
}

func (s *Service) checkEditable(ctx context.Context, actor model.Actor, role model.Role, code model.PermissionCode) error {
	if err := s.Require(ctx, actor, model.PermManagePracticeSettings); err != nil {
		return err
	}
	if s.rolePerms == nil {
		return apperrors.Validation("permission mapping is static", nil).WithCode("static_mapping")
	}
	if !role.Valid() {
		return apperrors.Validation(fmt.Sprintf("unknown role %q", role), nil)
	}
	if !code.Valid() {
		return apperrors.Validation(fmt.Sprintf("unknown permission %q", code), nil)
	}
	return nil
}
