package permission

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository/memory"
	"github.com/jwalitptl/practice-api/internal/service/audit"
	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
	"github.com/jwalitptl/practice-api/pkg/metrics"
)

func newStaticService(store *memory.Store) *Service {
	repos := store.Repositories()
	return NewService(StaticSource(model.DefaultRolePermissions), repos.Assignments, nil,
		audit.NewService(repos.Audit), nil)
}

func newDatabaseService(store *memory.Store, m *metrics.Metrics) *Service {
	repos := store.Repositories()
	store.SeedRolePermissions(model.DefaultRolePermissions)
	return NewService(NewDatabaseSource(repos.RolePermissions), repos.Assignments, repos.RolePermissions,
		audit.NewService(repos.Audit), m)
}

func TestPermissionsFor_DefaultMapping(t *testing.T) {
	svc := newStaticService(memory.NewStore())
	ctx := context.Background()

	tests := []struct {
		role model.Role
		want model.PermissionSet
	}{
		{model.RoleAdmin, model.NewPermissionSet(model.PermissionCodes...)},
		{model.RolePractitioner, model.NewPermissionSet(
			model.PermManageClients, model.PermManageAppointments, model.PermViewSessions,
			model.PermManageSessions, model.PermViewMedicalData, model.PermManageAvailability,
		)},
		{model.RoleStaff, model.NewPermissionSet(model.PermManageClients, model.PermManageAppointments)},
		{model.RoleAssistant, model.NewPermissionSet(model.PermManageAppointments, model.PermManageClients)},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			got, err := svc.PermissionsFor(ctx, tt.role)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPermissionsFor_Deterministic(t *testing.T) {
	for name, svc := range map[string]*Service{
		"static":   newStaticService(memory.NewStore()),
		"database": newDatabaseService(memory.NewStore(), nil),
	} {
		t.Run(name, func(t *testing.T) {
			for _, role := range model.Roles {
				first, err := svc.PermissionsFor(context.Background(), role)
				require.NoError(t, err)
				for i := 0; i < 5; i++ {
					again, err := svc.PermissionsFor(context.Background(), role)
					require.NoError(t, err)
					assert.Equal(t, first, again, "role %s", role)
				}
			}
		})
	}
}

func TestPermissionsFor_UnknownRoleFailsClosed(t *testing.T) {
	svc := newStaticService(memory.NewStore())

	set, err := svc.PermissionsFor(context.Background(), model.Role("superuser"))
	require.NoError(t, err)
	assert.Empty(t, set)

	ok, err := svc.HasPermission(context.Background(), model.Role(""), model.PermManageClients)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPermissionsFor_DropsUnknownCodes(t *testing.T) {
	src := StaticSource{model.RoleStaff: {model.PermManageClients, "launch_rockets", model.PermManageClients}}
	svc := NewService(src, nil, nil, nil, nil)

	set, err := svc.PermissionsFor(context.Background(), model.RoleStaff)
	require.NoError(t, err)
	assert.Equal(t, model.PermissionSet{model.PermManageClients}, set)
}

func TestPermissionsFor_SourceFailure(t *testing.T) {
	store := memory.NewStore()
	svc := newDatabaseService(store, nil)
	store.FailNext = apperrors.Storage("list role permissions", errors.New("connection refused"))
	defer func() { store.FailNext = nil }()

	_, err := svc.PermissionsFor(context.Background(), model.RoleAdmin)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindStorage))
}

func TestIsAdmin(t *testing.T) {
	svc := newStaticService(memory.NewStore())
	assert.True(t, svc.IsAdmin(model.RoleAdmin))
	assert.False(t, svc.IsAdmin(model.RoleStaff))
	assert.False(t, svc.IsAdmin(model.Role("ADMIN")))
}

func TestCanAccessPractitionerData(t *testing.T) {
	store := memory.NewStore()
	svc := newStaticService(store)
	ctx := context.Background()

	practice := uuid.New()
	self := uuid.New()
	other := uuid.New()
	assistant := uuid.New()
	store.AddUser(&model.User{Base: model.Base{ID: assistant}, PracticeID: practice, Role: model.RoleAssistant})
	_, err := store.Repositories().Assignments.Replace(ctx, assistant, []uuid.UUID{self}, practice, uuid.New())
	require.NoError(t, err)

	tests := []struct {
		name  string
		actor model.Actor
		pid   uuid.UUID
		want  bool
	}{
		{"admin", model.Actor{UserID: uuid.New(), Role: model.RoleAdmin}, other, true},
		{"staff", model.Actor{UserID: uuid.New(), Role: model.RoleStaff}, other, true},
		{"practitioner self", model.Actor{UserID: self, Role: model.RolePractitioner}, self, true},
		{"practitioner other", model.Actor{UserID: self, Role: model.RolePractitioner}, other, false},
		{"assistant assigned", model.Actor{UserID: assistant, Role: model.RoleAssistant}, self, true},
		{"assistant unassigned", model.Actor{UserID: assistant, Role: model.RoleAssistant}, other, false},
		{"unknown role", model.Actor{UserID: self, Role: "guest"}, self, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.CanAccessPractitionerData(ctx, tt.actor, tt.pid)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequire(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("test", reg)
	svc := newDatabaseService(memory.NewStore(), m)
	ctx := context.Background()

	staff := model.Actor{UserID: uuid.New(), Role: model.RoleStaff}
	require.NoError(t, svc.Require(ctx, staff, model.PermManageAppointments))

	err := svc.Require(ctx, staff, model.PermViewMedicalData)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PermissionDenials.WithLabelValues("missing_permission")))
}

func TestGrantRevoke(t *testing.T) {
	store := memory.NewStore()
	svc := newDatabaseService(store, nil)
	ctx := context.Background()
	admin := model.Actor{UserID: uuid.New(), Role: model.RoleAdmin, PracticeID: uuid.New()}

	require.NoError(t, svc.Grant(ctx, admin, model.RoleStaff, model.PermViewSessions))
	ok, err := svc.HasPermission(ctx, model.RoleStaff, model.PermViewSessions)
	require.NoError(t, err)
	assert.True(t, ok, "grant is visible on the next check")

	require.NoError(t, svc.Revoke(ctx, admin, model.RoleStaff, model.PermViewSessions))
	ok, err = svc.HasPermission(ctx, model.RoleStaff, model.PermViewSessions)
	require.NoError(t, err)
	assert.False(t, ok)

	logs := store.AuditLogs()
	require.Len(t, logs, 2)
	assert.Equal(t, model.AuditActionGrant, logs[0].Action)
	assert.Equal(t, model.AuditActionRevoke, logs[1].Action)

	err = svc.Revoke(ctx, admin, model.RoleStaff, model.PermViewSessions)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestGrant_Rejects(t *testing.T) {
	ctx := context.Background()
	admin := model.Actor{UserID: uuid.New(), Role: model.RoleAdmin}

	t.Run("non admin", func(t *testing.T) {
		svc := newDatabaseService(memory.NewStore(), nil)
		err := svc.Grant(ctx, model.Actor{UserID: uuid.New(), Role: model.RolePractitioner},
			model.RoleStaff, model.PermViewSessions)
		assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
	})

	t.Run("static mapping", func(t *testing.T) {
		svc := newStaticService(memory.NewStore())
		err := svc.Grant(ctx, admin, model.RoleStaff, model.PermViewSessions)
		assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	})

	t.Run("unknown code", func(t *testing.T) {
		svc := newDatabaseService(memory.NewStore(), nil)
		err := svc.Grant(ctx, admin, model.RoleStaff, "fly")
		assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	})

	t.Run("unknown role", func(t *testing.T) {
		svc := newDatabaseService(memory.NewStore(), nil)
		err := svc.Grant(ctx, admin, "owner", model.PermViewSessions)
		assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	})
}

func TestMapping(t *testing.T) {
	svc := newStaticService(memory.NewStore())
	mapping, err := svc.Mapping(context.Background())
	require.NoError(t, err)
	assert.Len(t, mapping, len(model.Roles))
	assert.Len(t, mapping[model.RoleAdmin], len(model.PermissionCodes))
}
