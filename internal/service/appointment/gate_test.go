package appointment

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository/memory"
	"github.com/jwalitptl/practice-api/internal/service/assignment"
	"github.com/jwalitptl/practice-api/internal/service/audit"
	"github.com/jwalitptl/practice-api/internal/service/event"
	"github.com/jwalitptl/practice-api/internal/service/permission"
	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
)

func newGate(store *memory.Store, source permission.Source) *Gate {
	repos := store.Repositories()
	perms := permission.NewService(source, repos.Assignments, nil, nil, nil)
	assignments := assignment.NewService(repos.Assignments, repos.Users, event.NewService(repos.Outbox), audit.NewService(repos.Audit))
	return NewGate(perms, assignments, nil)
}

func TestCanActOnPractitioner_Practitioner(t *testing.T) {
	gate := newGate(memory.NewStore(), permission.StaticSource(model.DefaultRolePermissions))
	self := model.Actor{UserID: uuid.New(), Role: model.RolePractitioner, PracticeID: uuid.New()}

	ok, err := gate.CanActOnPractitioner(context.Background(), self, self.UserID)
	require.NoError(t, err)
	assert.True(t, ok)

	for i := 0; i < 10; i++ {
		ok, err := gate.CanActOnPractitioner(context.Background(), self, uuid.New())
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestCanActOnPractitioner_AssistantWithoutAssignments(t *testing.T) {
	gate := newGate(memory.NewStore(), permission.StaticSource(model.DefaultRolePermissions))
	assistant := model.Actor{UserID: uuid.New(), Role: model.RoleAssistant}

	for i := 0; i < 10; i++ {
		ok, err := gate.CanActOnPractitioner(context.Background(), assistant, uuid.New())
		require.NoError(t, err)
		assert.False(t, ok)
	}
	ok, err := gate.CanActOnPractitioner(context.Background(), assistant, assistant.UserID)
	require.NoError(t, err)
	assert.False(t, ok, "assistants are never their own practitioner")
}

func TestCanActOnPractitioner_Roles(t *testing.T) {
	store := memory.NewStore()
	gate := newGate(store, permission.StaticSource(model.DefaultRolePermissions))
	ctx := context.Background()

	practice := uuid.New()
	assistant := store.AddUser(&model.User{PracticeID: practice, Role: model.RoleAssistant}).ID
	p1, p2 := uuid.New(), uuid.New()
	_, err := store.Repositories().Assignments.Replace(ctx, assistant, []uuid.UUID{p1}, practice, uuid.New())
	require.NoError(t, err)

	tests := []struct {
		name  string
		actor model.Actor
		pid   uuid.UUID
		want  bool
	}{
		{"admin", model.Actor{UserID: uuid.New(), Role: model.RoleAdmin}, p2, true},
		{"staff", model.Actor{UserID: uuid.New(), Role: model.RoleStaff}, p2, true},
		{"assistant assigned", model.Actor{UserID: assistant, Role: model.RoleAssistant}, p1, true},
		{"assistant unassigned", model.Actor{UserID: assistant, Role: model.RoleAssistant}, p2, false},
		{"unknown role", model.Actor{UserID: p1, Role: "owner"}, p1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := gate.CanActOnPractitioner(ctx, tt.actor, tt.pid)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestCanActOnPractitioner_RequiresPermission(t *testing.T) {
	// staff without manage_appointments
	source := permission.StaticSource{model.RoleStaff: {model.PermManageClients}}
	gate := newGate(memory.NewStore(), source)

	ok, err := gate.CanActOnPractitioner(context.Background(), model.Actor{UserID: uuid.New(), Role: model.RoleStaff}, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolvePractitioner(t *testing.T) {
	gate := newGate(memory.NewStore(), permission.StaticSource(model.DefaultRolePermissions))
	ctx := context.Background()
	self := model.Actor{UserID: uuid.New(), Role: model.RolePractitioner}

	got, err := gate.ResolvePractitioner(ctx, self, nil)
	require.NoError(t, err)
	assert.Equal(t, self.UserID, got)

	nilID := uuid.Nil
	got, err = gate.ResolvePractitioner(ctx, self, &nilID)
	require.NoError(t, err)
	assert.Equal(t, self.UserID, got)

	other := uuid.New()
	_, err = gate.ResolvePractitioner(ctx, self, &other)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	admin := model.Actor{UserID: uuid.New(), Role: model.RoleAdmin}
	got, err = gate.ResolvePractitioner(ctx, admin, &other)
	require.NoError(t, err)
	assert.Equal(t, other, got)
}
