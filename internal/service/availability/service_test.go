package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository/memory"
	"github.com/jwalitptl/practice-api/internal/service/audit"
	"github.com/jwalitptl/practice-api/internal/service/permission"
	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
)

type serviceFixture struct {
	store        *memory.Store
	svc          *Service
	admin        model.Actor
	practitioner model.Actor
	other        model.Actor
	staff        model.Actor
	assistant    model.Actor
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	store := memory.NewStore()
	repos := store.Repositories()
	practice := uuid.New()

	actor := func(role model.Role) model.Actor {
		u := store.AddUser(&model.User{PracticeID: practice, Role: role, IsActive: true})
		return model.Actor{UserID: u.ID, Role: role, PracticeID: practice}
	}

	perms := permission.NewService(permission.StaticSource(model.DefaultRolePermissions),
		repos.Assignments, nil, nil, nil)
	checker := NewChecker(repos.Availability, repos.Exceptions, repos.Appointments, time.UTC, nil)

	return &serviceFixture{
		store: store,
		svc: NewService(repos.Availability, repos.Exceptions, repos.Users, perms, checker,
			audit.NewService(repos.Audit)),
		admin:        actor(model.RoleAdmin),
		practitioner: actor(model.RolePractitioner),
		other:        actor(model.RolePractitioner),
		staff:        actor(model.RoleStaff),
		assistant:    actor(model.RoleAssistant),
	}
}

func weekdaySlot(day model.Weekday, typ, start, end string) model.SlotInput {
	return model.SlotInput{
		DayOfWeek:       day,
		AppointmentType: typ,
		StartTime:       model.MustTimeOfDay(start),
		EndTime:         model.MustTimeOfDay(end),
	}
}

func TestUpsertSlots(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	pid := f.practitioner.UserID

	saved, err := f.svc.UpsertSlots(ctx, f.practitioner, pid, []model.SlotInput{
		weekdaySlot(model.Monday, consultation, "09:00", "17:00"),
		weekdaySlot(model.Wednesday, consultation, "09:00", "12:00"),
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, f.practitioner.PracticeID, saved[0].PracticeID)
	assert.True(t, saved[0].IsActive)

	// Same key updates in place.
	_, err = f.svc.UpsertSlots(ctx, f.admin, pid, []model.SlotInput{
		weekdaySlot(model.Monday, consultation, "10:00", "16:00"),
	})
	require.NoError(t, err)

	slots, err := f.svc.SlotsFor(ctx, f.staff, pid)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, model.Monday, slots[0].DayOfWeek)
	assert.Equal(t, model.MustTimeOfDay("10:00"), slots[0].StartTime)
	assert.Equal(t, model.Wednesday, slots[1].DayOfWeek)

	slot, err := f.svc.SlotFor(ctx, pid, model.Wednesday, consultation)
	require.NoError(t, err)
	require.NotNil(t, slot)
	assert.Equal(t, model.MustTimeOfDay("12:00"), slot.EndTime)

	slot, err = f.svc.SlotFor(ctx, pid, model.Friday, consultation)
	require.NoError(t, err)
	assert.Nil(t, slot)

	_, err = f.svc.SlotFor(ctx, pid, model.Weekday(7), consultation)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestUpsertSlots_Validation(t *testing.T) {
	f := newServiceFixture(t)
	pid := f.practitioner.UserID

	tests := []struct {
		name string
		in   model.SlotInput
	}{
		{"bad day", weekdaySlot(model.Weekday(7), consultation, "09:00", "10:00")},
		{"negative day", weekdaySlot(model.Weekday(-1), consultation, "09:00", "10:00")},
		{"missing type", weekdaySlot(model.Monday, "", "09:00", "10:00")},
		{"start equals end", weekdaySlot(model.Monday, consultation, "10:00", "10:00")},
		{"start after end", weekdaySlot(model.Monday, consultation, "11:00", "10:00")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UpsertSlots(context.Background(), f.practitioner, pid, []model.SlotInput{tt.in})
			assert.True(t, apperrors.IsKind(err, apperrors.KindValidation), "got %v", err)
		})
	}

	_, err := f.svc.UpsertSlots(context.Background(), f.practitioner, pid, nil)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestUpsertSlots_Authorization(t *testing.T) {
	f := newServiceFixture(t)
	in := []model.SlotInput{weekdaySlot(model.Monday, consultation, "09:00", "17:00")}

	tests := []struct {
		name   string
		actor  model.Actor
		target uuid.UUID
		kind   apperrors.Kind
	}{
		{"other practitioner", f.other, f.practitioner.UserID, apperrors.KindForbidden},
		{"staff lacks permission", f.staff, f.practitioner.UserID, apperrors.KindForbidden},
		{"assistant lacks permission", f.assistant, f.practitioner.UserID, apperrors.KindForbidden},
		{"admin for non practitioner", f.admin, f.staff.UserID, apperrors.KindValidation},
		{"admin for unknown user", f.admin, uuid.New(), apperrors.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UpsertSlots(context.Background(), tt.actor, tt.target, in)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperrors.KindOf(err))
		})
	}
}

func TestDeactivateAndReset(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	pid := f.practitioner.UserID

	saved, err := f.svc.UpsertSlots(ctx, f.practitioner, pid, []model.SlotInput{
		weekdaySlot(model.Monday, consultation, "09:00", "17:00"),
		weekdaySlot(model.Tuesday, consultation, "09:00", "17:00"),
	})
	require.NoError(t, err)

	err = f.svc.DeactivateSlot(ctx, f.other, saved[0].ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	require.NoError(t, f.svc.DeactivateSlot(ctx, f.practitioner, saved[0].ID))
	slots, err := f.svc.SlotsFor(ctx, f.practitioner, pid)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, model.Tuesday, slots[0].DayOfWeek)

	require.NoError(t, f.svc.ResetSlots(ctx, f.admin, pid))
	slots, err = f.svc.SlotsFor(ctx, f.practitioner, pid)
	require.NoError(t, err)
	assert.Empty(t, slots)

	err = f.svc.DeactivateSlot(ctx, f.practitioner, uuid.New())
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestSlotsFor_AssistantNeedsAssignment(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.svc.SlotsFor(context.Background(), f.assistant, f.practitioner.UserID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
}

func TestExceptionLifecycle(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	pid := f.practitioner.UserID

	created, err := f.svc.CreateException(ctx, f.practitioner, pid, model.ExceptionInput{
		ExceptionType: model.ExceptionTimeOff,
		StartDatetime: mon(0, 0),
		EndDatetime:   mon(23, 59),
		Description:   "conference",
	})
	require.NoError(t, err)
	assert.True(t, created.IsActive)

	inactive := false
	updated, err := f.svc.UpdateException(ctx, f.practitioner, created.ID, model.ExceptionInput{
		ExceptionType:     model.ExceptionModifiedHours,
		StartDatetime:     mon(0, 0),
		EndDatetime:       mon(23, 59),
		ModifiedStartTime: tod("12:00"),
		ModifiedEndTime:   tod("14:00"),
		IsActive:          &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, model.ExceptionModifiedHours, updated.ExceptionType)
	assert.False(t, updated.IsActive)

	all, err := f.svc.ExceptionsFor(ctx, f.staff, pid, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	active, err := f.svc.ExceptionsFor(ctx, f.staff, pid, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	got, err := f.svc.GetException(ctx, f.admin, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "", got.Description)

	err = f.svc.DeleteException(ctx, f.other, created.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
	require.NoError(t, f.svc.DeleteException(ctx, f.practitioner, created.ID))
	_, err = f.svc.GetException(ctx, f.admin, created.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestCreateException_Validation(t *testing.T) {
	f := newServiceFixture(t)
	pid := f.practitioner.UserID

	tests := []struct {
		name string
		in   model.ExceptionInput
	}{
		{"unknown type", model.ExceptionInput{ExceptionType: "holiday", StartDatetime: mon(0, 0), EndDatetime: mon(1, 0)}},
		{"end before start", model.ExceptionInput{ExceptionType: model.ExceptionTimeOff, StartDatetime: mon(2, 0), EndDatetime: mon(1, 0)}},
		{"missing dates", model.ExceptionInput{ExceptionType: model.ExceptionTimeOff}},
		{"modified hours without times", model.ExceptionInput{ExceptionType: model.ExceptionModifiedHours, StartDatetime: mon(0, 0), EndDatetime: mon(1, 0)}},
		{"modified hours reversed", model.ExceptionInput{
			ExceptionType: model.ExceptionModifiedHours, StartDatetime: mon(0, 0), EndDatetime: mon(1, 0),
			ModifiedStartTime: tod("15:00"), ModifiedEndTime: tod("12:00"),
		}},
		{"type only without types", model.ExceptionInput{ExceptionType: model.ExceptionTypeOnly, StartDatetime: mon(0, 0), EndDatetime: mon(1, 0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateException(context.Background(), f.practitioner, pid, tt.in)
			assert.True(t, apperrors.IsKind(err, apperrors.KindValidation), "got %v", err)
		})
	}
}

func TestCreateException_ClearsUnusedFields(t *testing.T) {
	f := newServiceFixture(t)
	e, err := f.svc.CreateException(context.Background(), f.practitioner, f.practitioner.UserID, model.ExceptionInput{
		ExceptionType:           model.ExceptionTimeOff,
		StartDatetime:           mon(0, 0),
		EndDatetime:             mon(0, 0),
		ModifiedStartTime:       tod("09:00"),
		ModifiedEndTime:         tod("10:00"),
		AllowedAppointmentTypes: []string{consultation},
	})
	require.NoError(t, err)
	assert.Nil(t, e.ModifiedStartTime)
	assert.Nil(t, e.ModifiedEndTime)
	assert.Empty(t, e.AllowedAppointmentTypes)
}

func TestOverlapping(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	pid := f.practitioner.UserID

	_, err := f.svc.CreateException(ctx, f.practitioner, pid, model.ExceptionInput{
		ExceptionType: model.ExceptionTimeOff,
		StartDatetime: mon(12, 0),
		EndDatetime:   mon(13, 0),
	})
	require.NoError(t, err)

	hits, err := f.svc.Overlapping(ctx, f.staff, pid, mon(13, 0), mon(14, 0))
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = f.svc.Overlapping(ctx, f.staff, pid, mon(13, 1), mon(14, 0))
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = f.svc.Overlapping(ctx, f.staff, pid, mon(14, 0), mon(13, 0))
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestCheckBookable(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	pid := f.practitioner.UserID
	_, err := f.svc.UpsertSlots(ctx, f.practitioner, pid, []model.SlotInput{
		weekdaySlot(model.Monday, consultation, "09:00", "17:00"),
	})
	require.NoError(t, err)

	req := model.BookingRequest{PractitionerID: pid, AppointmentType: consultation, Start: mon(10, 0), End: mon(11, 0)}
	res, err := f.svc.CheckBookable(ctx, f.staff, req)
	require.NoError(t, err)
	assert.True(t, res.Bookable)

	_, err = f.svc.CheckBookable(ctx, f.other, req)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	req.AppointmentType = ""
	_, err = f.svc.CheckBookable(ctx, f.staff, req)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestCheckBookable_PractitionerMustBelongToPractice(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	foreign := f.store.AddUser(&model.User{PracticeID: uuid.New(), Role: model.RolePractitioner, IsActive: true})
	_, err := f.store.Repositories().Availability.UpsertBulk(ctx, []*model.AvailabilitySlot{{
		PractitionerID:  foreign.ID,
		PracticeID:      foreign.PracticeID,
		DayOfWeek:       model.Monday,
		AppointmentType: consultation,
		StartTime:       model.MustTimeOfDay("09:00"),
		EndTime:         model.MustTimeOfDay("17:00"),
		IsActive:        true,
	}})
	require.NoError(t, err)

	tests := []struct {
		name         string
		practitioner uuid.UUID
		kind         apperrors.Kind
	}{
		{"missing practitioner", uuid.New(), apperrors.KindNotFound},
		{"other practice", foreign.ID, apperrors.KindNotFound},
		{"not a practitioner", f.assistant.UserID, apperrors.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := model.BookingRequest{PractitionerID: tt.practitioner, AppointmentType: consultation, Start: mon(10, 0), End: mon(11, 0)}
			_, err := f.svc.CheckBookable(ctx, f.staff, req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperrors.KindOf(err))
		})
	}
}
