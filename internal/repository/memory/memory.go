// Package memory holds map backed repositories for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
)

// Store is one shared in-memory database. Every repository built from it
// sees the same data, and Replace is atomic under the store lock.
type Store struct {
	mu           sync.RWMutex
	users        map[uuid.UUID]*model.User
	rolePerms    map[model.Role]map[model.PermissionCode]struct{}
	assignments  map[uuid.UUID]*model.PractitionerAssignment
	slots        map[uuid.UUID]*model.AvailabilitySlot
	exceptions   map[uuid.UUID]*model.AvailabilityException
	appointments map[uuid.UUID]*model.Appointment
	clients      map[uuid.UUID]*model.Client
	notes        map[uuid.UUID]*model.SessionNote
	audits       []*model.AuditLog
	outbox       []*model.OutboxEvent

	// FailNext makes the next mutating call return this error.
	FailNext error
}

func NewStore() *Store {
	return &Store{
		users:        map[uuid.UUID]*model.User{},
		rolePerms:    map[model.Role]map[model.PermissionCode]struct{}{},
		assignments:  map[uuid.UUID]*model.PractitionerAssignment{},
		slots:        map[uuid.UUID]*model.AvailabilitySlot{},
		exceptions:   map[uuid.UUID]*model.AvailabilityException{},
		appointments: map[uuid.UUID]*model.Appointment{},
		clients:      map[uuid.UUID]*model.Client{},
		notes:        map[uuid.UUID]*model.SessionNote{},
	}
}

func (s *Store) takeFailure() error {
	err := s.FailNext
	s.FailNext = nil
	return err
}

// AddUser seeds a profile.
func (s *Store) AddUser(u *model.User) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	cp := *u
	s.users[u.ID] = &cp
	return u
}

// SeedRolePermissions loads a role to permission mapping.
func (s *Store) SeedRolePermissions(mapping map[model.Role][]model.PermissionCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for role, codes := range mapping {
		set := map[model.PermissionCode]struct{}{}
		for _, c := range codes {
			set[c] = struct{}{}
		}
		s.rolePerms[role] = set
	}
}

// AuditLogs returns a copy of the recorded audit entries.
func (s *Store) AuditLogs() []*model.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*model.AuditLog(nil), s.audits...)
}

// OutboxEvents returns a copy of the recorded outbox events.
func (s *Store) OutboxEvents() []*model.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*model.OutboxEvent(nil), s.outbox...)
}

// Repositories bundles every repository over one store.
type Repositories = repository.Repositories

func (s *Store) Repositories() Repositories {
	return Repositories{
		Users:           userRepo{s},
		RolePermissions: rolePermRepo{s},
		Assignments:     assignmentRepo{s},
		Availability:    slotRepo{s},
		Exceptions:      exceptionRepo{s},
		Appointments:    appointmentRepo{s},
		Clients:         clientRepo{s},
		SessionNotes:    noteRepo{s},
		Audit:           auditRepo{s},
		Outbox:          outboxRepo{s},
	}
}

type userRepo struct{ s *Store }

func (r userRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, apperrors.NotFound("user", nil)
	}
	cp := *u
	return &cp, nil
}

func (r userRepo) GetMany(_ context.Context, ids []uuid.UUID) ([]*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*model.User{}
	seen := map[uuid.UUID]bool{}
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok && !seen[id] {
			seen[id] = true
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

type rolePermRepo struct{ s *Store }

func (r rolePermRepo) ListByRole(_ context.Context, role model.Role) ([]model.PermissionCode, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.FailNext; err != nil {
		return nil, err
	}
	out := []model.PermissionCode{}
	for c := range r.s.rolePerms[role] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (r rolePermRepo) List(_ context.Context) ([]model.RolePermission, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.RolePermission{}
	for role, set := range r.s.rolePerms {
		for c := range set {
			out = append(out, model.RolePermission{Role: role, Permission: c})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role < out[j].Role
		}
		return out[i].Permission < out[j].Permission
	})
	return out, nil
}

func (r rolePermRepo) Grant(_ context.Context, role model.Role, p model.PermissionCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(); err != nil {
		return err
	}
	if r.s.rolePerms[role] == nil {
		r.s.rolePerms[role] = map[model.PermissionCode]struct{}{}
	}
	r.s.rolePerms[role][p] = struct{}{}
	return nil
}

func (r rolePermRepo) Revoke(_ context.Context, role model.Role, p model.PermissionCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(); err != nil {
		return err
	}
	if _, ok := r.s.rolePerms[role][p]; !ok {
		return apperrors.NotFound("role permission", nil)
	}
	delete(r.s.rolePerms[role], p)
	return nil
}

type assignmentRepo struct{ s *Store }

func (r assignmentRepo) Create(_ context.Context, a *model.PractitionerAssignment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(); err != nil {
		return err
	}
	for _, existing := range r.s.assignments {
		if existing.AssistantID == a.AssistantID && existing.PractitionerID == a.PractitionerID {
			return apperrors.Conflict("assignment already exists", nil)
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now().UTC()
	cp := *a
	r.s.assignments[a.ID] = &cp
	return nil
}

func (r assignmentRepo) list(match func(*model.PractitionerAssignment) bool) []*model.PractitionerAssignment {
	out := []*model.PractitionerAssignment{}
	for _, a := range r.s.assignments {
		if match(a) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].PractitionerID.String() < out[j].PractitionerID.String()
	})
	return out
}

func (r assignmentRepo) ListByAssistant(_ context.Context, assistantID uuid.UUID) ([]*model.PractitionerAssignment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.list(func(a *model.PractitionerAssignment) bool { return a.AssistantID == assistantID }), nil
}

func (r assignmentRepo) ListByPractitioner(_ context.Context, practitionerID uuid.UUID) ([]*model.PractitionerAssignment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.list(func(a *model.PractitionerAssignment) bool { return a.PractitionerID == practitionerID }), nil
}

func (r assignmentRepo) PractitionerIDs(_ context.Context, assistantID uuid.UUID) ([]uuid.UUID, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	seen := map[uuid.UUID]bool{}
	ids := []uuid.UUID{}
	for _, a := range r.s.assignments {
		if a.AssistantID == assistantID && !seen[a.PractitionerID] {
			seen[a.PractitionerID] = true
			ids = append(ids, a.PractitionerID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (r assignmentRepo) Exists(_ context.Context, assistantID, practitionerID uuid.UUID) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, a := range r.s.assignments {
		if a.AssistantID == assistantID && a.PractitionerID == practitionerID {
			return true, nil
		}
	}
	return false, nil
}

func (r assignmentRepo) Replace(_ context.Context, assistantID uuid.UUID, practitionerIDs []uuid.UUID, practiceID, actorID uuid.UUID) ([]*model.PractitionerAssignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[assistantID]; !ok {
		return nil, apperrors.NotFound("assistant", nil)
	}
	// Failure leaves the previous set untouched.
	if err := r.s.takeFailure(); err != nil {
		return nil, err
	}

	for id, a := range r.s.assignments {
		if a.AssistantID == assistantID {
			delete(r.s.assignments, id)
		}
	}

	now := time.Now().UTC()
	out := []*model.PractitionerAssignment{}
	for _, pid := range practitionerIDs {
		a := &model.PractitionerAssignment{
			ID:             uuid.New(),
			AssistantID:    assistantID,
			PractitionerID: pid,
			PracticeID:     practiceID,
			CreatedBy:      actorID,
			CreatedAt:      now,
		}
		cp := *a
		r.s.assignments[a.ID] = &cp
		out = append(out, a)
	}
	return out, nil
}

func (r assignmentRepo) Get(_ context.Context, id uuid.UUID) (*model.PractitionerAssignment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.assignments[id]
	if !ok {
		return nil, apperrors.NotFound("assignment", nil)
	}
	cp := *a
	return &cp, nil
}

func (r assignmentRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.assignments[id]; !ok {
		return apperrors.NotFound("assignment", nil)
	}
	delete(r.s.assignments, id)
	return nil
}

func (r assignmentRepo) DeletePair(_ context.Context, assistantID, practitionerID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	found := false
	for id, a := range r.s.assignments {
		if a.AssistantID == assistantID && a.PractitionerID == practitionerID {
			delete(r.s.assignments, id)
			found = true
		}
	}
	if !found {
		return apperrors.NotFound("assignment", nil)
	}
	return nil
}

func (r assignmentRepo) DeleteByAssistant(_ context.Context, assistantID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(); err != nil {
		return err
	}
	for id, a := range r.s.assignments {
		if a.AssistantID == assistantID {
			delete(r.s.assignments, id)
		}
	}
	return nil
}

type slotRepo struct{ s *Store }

func (r slotRepo) ListActive(_ context.Context, practitionerID uuid.UUID) ([]*model.AvailabilitySlot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*model.AvailabilitySlot{}
	for _, sl := range r.s.slots {
		if sl.PractitionerID == practitionerID && sl.IsActive {
			cp := *sl
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].AppointmentType < out[j].AppointmentType
	})
	return out, nil
}

func (r slotRepo) Get(_ context.Context, id uuid.UUID) (*model.AvailabilitySlot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sl, ok := r.s.slots[id]
	if !ok {
		return nil, apperrors.NotFound("availability slot", nil)
	}
	cp := *sl
	return &cp, nil
}

func (r slotRepo) Find(_ context.Context, practitionerID uuid.UUID, day model.Weekday, appointmentType string) (*model.AvailabilitySlot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.FailNext; err != nil {
		return nil, err
	}
	for _, sl := range r.s.slots {
		if sl.PractitionerID == practitionerID && sl.DayOfWeek == day &&
			sl.AppointmentType == appointmentType && sl.IsActive {
			cp := *sl
			return &cp, nil
		}
	}
	return nil, nil
}

func (r slotRepo) UpsertBulk(_ context.Context, slots []*model.AvailabilitySlot) ([]*model.AvailabilitySlot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	out := make([]*model.AvailabilitySlot, 0, len(slots))
	for _, in := range slots {
		var target *model.AvailabilitySlot
		for _, sl := range r.s.slots {
			if sl.PractitionerID == in.PractitionerID && sl.DayOfWeek == in.DayOfWeek &&
				sl.AppointmentType == in.AppointmentType {
				target = sl
				break
			}
		}
		if target == nil {
			target = &model.AvailabilitySlot{
				ID:              uuid.New(),
				PractitionerID:  in.PractitionerID,
				PracticeID:      in.PracticeID,
				DayOfWeek:       in.DayOfWeek,
				AppointmentType: in.AppointmentType,
				CreatedAt:       now,
			}
			r.s.slots[target.ID] = target
		}
		target.StartTime = in.StartTime
		target.EndTime = in.EndTime
		target.IsActive = in.IsActive
		target.UpdatedAt = now
		cp := *target
		out = append(out, &cp)
	}
	return out, nil
}

func (r slotRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sl, ok := r.s.slots[id]
	if !ok {
		return apperrors.NotFound("availability slot", nil)
	}
	sl.IsActive = false
	sl.UpdatedAt = time.Now().UTC()
	return nil
}

func (r slotRepo) DeleteAll(_ context.Context, practitionerID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, sl := range r.s.slots {
		if sl.PractitionerID == practitionerID {
			delete(r.s.slots, id)
		}
	}
	return nil
}

type exceptionRepo struct{ s *Store }

func cloneException(e *model.AvailabilityException) *model.AvailabilityException {
	cp := *e
	if e.AllowedAppointmentTypes != nil {
		cp.AllowedAppointmentTypes = append(cp.AllowedAppointmentTypes[:0:0], e.AllowedAppointmentTypes...)
	}
	return &cp
}

func (r exceptionRepo) Create(_ context.Context, e *model.AvailabilityException) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(); err != nil {
		return err
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = time.Now().UTC()
	e.UpdatedAt = e.CreatedAt
	r.s.exceptions[e.ID] = cloneException(e)
	return nil
}

func (r exceptionRepo) Get(_ context.Context, id uuid.UUID) (*model.AvailabilityException, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.exceptions[id]
	if !ok {
		return nil, apperrors.NotFound("availability exception", nil)
	}
	return cloneException(e), nil
}

func (r exceptionRepo) Update(_ context.Context, e *model.AvailabilityException) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.exceptions[e.ID]; !ok {
		return apperrors.NotFound("availability exception", nil)
	}
	e.UpdatedAt = time.Now().UTC()
	r.s.exceptions[e.ID] = cloneException(e)
	return nil
}

func (r exceptionRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.exceptions[id]; !ok {
		return apperrors.NotFound("availability exception", nil)
	}
	delete(r.s.exceptions, id)
	return nil
}

func (r exceptionRepo) filter(match func(*model.AvailabilityException) bool) []*model.AvailabilityException {
	out := []*model.AvailabilityException{}
	for _, e := range r.s.exceptions {
		if match(e) {
			out = append(out, cloneException(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDatetime.Equal(out[j].StartDatetime) {
			return out[i].StartDatetime.Before(out[j].StartDatetime)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (r exceptionRepo) List(_ context.Context, practitionerID uuid.UUID, activeOnly bool) ([]*model.AvailabilityException, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.filter(func(e *model.AvailabilityException) bool {
		return e.PractitionerID == practitionerID && (!activeOnly || e.IsActive)
	}), nil
}

func (r exceptionRepo) Overlapping(_ context.Context, practitionerID uuid.UUID, start, end time.Time) ([]*model.AvailabilityException, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.filter(func(e *model.AvailabilityException) bool {
		return e.PractitionerID == practitionerID && e.IsActive &&
			!e.StartDatetime.After(end) && !e.EndDatetime.Before(start)
	}), nil
}

type appointmentRepo struct{ s *Store }

func (r appointmentRepo) Create(_ context.Context, a *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(); err != nil {
		return err
	}
	r.insert(a)
	return nil
}

func (r appointmentRepo) CreateIfFree(_ context.Context, a *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(); err != nil {
		return err
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if err := r.claimSlot(a); err != nil {
		return err
	}
	r.insert(a)
	return nil
}

func (r appointmentRepo) insert(a *model.Appointment) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	r.s.appointments[a.ID] = &cp
}

// claimSlot must run with the write lock held.
func (r appointmentRepo) claimSlot(a *model.Appointment) error {
	if len(r.conflicting(a.PractitionerID, a.StartTime, a.EndTime, &a.ID)) > 0 {
		return apperrors.Conflict("appointment overlaps an existing booking", nil).
			WithCode(string(model.ReasonConflict))
	}
	return nil
}

func (r appointmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, apperrors.NotFound("appointment", nil)
	}
	cp := *a
	return &cp, nil
}

func (r appointmentRepo) Update(_ context.Context, a *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.update(a)
}

func (r appointmentRepo) UpdateIfFree(_ context.Context, a *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.claimSlot(a); err != nil {
		return err
	}
	return r.update(a)
}

func (r appointmentRepo) update(a *model.Appointment) error {
	if _, ok := r.s.appointments[a.ID]; !ok {
		return apperrors.NotFound("appointment", nil)
	}
	a.UpdatedAt = time.Now().UTC()
	cp := *a
	r.s.appointments[a.ID] = &cp
	return nil
}

func (r appointmentRepo) List(_ context.Context, f *model.AppointmentFilters) ([]*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var allowed map[uuid.UUID]bool
	if f.PractitionerIDs != nil {
		allowed = map[uuid.UUID]bool{}
		for _, id := range f.PractitionerIDs {
			allowed[id] = true
		}
	}

	out := []*model.Appointment{}
	for _, a := range r.s.appointments {
		switch {
		case a.PracticeID != f.PracticeID:
		case allowed != nil && !allowed[a.PractitionerID]:
		case f.ClientID != uuid.Nil && a.ClientID != f.ClientID:
		case f.Status != "" && a.Status != f.Status:
		case !f.StartDate.IsZero() && !a.EndTime.After(f.StartDate):
		case !f.EndDate.IsZero() && !a.StartTime.Before(f.EndDate):
		default:
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID.String() < out[j].ID.String()
	})

	offset, limit := f.Offset(), f.Limit()
	if offset >= len(out) {
		return []*model.Appointment{}, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func (r appointmentRepo) FindConflicting(_ context.Context, practitionerID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]uuid.UUID, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.FailNext; err != nil {
		return nil, err
	}
	return r.conflicting(practitionerID, start, end, excludeID), nil
}

func (r appointmentRepo) conflicting(practitionerID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) []uuid.UUID {
	var hits []*model.Appointment
	for _, a := range r.s.appointments {
		if a.PractitionerID != practitionerID || a.Status == model.AppointmentStatusCancelled {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if a.StartTime.Before(end) && a.EndTime.After(start) {
			hits = append(hits, a)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].StartTime.Before(hits[j].StartTime) })
	ids := make([]uuid.UUID, 0, len(hits))
	for _, a := range hits {
		ids = append(ids, a.ID)
	}
	return ids
}

type clientRepo struct{ s *Store }

func (r clientRepo) Create(_ context.Context, c *model.Client) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(); err != nil {
		return err
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	r.s.clients[c.ID] = &cp
	return nil
}

func (r clientRepo) Get(_ context.Context, id uuid.UUID) (*model.Client, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.clients[id]
	if !ok {
		return nil, apperrors.NotFound("client", nil)
	}
	cp := *c
	return &cp, nil
}

type noteRepo struct{ s *Store }

func (r noteRepo) Create(_ context.Context, n *model.SessionNote) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(); err != nil {
		return err
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.CreatedAt = time.Now().UTC()
	n.UpdatedAt = n.CreatedAt
	cp := *n
	r.s.notes[n.ID] = &cp
	return nil
}

func (r noteRepo) ListByAppointment(_ context.Context, appointmentID uuid.UUID) ([]*model.SessionNote, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*model.SessionNote{}
	for _, n := range r.s.notes {
		if n.AppointmentID == appointmentID {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type auditRepo struct{ s *Store }

func (r auditRepo) Create(_ context.Context, l *model.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *l
	r.s.audits = append(r.s.audits, &cp)
	return nil
}

func (r auditRepo) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.audits[:0]
	var n int64
	for _, l := range r.s.audits {
		if l.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, l)
	}
	r.s.audits = kept
	return n, nil
}

type outboxRepo struct{ s *Store }

func (r outboxRepo) Create(_ context.Context, e *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.Status = model.OutboxStatusPending
	e.CreatedAt = time.Now().UTC()
	cp := *e
	r.s.outbox = append(r.s.outbox, &cp)
	return nil
}

func (r outboxRepo) ClaimPending(_ context.Context, limit int, handle func(*model.OutboxEvent) error) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	done := 0
	claimed := 0
	for _, e := range r.s.outbox {
		if claimed >= limit {
			break
		}
		if e.Status != model.OutboxStatusPending {
			continue
		}
		claimed++
		if err := handle(e); err != nil {
			e.RetryCount++
			if e.RetryCount >= model.OutboxMaxRetries {
				e.Status = model.OutboxStatusFailed
			}
			msg := err.Error()
			e.ErrorMessage = &msg
			continue
		}
		now := time.Now().UTC()
		e.Status = model.OutboxStatusProcessed
		e.ProcessedAt = &now
		done++
	}
	return done, nil
}
