package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/practice-api/internal/handler/health"
	"github.com/jwalitptl/practice-api/internal/middleware"
	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository/memory"
	"github.com/jwalitptl/practice-api/internal/router"
	"github.com/jwalitptl/practice-api/pkg/auth"
)

const testSecret = "flow-secret"

type response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func (r response) IsSuccess() bool {
	return r.Status == "success"
}

type practice struct {
	t            *testing.T
	store        *memory.Store
	engine       *gin.Engine
	id           uuid.UUID
	admin        model.Actor
	practitioner model.Actor
	other        model.Actor
	assistant    model.Actor
}

func newPractice(t *testing.T) *practice {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	p := &practice{t: t, store: store, id: uuid.New()}
	p.admin = p.addUser(model.RoleAdmin)
	p.practitioner = p.addUser(model.RolePractitioner)
	p.other = p.addUser(model.RolePractitioner)
	p.assistant = p.addUser(model.RoleAssistant)

	a, err := New(store.Repositories(), Options{
		PermissionSource: PermissionSourceStatic,
		Location:         time.UTC,
		Validator:        auth.NewValidator(testSecret, "", ""),
	}, nil)
	require.NoError(t, err)

	r, err := a.Router(health.NewHandler(nil, nil), nil, router.RouterConfig{
		CORSConfig:     middleware.DefaultCORSConfig(),
		RequestTimeout: 5 * time.Second,
		MaxBodyBytes:   1 << 20,
	})
	require.NoError(t, err)
	p.engine = r.Engine()
	return p
}

func (p *practice) addUser(role model.Role) model.Actor {
	u := p.store.AddUser(&model.User{
		PracticeID: p.id,
		Email:      fmt.Sprintf("%s-%s@example.com", role, uuid.NewString()[:8]),
		FullName:   string(role),
		Role:       role,
		IsActive:   true,
	})
	return model.Actor{UserID: u.ID, Role: role, PracticeID: p.id}
}

func (p *practice) do(actor *model.Actor, method, path string, body interface{}) (int, response) {
	p.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(p.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/api/v1"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		token, err := auth.Sign(testSecret, *actor, time.Hour)
		require.NoError(p.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	p.engine.ServeHTTP(rec, req)

	var resp response
	if rec.Body.Len() > 0 {
		require.NoError(p.t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	}
	return rec.Code, resp
}

func (p *practice) into(resp response, dst interface{}) {
	p.t.Helper()
	require.NoError(p.t, json.Unmarshal(resp.Data, dst))
}

func TestNew_UnknownPermissionSource(t *testing.T) {
	_, err := New(memory.NewStore().Repositories(), Options{PermissionSource: "ldap"}, nil)
	assert.Error(t, err)
}

func TestHealthIsPublic(t *testing.T) {
	p := newPractice(t)

	code, _ := p.do(nil, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = p.do(nil, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	p := newPractice(t)

	code, resp := p.do(nil, http.MethodGet, "/me/permissions", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthorized", resp.Code)
}

func TestMyPermissions(t *testing.T) {
	p := newPractice(t)

	code, resp := p.do(&p.assistant, http.MethodGet, "/me/permissions", nil)
	require.Equal(t, http.StatusOK, code)

	var out struct {
		Role        model.Role             `json:"role"`
		Permissions []model.PermissionCode `json:"permissions"`
	}
	p.into(resp, &out)
	assert.Equal(t, model.RoleAssistant, out.Role)
	assert.ElementsMatch(t, []model.PermissionCode{model.PermManageClients, model.PermManageAppointments}, out.Permissions)
}

func TestRoleMappingNeedsPracticeSettings(t *testing.T) {
	p := newPractice(t)

	code, _ := p.do(&p.practitioner, http.MethodGet, "/permissions/roles", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = p.do(&p.admin, http.MethodGet, "/permissions/roles", nil)
	assert.Equal(t, http.StatusOK, code)

	// the static mapping cannot be edited
	code, resp := p.do(&p.admin, http.MethodPut, "/permissions/roles/staff/view_sessions", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "static_mapping", resp.Code)
}

func TestUpsertSlots_FieldErrors(t *testing.T) {
	p := newPractice(t)

	code, resp := p.do(&p.practitioner, http.MethodPut, fmt.Sprintf("/practitioners/%s/availability", p.practitioner.UserID),
		map[string]interface{}{
			"slots": []map[string]interface{}{
				{"day_of_week": 9, "appointment_type": "consultation", "start_time": "09:00", "end_time": "17:00"},
			},
		})
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation", resp.Code)

	var fields []middleware.FieldError
	p.into(resp, &fields)
	require.Len(t, fields, 1)
	assert.Equal(t, "slots[0].day_of_week", fields[0].Field)
}

func TestSchedulingFlow(t *testing.T) {
	p := newPractice(t)
	start := time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC) // Monday
	end := start.Add(time.Hour)

	// admin assigns the assistant to one practitioner
	code, resp := p.do(&p.admin, http.MethodPut, fmt.Sprintf("/assistants/%s/assignments", p.assistant.UserID),
		model.ReplaceAssignmentsRequest{PractitionerIDs: []uuid.UUID{p.practitioner.UserID}})
	require.Equal(t, http.StatusOK, code, resp.Message)
	var assignments []model.PractitionerAssignment
	p.into(resp, &assignments)
	require.Len(t, assignments, 1)
	assert.Equal(t, p.practitioner.UserID, assignments[0].PractitionerID)

	// the practitioner publishes Monday hours
	code, resp = p.do(&p.practitioner, http.MethodPut, fmt.Sprintf("/practitioners/%s/availability", p.practitioner.UserID),
		map[string]interface{}{
			"slots": []map[string]interface{}{
				{"day_of_week": 1, "appointment_type": "consultation", "start_time": "09:00", "end_time": "17:00"},
			},
		})
	require.Equal(t, http.StatusOK, code, resp.Message)

	// the assistant registers a client
	code, resp = p.do(&p.assistant, http.MethodPost, "/clients", map[string]interface{}{
		"first_name": "Ada",
		"last_name":  "Lovelace",
	})
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var client model.Client
	p.into(resp, &client)

	bookablePath := fmt.Sprintf("/practitioners/%s/bookable?type=consultation&start=%s&end=%s",
		p.practitioner.UserID, start.Format(time.RFC3339), end.Format(time.RFC3339))
	code, resp = p.do(&p.assistant, http.MethodGet, bookablePath, nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	var check model.Bookability
	p.into(resp, &check)
	assert.True(t, check.Bookable)
	assert.Equal(t, model.ReasonOK, check.Reason)

	booking := map[string]interface{}{
		"client_id":        client.ID,
		"practitioner_id":  p.practitioner.UserID,
		"appointment_type": "consultation",
		"start_time":       start,
		"end_time":         end,
	}
	code, resp = p.do(&p.assistant, http.MethodPost, "/appointments", booking)
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var apt model.Appointment
	p.into(resp, &apt)
	assert.Equal(t, model.AppointmentStatusScheduled, apt.Status)

	// same interval again conflicts
	code, resp = p.do(&p.assistant, http.MethodPost, "/appointments", booking)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "conflict", resp.Code)

	// the assistant cannot book for an unassigned practitioner
	booking["practitioner_id"] = p.other.UserID
	code, resp = p.do(&p.assistant, http.MethodPost, "/appointments", booking)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "practitioner_scope", resp.Code)

	code, resp = p.do(&p.assistant, http.MethodGet, "/appointments", nil)
	require.Equal(t, http.StatusOK, code)
	var listed []model.Appointment
	p.into(resp, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, apt.ID, listed[0].ID)

	// another practitioner sees none of it
	code, resp = p.do(&p.other, http.MethodGet, "/appointments", nil)
	require.Equal(t, http.StatusOK, code)
	listed = nil
	p.into(resp, &listed)
	assert.Empty(t, listed)

	code, resp = p.do(&p.other, http.MethodGet, "/appointments/"+apt.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, code)

	// now the slot reads as taken
	code, resp = p.do(&p.assistant, http.MethodGet, bookablePath, nil)
	require.Equal(t, http.StatusOK, code)
	p.into(resp, &check)
	assert.False(t, check.Bookable)
	assert.Equal(t, model.ReasonConflict, check.Reason)

	code, resp = p.do(&p.assistant, http.MethodDelete, "/appointments/"+apt.ID.String()+"?reason=client+ill", nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	p.into(resp, &apt)
	assert.Equal(t, model.AppointmentStatusCancelled, apt.Status)

	var types []string
	for _, e := range p.store.OutboxEvents() {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []string{
		model.EventAssignmentReplaced,
		model.EventAppointmentCreated,
		model.EventAppointmentCancelled,
	}, types)
	assert.NotEmpty(t, p.store.AuditLogs())
}

func TestExceptionRoutes(t *testing.T) {
	p := newPractice(t)
	base := fmt.Sprintf("/practitioners/%s/exceptions", p.practitioner.UserID)

	code, resp := p.do(&p.practitioner, http.MethodPost, base, map[string]interface{}{
		"exception_type": "time_off",
		"start_datetime": "2024-01-08T00:00:00Z",
		"end_datetime":   "2024-01-08T23:59:59Z",
		"description":    "conference",
	})
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var exc model.AvailabilityException
	p.into(resp, &exc)
	assert.Equal(t, model.ExceptionTimeOff, exc.ExceptionType)

	code, resp = p.do(&p.practitioner, http.MethodGet,
		base+"/overlapping?start=2024-01-08T10:00:00Z&end=2024-01-08T11:00:00Z", nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	var overlapping []model.AvailabilityException
	p.into(resp, &overlapping)
	require.Len(t, overlapping, 1)

	code, _ = p.do(&p.practitioner, http.MethodGet, base+"/overlapping?start=bogus&end=2024-01-08T11:00:00Z", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = p.do(&p.practitioner, http.MethodDelete, "/exceptions/"+exc.ID.String(), nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = p.do(&p.practitioner, http.MethodGet, "/exceptions/"+exc.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestBadPathID(t *testing.T) {
	p := newPractice(t)

	code, resp := p.do(&p.admin, http.MethodGet, "/appointments/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation", resp.Code)
}
