package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository/memory"
	"github.com/jwalitptl/practice-api/internal/service/audit"
	"github.com/jwalitptl/practice-api/internal/service/permission"
	"github.com/jwalitptl/practice-api/pkg/auth"
	"github.com/jwalitptl/practice-api/pkg/httputil"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthMiddleware() *AuthMiddleware {
	repos := memory.NewStore().Repositories()
	perms := permission.NewService(permission.StaticSource(model.DefaultRolePermissions),
		repos.Assignments, nil, audit.NewService(repos.Audit), nil)
	return NewAuthMiddleware(auth.NewValidator(testSecret, "", ""), perms)
}

func token(t *testing.T, actor model.Actor) string {
	t.Helper()
	tok, err := auth.Sign(testSecret, actor, time.Hour)
	require.NoError(t, err)
	return tok
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestAuthenticate(t *testing.T) {
	mw := newAuthMiddleware()
	actor := model.Actor{UserID: uuid.New(), Role: model.RolePractitioner, PracticeID: uuid.New()}

	r := gin.New()
	r.GET("/me", mw.Authenticate(), func(c *gin.Context) {
		fromGin, ok := CurrentActor(c)
		require.True(t, ok)
		fromCtx, ok := ActorFromContext(c.Request.Context())
		require.True(t, ok)
		assert.Equal(t, fromGin, fromCtx)
		c.JSON(http.StatusOK, fromGin)
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "valid token", header: "Bearer " + token(t, actor), status: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + token(t, actor), status: http.StatusOK},
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not-a-jwt", status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Equal(t, "unauthorized", decode(t, rec).Code)
			}
		})
	}
}

func TestAuthenticate_WrongSecret(t *testing.T) {
	mw := newAuthMiddleware()
	tok, err := auth.Sign("other-secret", model.Actor{UserID: uuid.New(), Role: model.RoleAdmin, PracticeID: uuid.New()}, time.Hour)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/", mw.Authenticate(), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequirePermission(t *testing.T) {
	mw := newAuthMiddleware()
	practice := uuid.New()

	r := gin.New()
	r.GET("/settings", mw.Authenticate(), mw.RequirePermission(model.PermManagePracticeSettings),
		func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		role   model.Role
		status int
	}{
		{model.RoleAdmin, http.StatusOK},
		{model.RolePractitioner, http.StatusForbidden},
		{model.RoleAssistant, http.StatusForbidden},
		{model.Role("janitor"), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/settings", nil)
			req.Header.Set("Authorization", "Bearer "+token(t, model.Actor{UserID: uuid.New(), Role: tt.role, PracticeID: practice}))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	mw := newAuthMiddleware()

	r := gin.New()
	r.GET("/", mw.Authenticate(), mw.RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, model.Actor{UserID: uuid.New(), Role: model.RoleStaff, PracticeID: uuid.New()}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decode(t, rec).Code)
}
