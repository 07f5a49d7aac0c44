package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/service/audit"
	"github.com/jwalitptl/practice-api/internal/service/permission"
	"github.com/jwalitptl/practice-api/pkg/auth"
	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
	"github.com/jwalitptl/practice-api/pkg/httputil"
)

const ContextActor = "actor"

type actorKey struct{}

// WithActor stores the authenticated caller on ctx.
func WithActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the caller stored by WithActor.
func ActorFromContext(ctx context.Context) (model.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(model.Actor)
	return actor, ok
}

// CurrentActor returns the caller set by Authenticate.
func CurrentActor(c *gin.Context) (model.Actor, bool) {
	v, ok := c.Get(ContextActor)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := v.(model.Actor)
	return actor, ok
}

type AuthMiddleware struct {
	validator auth.Validator
	perms     *permission.Service
}

func NewAuthMiddleware(validator auth.Validator, perms *permission.Service) *AuthMiddleware {
	return &AuthMiddleware{validator: validator, perms: perms}
}

// Authenticate verifies the bearer token and sets the actor in context
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized(auth.ErrMissingToken))
			return
		}

		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			httputil.RespondWithError(c, apperrors.Unauthorized(auth.ErrInvalidToken))
			return
		}

		actor, err := m.validator.Validate(strings.TrimSpace(token))
		if err != nil {
			httputil.RespondWithError(c, apperrors.Unauthorized(err))
			return
		}

		ctx := WithActor(c.Request.Context(), *actor)
		ctx = audit.WithRequestMeta(ctx, audit.RequestMeta{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Set(ContextActor, *actor)
		c.Next()
	}
}

// RequirePermission rejects callers whose role lacks code.
func (m *AuthMiddleware) RequirePermission(code model.PermissionCode) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := CurrentActor(c)
		if !ok {
			httputil.RespondWithError(c, apperrors.Unauthorized(auth.ErrMissingToken))
			return
		}
		if err := m.perms.Require(c.Request.Context(), actor, code); err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects every role except admin.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := CurrentActor(c)
		if !ok {
			httputil.RespondWithError(c, apperrors.Unauthorized(auth.ErrMissingToken))
			return
		}
		if !m.perms.IsAdmin(actor.Role) {
			httputil.RespondWithError(c, apperrors.Forbidden("admin role required"))
			return
		}
		c.Next()
	}
}
