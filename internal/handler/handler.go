// Package handler holds the helpers shared by the HTTP handlers.
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/practice-api/internal/middleware"
	"github.com/jwalitptl/practice-api/internal/model"
	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
	"github.com/jwalitptl/practice-api/pkg/httputil"
)

// RouteRegistrar is implemented by every area handler.
type RouteRegistrar interface {
	RegisterRoutes(*gin.RouterGroup)
}

// Actor returns the authenticated caller. It writes a 401 and returns
// false when the route was mounted without authentication.
func Actor(c *gin.Context) (model.Actor, bool) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return model.Actor{}, false
	}
	return actor, true
}

// ParamID parses a uuid path parameter, writing a 400 on failure.
func ParamID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httputil.BadRequest(c, "invalid "+name, err)
		return uuid.Nil, false
	}
	return id, true
}

// QueryTime parses an RFC 3339 query parameter. A missing value is an
// error when required is set.
func QueryTime(c *gin.Context, name string, required bool) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		if required {
			httputil.BadRequest(c, name+" is required", nil)
			return time.Time{}, false
		}
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		httputil.BadRequest(c, "invalid "+name+", expected RFC 3339", err)
		return time.Time{}, false
	}
	return t, true
}

// BindJSON binds the request body and reports binding failures per field.
func BindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, httputil.Response{
			Status:  "error",
			Code:    string(apperrors.KindValidation),
			Message: "invalid request body",
			Data:    middleware.FieldErrors(err),
		})
		return false
	}
	return true
}
