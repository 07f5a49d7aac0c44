package permission

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/practice-api/internal/handler"
	"github.com/jwalitptl/practice-api/internal/middleware"
	"github.com/jwalitptl/practice-api/internal/model"
	permissionService "github.com/jwalitptl/practice-api/internal/service/permission"
	"github.com/jwalitptl/practice-api/pkg/httputil"
)

type Handler struct {
	service *permissionService.Service
	auth    *middleware.AuthMiddleware
}

func NewHandler(service *permissionService.Service, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{service: service, auth: auth}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/me/permissions", h.MyPermissions)
	r.GET("/practitioners/:id/access", h.PractitionerAccess)

	roles := r.Group("/permissions/roles", h.auth.RequirePermission(model.PermManagePracticeSettings))
	{
		roles.GET("", h.ListMappings)
		roles.PUT("/:role/:permission", h.Grant)
		roles.DELETE("/:role/:permission", h.Revoke)
	}
}

type myPermissionsResponse struct {
	UserID      string              `json:"user_id"`
	Role        model.Role          `json:"role"`
	Permissions model.PermissionSet `json:"permissions"`
}

func (h *Handler) MyPermissions(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	set, err := h.service.PermissionsFor(c.Request.Context(), actor.Role)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, myPermissionsResponse{
		UserID:      actor.UserID.String(),
		Role:        actor.Role,
		Permissions: set,
	})
}

func (h *Handler) PractitionerAccess(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	practitionerID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	allowed, err := h.service.CanAccessPractitionerData(c.Request.Context(), actor, practitionerID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"allowed": allowed})
}

func (h *Handler) ListMappings(c *gin.Context) {
	mapping, err := h.service.Mapping(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, mapping)
}

func (h *Handler) Grant(c *gin.Context) {
	h.edit(c, h.service.Grant)
}

func (h *Handler) Revoke(c *gin.Context) {
	h.edit(c, h.service.Revoke)
}

type editFunc func(ctx context.Context, actor model.Actor, role model.Role, code model.PermissionCode) error

func (h *Handler) edit(c *gin.Context, apply editFunc) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	role := model.Role(c.Param("role"))
	code := model.PermissionCode(c.Param("permission"))
	if err := apply(c.Request.Context(), actor, role, code); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	set, err := h.service.PermissionsFor(c.Request.Context(), role)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"role": role, "permissions": set})
}
