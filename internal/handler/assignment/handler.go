package assignment

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/practice-api/internal/handler"
	"github.com/jwalitptl/practice-api/internal/model"
	assignmentService "github.com/jwalitptl/practice-api/internal/service/assignment"
	"github.com/jwalitptl/practice-api/pkg/httputil"
)

type Handler struct {
	service *assignmentService.Service
}

func NewHandler(service *assignmentService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	assistants := r.Group("/assistants/:id/assignments")
	{
		assistants.GET("", h.List)
		assistants.PUT("", h.Replace)
		assistants.POST("", h.Assign)
		assistants.DELETE("", h.DeleteAll)
		assistants.DELETE("/:practitionerId", h.Unassign)
	}
	r.DELETE("/assignments/:id", h.Delete)
}

func (h *Handler) List(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	assistantID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	assignments, err := h.service.ListForActor(c.Request.Context(), actor, assistantID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, assignments)
}

// Replace sets the assistant's assignments to exactly the given
// practitioners. An empty list clears them.
func (h *Handler) Replace(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	assistantID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.ReplaceAssignmentsRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	assignments, err := h.service.ReplaceAssignments(c.Request.Context(), actor, assistantID, req.PractitionerIDs)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, assignments)
}

func (h *Handler) Assign(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	assistantID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.CreateAssignmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	assignment, err := h.service.Assign(c.Request.Context(), actor, assistantID, req.PractitionerID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, assignment)
}

func (h *Handler) DeleteAll(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	assistantID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteByAssistant(c.Request.Context(), actor, assistantID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, nil)
}

func (h *Handler) Unassign(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	assistantID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	practitionerID, ok := handler.ParamID(c, "practitionerId")
	if !ok {
		return
	}

	if err := h.service.Unassign(c.Request.Context(), actor, assistantID, practitionerID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, nil)
}

func (h *Handler) Delete(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteByID(c.Request.Context(), actor, id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, nil)
}
