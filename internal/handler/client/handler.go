package client

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/practice-api/internal/handler"
	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/service/session"
	"github.com/jwalitptl/practice-api/pkg/httputil"
)

type Handler struct {
	service *session.Service
}

func NewHandler(service *session.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	clients := r.Group("/clients")
	{
		clients.POST("", h.CreateClient)
		clients.GET("/:id", h.GetClient)
	}

	notes := r.Group("/appointments/:id/notes")
	{
		notes.GET("", h.ListNotes)
		notes.POST("", h.CreateNote)
	}
}

func (h *Handler) CreateClient(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	var req model.CreateClientRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	client, err := h.service.CreateClient(c.Request.Context(), actor, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, client)
}

// GetClient returns the client record. Medical notes are omitted unless
// the caller may view medical data.
func (h *Handler) GetClient(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	client, err := h.service.GetClient(c.Request.Context(), actor, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, client)
}

func (h *Handler) ListNotes(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	appointmentID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	notes, err := h.service.ListNotes(c.Request.Context(), actor, appointmentID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, notes)
}

func (h *Handler) CreateNote(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	appointmentID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.CreateSessionNoteRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	note, err := h.service.CreateNote(c.Request.Context(), actor, appointmentID, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, note)
}
