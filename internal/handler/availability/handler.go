package availability

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/practice-api/internal/handler"
	"github.com/jwalitptl/practice-api/internal/model"
	availabilityService "github.com/jwalitptl/practice-api/internal/service/availability"
	"github.com/jwalitptl/practice-api/pkg/httputil"
)

type Handler struct {
	service *availabilityService.Service
}

func NewHandler(service *availabilityService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	practitioners := r.Group("/practitioners/:id")
	{
		practitioners.GET("/availability", h.ListSlots)
		practitioners.PUT("/availability", h.UpsertSlots)
		practitioners.DELETE("/availability", h.ResetSlots)

		practitioners.GET("/exceptions", h.ListExceptions)
		practitioners.GET("/exceptions/overlapping", h.OverlappingExceptions)
		practitioners.POST("/exceptions", h.CreateException)

		practitioners.GET("/bookable", h.CheckBookable)
	}

	r.DELETE("/availability/:id", h.DeactivateSlot)

	exceptions := r.Group("/exceptions")
	{
		exceptions.GET("/:id", h.GetException)
		exceptions.PUT("/:id", h.UpdateException)
		exceptions.DELETE("/:id", h.DeleteException)
	}
}

func (h *Handler) ListSlots(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	practitionerID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	slots, err := h.service.SlotsFor(c.Request.Context(), actor, practitionerID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, slots)
}

func (h *Handler) UpsertSlots(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	practitionerID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpsertSlotsRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	slots, err := h.service.UpsertSlots(c.Request.Context(), actor, practitionerID, req.Slots)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, slots)
}

func (h *Handler) ResetSlots(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	practitionerID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.ResetSlots(c.Request.Context(), actor, practitionerID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, nil)
}

func (h *Handler) DeactivateSlot(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	slotID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeactivateSlot(c.Request.Context(), actor, slotID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, nil)
}

func (h *Handler) ListExceptions(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	practitionerID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	activeOnly := false
	if raw := c.Query("active_only"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			httputil.BadRequest(c, "invalid active_only", err)
			return
		}
		activeOnly = v
	}

	exceptions, err := h.service.ExceptionsFor(c.Request.Context(), actor, practitionerID, activeOnly)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, exceptions)
}

func (h *Handler) OverlappingExceptions(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	practitionerID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	start, ok := handler.QueryTime(c, "start", true)
	if !ok {
		return
	}
	end, ok := handler.QueryTime(c, "end", true)
	if !ok {
		return
	}

	exceptions, err := h.service.Overlapping(c.Request.Context(), actor, practitionerID, start, end)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, exceptions)
}

func (h *Handler) CreateException(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	practitionerID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.ExceptionInput
	if !handler.BindJSON(c, &req) {
		return
	}

	exception, err := h.service.CreateException(c.Request.Context(), actor, practitionerID, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, exception)
}

func (h *Handler) GetException(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	exception, err := h.service.GetException(c.Request.Context(), actor, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, exception)
}

func (h *Handler) UpdateException(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.ExceptionInput
	if !handler.BindJSON(c, &req) {
		return
	}

	exception, err := h.service.UpdateException(c.Request.Context(), actor, id, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, exception)
}

func (h *Handler) DeleteException(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteException(c.Request.Context(), actor, id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, nil)
}

// CheckBookable answers whether type/start/end could be booked with the
// practitioner. exclude skips one existing appointment, as when moving it.
func (h *Handler) CheckBookable(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	practitionerID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	start, ok := handler.QueryTime(c, "start", true)
	if !ok {
		return
	}
	end, ok := handler.QueryTime(c, "end", true)
	if !ok {
		return
	}

	req := model.BookingRequest{
		PractitionerID:  practitionerID,
		AppointmentType: c.Query("type"),
		Start:           start,
		End:             end,
	}
	if raw := c.Query("exclude"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.BadRequest(c, "invalid exclude", err)
			return
		}
		req.ExcludeAppointmentID = &id
	}

	result, err := h.service.CheckBookable(c.Request.Context(), actor, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, result)
}
