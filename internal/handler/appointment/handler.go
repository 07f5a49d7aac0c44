package appointment

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/practice-api/internal/handler"
	"github.com/jwalitptl/practice-api/internal/model"
	appointmentService "github.com/jwalitptl/practice-api/internal/service/appointment"
	"github.com/jwalitptl/practice-api/pkg/httputil"
)

type Handler struct {
	service *appointmentService.Service
}

func NewHandler(service *appointmentService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.CreateAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PATCH("/:id", h.UpdateAppointment)
		appointments.POST("/:id/reschedule", h.RescheduleAppointment)
		appointments.DELETE("/:id", h.CancelAppointment)
	}
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	var req model.CreateAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	appointment, err := h.service.CreateAppointment(c.Request.Context(), actor, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, appointment)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	appointment, err := h.service.GetAppointment(c.Request.Context(), actor, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointment)
}

type listQuery struct {
	PractitionerIDs []string  `form:"practitioner_id"`
	ClientID        string    `form:"client_id" binding:"omitempty,uuid"`
	Status          string    `form:"status" binding:"omitempty,appointment_status"`
	StartDate       time.Time `form:"start_date" time_format:"2006-01-02T15:04:05Z07:00"`
	EndDate         time.Time `form:"end_date" time_format:"2006-01-02T15:04:05Z07:00"`
	Page            int       `form:"page" binding:"omitempty,min=1"`
	PageSize        int       `form:"page_size" binding:"omitempty,min=1,max=200"`
}

func (q listQuery) filters() (model.AppointmentFilters, error) {
	f := model.AppointmentFilters{
		Status:     model.AppointmentStatus(q.Status),
		StartDate:  q.StartDate,
		EndDate:    q.EndDate,
		Pagination: model.Pagination{Page: q.Page, PageSize: q.PageSize},
	}
	if q.ClientID != "" {
		f.ClientID = uuid.MustParse(q.ClientID)
	}
	for _, raw := range q.PractitionerIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return f, err
		}
		f.PractitionerIDs = append(f.PractitionerIDs, id)
	}
	return f, nil
}

// ListAppointments returns the appointments visible to the caller.
// practitioner_id may repeat; it narrows, never widens, the caller's scope.
func (h *Handler) ListAppointments(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httputil.BadRequest(c, "invalid query parameters", err)
		return
	}
	filters, err := q.filters()
	if err != nil {
		httputil.BadRequest(c, "invalid practitioner_id", err)
		return
	}

	appointments, err := h.service.ListAppointments(c.Request.Context(), actor, filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointments)
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	appointment, err := h.service.UpdateAppointment(c.Request.Context(), actor, id, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointment)
}

func (h *Handler) RescheduleAppointment(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.RescheduleAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	appointment, err := h.service.Reschedule(c.Request.Context(), actor, id, req.StartTime, req.EndTime)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointment)
}

// CancelAppointment cancels rather than deletes; the row is kept.
func (h *Handler) CancelAppointment(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	appointment, err := h.service.CancelAppointment(c.Request.Context(), actor, id, c.Query("reason"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointment)
}
