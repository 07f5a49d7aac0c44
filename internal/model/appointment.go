package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusConfirmed, AppointmentStatusCompleted,
		AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether no further status change is allowed.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentStatusCompleted || s == AppointmentStatusCancelled || s == AppointmentStatusNoShow
}

type Appointment struct {
	Base
	PracticeID      uuid.UUID         `db:"practice_id" json:"practice_id"`
	ClientID        uuid.UUID         `db:"client_id" json:"client_id"`
	PractitionerID  uuid.UUID         `db:"practitioner_id" json:"practitioner_id"`
	AppointmentType string            `db:"appointment_type" json:"appointment_type"`
	StartTime       time.Time         `db:"start_time" json:"start_time"`
	EndTime         time.Time         `db:"end_time" json:"end_time"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Notes           string            `db:"notes" json:"notes,omitempty"`
	CancelReason    *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedBy       uuid.UUID         `db:"created_by" json:"created_by"`
}

type CreateAppointmentRequest struct {
	ClientID        uuid.UUID  `json:"client_id" binding:"required"`
	PractitionerID  *uuid.UUID `json:"practitioner_id"`
	AppointmentType string     `json:"appointment_type" binding:"required,max=64"`
	StartTime       time.Time  `json:"start_time" binding:"required"`
	EndTime         time.Time  `json:"end_time" binding:"required,gtfield=StartTime"`
	Notes           string     `json:"notes" binding:"max=1000"`
}

type RescheduleAppointmentRequest struct {
	StartTime time.Time `json:"start_time" binding:"required"`
	EndTime   time.Time `json:"end_time" binding:"required,gtfield=StartTime"`
}

type UpdateAppointmentRequest struct {
	StartTime    *time.Time         `json:"start_time"`
	EndTime      *time.Time         `json:"end_time"`
	Status       *AppointmentStatus `json:"status" binding:"omitempty,appointment_status"`
	Notes        *string            `json:"notes" binding:"omitempty,max=1000"`
	CancelReason *string            `json:"cancel_reason" binding:"omitempty,max=500"`
}

type AppointmentFilters struct {
	PracticeID      uuid.UUID
	PractitionerIDs []uuid.UUID
	ClientID        uuid.UUID
	Status          AppointmentStatus
	StartDate       time.Time
	EndDate         time.Time
	Pagination
}

// BookingRequest is a candidate appointment interval to check.
type BookingRequest struct {
	PractitionerID       uuid.UUID  `json:"practitioner_id"`
	AppointmentType      string     `json:"appointment_type"`
	Start                time.Time  `json:"start"`
	End                  time.Time  `json:"end"`
	ExcludeAppointmentID *uuid.UUID `json:"exclude_appointment_id,omitempty"`
}

// BookabilityReason explains a bookability decision.
type BookabilityReason string

const (
	ReasonOK                   BookabilityReason = "ok"
	ReasonInvalidInterval      BookabilityReason = "invalid_interval"
	ReasonCrossesDayBoundary   BookabilityReason = "crosses_day_boundary"
	ReasonNoSlot               BookabilityReason = "no_slot"
	ReasonTimeOff              BookabilityReason = "time_off"
	ReasonTypeNotAllowed       BookabilityReason = "type_not_allowed"
	ReasonOutsideModifiedHours BookabilityReason = "outside_modified_hours"
	ReasonOutsideSlot          BookabilityReason = "outside_slot"
	ReasonConflict             BookabilityReason = "conflict"
)

// Bookability is the outcome of a bookability check.
type Bookability struct {
	Bookable  bool              `json:"bookable"`
	Reason    BookabilityReason `json:"reason"`
	Conflicts []uuid.UUID       `json:"conflicts,omitempty"`
}
