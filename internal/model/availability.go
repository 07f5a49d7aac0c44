package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Weekday numbers days 0=Sunday through 6=Saturday. Slot storage and
// exception evaluation both go through WeekdayOf so the convention lives in
// one place.
type Weekday int

const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

func (d Weekday) Valid() bool { return d >= Sunday && d <= Saturday }

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return time.Weekday(d).String()
}

// WeekdayOf returns the weekday of t in t's location.
func WeekdayOf(t time.Time) Weekday {
	return Weekday(t.Weekday())
}

// TimeOfDay is a wall clock time stored as minutes since midnight. It is
// written as "HH:MM" in JSON and as a Postgres time value in SQL.
type TimeOfDay int

const minutesPerDay = 24 * 60

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay(t.Hour()*60 + t.Minute()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", s)
}

// MustTimeOfDay is ParseTimeOfDay for constants.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// TimeOfDayOf returns the wall clock time of t in t's location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) Valid() bool { return t >= 0 && t < minutesPerDay }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// On returns the instant at this wall clock time on the calendar date of day.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, int(t)/60, int(t)%60, 0, 0, day.Location())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String() + ":00", nil
}

func (t *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return t.scanString(string(v))
	case string:
		return t.scanString(v)
	case time.Time:
		*t = TimeOfDayOf(v)
		return nil
	case nil:
		*t = 0
		return nil
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", src)
	}
}

func (t *TimeOfDay) scanString(s string) error {
	// time columns may carry fractional seconds
	if len(s) > 8 {
		s = s[:8]
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// AvailabilitySlot declares recurring weekly working hours for one
// appointment type.
type AvailabilitySlot struct {
	ID              uuid.UUID `db:"id" json:"id"`
	PractitionerID  uuid.UUID `db:"practitioner_id" json:"practitioner_id"`
	PracticeID      uuid.UUID `db:"practice_id" json:"practice_id"`
	DayOfWeek       Weekday   `db:"day_of_week" json:"day_of_week"`
	AppointmentType string    `db:"appointment_type" json:"appointment_type"`
	StartTime       TimeOfDay `db:"start_time" json:"start_time"`
	EndTime         TimeOfDay `db:"end_time" json:"end_time"`
	IsActive        bool      `db:"is_active" json:"is_active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Contains reports whether [start, end) on start's date lies within the slot.
func (s *AvailabilitySlot) Contains(start, end time.Time) bool {
	return !start.Before(s.StartTime.On(start)) && !end.After(s.EndTime.On(start))
}

type SlotInput struct {
	DayOfWeek       Weekday   `json:"day_of_week" binding:"weekday"`
	AppointmentType string    `json:"appointment_type" binding:"required,max=64"`
	StartTime       TimeOfDay `json:"start_time" binding:"hhmm"`
	EndTime         TimeOfDay `json:"end_time" binding:"hhmm,gtfield=StartTime"`
	IsActive        *bool     `json:"is_active"`
}

type UpsertSlotsRequest struct {
	Slots []SlotInput `json:"slots" binding:"required,dive"`
}

// ExceptionType selects how an exception overrides the recurring schedule.
type ExceptionType string

const (
	ExceptionTimeOff       ExceptionType = "time_off"
	ExceptionModifiedHours ExceptionType = "modified_hours"
	ExceptionTypeOnly      ExceptionType = "type_only"
)

func (e ExceptionType) Valid() bool {
	switch e {
	case ExceptionTimeOff, ExceptionModifiedHours, ExceptionTypeOnly:
		return true
	}
	return false
}

// AvailabilityException overrides the recurring schedule for a date range.
type AvailabilityException struct {
	ID                      uuid.UUID      `db:"id" json:"id"`
	PractitionerID          uuid.UUID      `db:"practitioner_id" json:"practitioner_id"`
	PracticeID              uuid.UUID      `db:"practice_id" json:"practice_id"`
	ExceptionType           ExceptionType  `db:"exception_type" json:"exception_type"`
	StartDatetime           time.Time      `db:"start_datetime" json:"start_datetime"`
	EndDatetime             time.Time      `db:"end_datetime" json:"end_datetime"`
	ModifiedStartTime       *TimeOfDay     `db:"modified_start_time" json:"modified_start_time,omitempty"`
	ModifiedEndTime         *TimeOfDay     `db:"modified_end_time" json:"modified_end_time,omitempty"`
	AllowedAppointmentTypes pq.StringArray `db:"allowed_appointment_types" json:"allowed_appointment_types,omitempty"`
	Description             string         `db:"description" json:"description"`
	IsActive                bool           `db:"is_active" json:"is_active"`
	CreatedAt               time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time      `db:"updated_at" json:"updated_at"`
}

// Allows reports whether a type_only exception permits appointmentType.
func (e *AvailabilityException) Allows(appointmentType string) bool {
	for _, t := range e.AllowedAppointmentTypes {
		if t == appointmentType {
			return true
		}
	}
	return false
}

type ExceptionInput struct {
	ExceptionType           ExceptionType `json:"exception_type" binding:"required,exception_type"`
	StartDatetime           time.Time     `json:"start_datetime" binding:"required"`
	EndDatetime             time.Time     `json:"end_datetime" binding:"required,gtefield=StartDatetime"`
	ModifiedStartTime       *TimeOfDay    `json:"modified_start_time" binding:"omitempty,hhmm"`
	ModifiedEndTime         *TimeOfDay    `json:"modified_end_time" binding:"omitempty,hhmm"`
	AllowedAppointmentTypes []string      `json:"allowed_appointment_types"`
	Description             string        `json:"description" binding:"max=500"`
	IsActive                *bool         `json:"is_active"`
}
