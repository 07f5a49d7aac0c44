package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// OutboxMaxRetries is how many failed deliveries an event gets before it is
// parked as FAILED.
const OutboxMaxRetries = 5

const (
	EventAssignmentReplaced   = "assignment.replaced"
	EventAppointmentCreated   = "appointment.created"
	EventAppointmentMoved     = "appointment.rescheduled"
	EventAppointmentCancelled = "appointment.cancelled"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	PracticeID   uuid.UUID       `db:"practice_id" json:"practice_id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}

// AppointmentEvent is the payload of appointment.* events.
type AppointmentEvent struct {
	AppointmentID  uuid.UUID         `json:"appointment_id"`
	PracticeID     uuid.UUID         `json:"practice_id"`
	PractitionerID uuid.UUID         `json:"practitioner_id"`
	ClientID       uuid.UUID         `json:"client_id"`
	StartTime      time.Time         `json:"start_time"`
	EndTime        time.Time         `json:"end_time"`
	Status         AppointmentStatus `json:"status"`
	ActorID        uuid.UUID         `json:"actor_id"`
}

// AssignmentEvent is the payload of assignment.replaced events.
type AssignmentEvent struct {
	AssistantID     uuid.UUID   `json:"assistant_id"`
	PracticeID      uuid.UUID   `json:"practice_id"`
	PractitionerIDs []uuid.UUID `json:"practitioner_ids"`
	ActorID         uuid.UUID   `json:"actor_id"`
}
