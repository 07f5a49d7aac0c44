package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	UserID     uuid.UUID       `json:"user_id" db:"user_id"`
	PracticeID uuid.UUID       `json:"practice_id" db:"practice_id"`
	Action     string          `json:"action" db:"action"`
	EntityType string          `json:"entity_type" db:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id" db:"entity_id"`
	Changes    json.RawMessage `json:"changes" db:"changes"`
	IPAddress  string          `json:"ip_address" db:"ip_address"`
	UserAgent  string          `json:"user_agent" db:"user_agent"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

const (
	// Action types
	AuditActionCreate  = "create"
	AuditActionUpdate  = "update"
	AuditActionDelete  = "delete"
	AuditActionReplace = "replace"
	AuditActionCancel  = "cancel"
	AuditActionGrant   = "grant"
	AuditActionRevoke  = "revoke"

	// Entity types
	AuditEntityAssignment   = "practitioner_assignment"
	AuditEntityAvailability = "availability_slot"
	AuditEntityException    = "availability_exception"
	AuditEntityAppointment  = "appointment"
	AuditEntityClient       = "client"
	AuditEntitySessionNote  = "session_note"
	AuditEntityPermission   = "role_permission"
)
