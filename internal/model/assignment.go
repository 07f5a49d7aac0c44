package model

import (
	"time"

	"github.com/google/uuid"
)

// PractitionerAssignment lets one assistant act for one practitioner within
// a practice.
type PractitionerAssignment struct {
	ID             uuid.UUID `db:"id" json:"id"`
	AssistantID    uuid.UUID `db:"assistant_id" json:"assistant_id"`
	PractitionerID uuid.UUID `db:"practitioner_id" json:"practitioner_id"`
	PracticeID     uuid.UUID `db:"practice_id" json:"practice_id"`
	CreatedBy      uuid.UUID `db:"created_by" json:"created_by"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

type ReplaceAssignmentsRequest struct {
	PractitionerIDs []uuid.UUID `json:"practitioner_ids" binding:"omitempty,dive,required"`
}

type CreateAssignmentRequest struct {
	PractitionerID uuid.UUID `json:"practitioner_id" binding:"required"`
}
