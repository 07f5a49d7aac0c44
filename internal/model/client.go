package model

import (
	"time"

	"github.com/google/uuid"
)

type Client struct {
	Base
	PracticeID   uuid.UUID  `db:"practice_id" json:"practice_id"`
	FirstName    string     `db:"first_name" json:"first_name"`
	LastName     string     `db:"last_name" json:"last_name"`
	Email        *string    `db:"email" json:"email,omitempty"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	DateOfBirth  *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	MedicalNotes *string    `db:"medical_notes" json:"medical_notes,omitempty"`
	CreatedBy    uuid.UUID  `db:"created_by" json:"created_by"`
}

type CreateClientRequest struct {
	FirstName    string     `json:"first_name" binding:"required,max=100"`
	LastName     string     `json:"last_name" binding:"required,max=100"`
	Email        *string    `json:"email" binding:"omitempty,email"`
	Phone        *string    `json:"phone" binding:"omitempty,max=32"`
	DateOfBirth  *time.Time `json:"date_of_birth"`
	MedicalNotes *string    `json:"medical_notes" binding:"omitempty,max=5000"`
}

type SessionNote struct {
	Base
	PracticeID     uuid.UUID `db:"practice_id" json:"practice_id"`
	AppointmentID  uuid.UUID `db:"appointment_id" json:"appointment_id"`
	ClientID       uuid.UUID `db:"client_id" json:"client_id"`
	PractitionerID uuid.UUID `db:"practitioner_id" json:"practitioner_id"`
	Content        string    `db:"content" json:"content"`
	CreatedBy      uuid.UUID `db:"created_by" json:"created_by"`
}

type CreateSessionNoteRequest struct {
	Content string `json:"content" binding:"required,max=20000"`
}
