package model

import (
	"github.com/google/uuid"
)

// User represents a practice account as stored in the profiles relation.
type User struct {
	Base
	PracticeID uuid.UUID `json:"practice_id" db:"practice_id"`
	Email      string    `json:"email" db:"email"`
	FullName   string    `json:"full_name" db:"full_name"`
	Role       Role      `json:"role" db:"role"`
	IsActive   bool      `json:"is_active" db:"is_active"`
}
