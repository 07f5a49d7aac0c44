package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
)

type clientRepository struct {
	BaseRepository
}

func NewClientRepository(base BaseRepository) repository.ClientRepository {
	return &clientRepository{base}
}

func (r *clientRepository) Create(ctx context.Context, c *model.Client) error {
	query := `
		INSERT INTO clients (
			id, practice_id, first_name, last_name, email, phone,
			date_of_birth, medical_notes, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt

	_, err := r.exec(ctx, r.db, "create client", query,
		c.ID, c.PracticeID, c.FirstName, c.LastName, c.Email, c.Phone,
		c.DateOfBirth, c.MedicalNotes, c.CreatedBy, c.CreatedAt,
	)
	return mapError("create client", "client", err)
}

func (r *clientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	query := `
		SELECT id, practice_id, first_name, last_name, email, phone,
			   date_of_birth, medical_notes, created_by, created_at, updated_at
		FROM clients
		WHERE id = $1
	`
	var c model.Client
	if err := r.get(ctx, r.db, "get client", &c, query, id); err != nil {
		return nil, mapError("get client", "client", err)
	}
	return &c, nil
}
