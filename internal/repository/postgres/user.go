package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
)

const userColumns = `id, practice_id, email, full_name, role, is_active, created_at, updated_at`

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM profiles WHERE id = $1`

	var user model.User
	if err := r.get(ctx, r.db, "get user", &user, query, id); err != nil {
		return nil, mapError("get user", "user", err)
	}
	return &user, nil
}

// GetMany returns the profiles that exist among ids; missing ids are skipped.
func (r *userRepository) GetMany(ctx context.Context, ids []uuid.UUID) ([]*model.User, error) {
	if len(ids) == 0 {
		return []*model.User{}, nil
	}
	query := `SELECT ` + userColumns + ` FROM profiles WHERE id = ANY($1::uuid[]) ORDER BY full_name`

	users := []*model.User{}
	if err := r.selectAll(ctx, r.db, "list users", &users, query, uuidArray(ids)); err != nil {
		return nil, mapError("list users", "user", err)
	}
	return users, nil
}

func uuidArray(ids []uuid.UUID) pq.StringArray {
	out := make(pq.StringArray, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
