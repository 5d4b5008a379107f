package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/briefmatch/backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, name, COALESCE(bio, ''), role, skills, created_at, updated_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Email, &u.Name, &u.Bio, &u.Role, &u.Skills, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListFreelancers returns every user with the freelancer role. The matching
// engine scores all of them; there is no pre-filtering beyond role.
func (r *UserRepo) ListFreelancers(ctx context.Context) ([]*models.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, email, name, COALESCE(bio, ''), role, skills, created_at, updated_at
		FROM users WHERE role = $1 ORDER BY created_at DESC
	`, models.RoleFreelancer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Bio, &u.Role, &u.Skills, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &u)
	}
	return list, rows.Err()
}

func (r *UserRepo) UpdateSkills(ctx context.Context, id uuid.UUID, skills []string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET skills = $2, updated_at = now() WHERE id = $1
	`, id, skills)
	return err
}
