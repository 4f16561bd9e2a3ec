package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/vitalwarrior/internal/domain"
)

// ProfileRepository persists student profiles.
type ProfileRepository interface {
	Upsert(ctx context.Context, profile domain.Profile) error
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
}

type profileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository returns a Postgres-backed implementation.
func NewProfileRepository(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepository{pool: pool}
}

func (r *profileRepository) Upsert(ctx context.Context, p domain.Profile) error {
	const query = `
        INSERT INTO profiles (id, email, first_name, last_name, student_id, full_name)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (id) DO UPDATE SET
            email=EXCLUDED.email,
            first_name=EXCLUDED.first_name,
            last_name=EXCLUDED.last_name,
            student_id=EXCLUDED.student_id,
            full_name=EXCLUDED.full_name,
            updated_at=NOW()`

	_, err := r.pool.Exec(ctx, query, p.ID, p.Email, p.FirstName, p.LastName, p.StudentID, p.FullName)
	return err
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	const query = `
        SELECT id, email, first_name, last_name, student_id, full_name
        FROM profiles WHERE id=$1`

	var p domain.Profile
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Email,
		&p.FirstName,
		&p.LastName,
		&p.StudentID,
		&p.FullName,
	); err != nil {
		return nil, err
	}
	return &p, nil
}
