package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/vitalwarrior/internal/domain"
)

// HealthRecordRepository persists scan results.
type HealthRecordRepository interface {
	Insert(ctx context.Context, record domain.HealthRecord) error
}

type healthRecordRepository struct {
	pool *pgxpool.Pool
}

// NewHealthRecordRepository returns a Postgres-backed implementation.
func NewHealthRecordRepository(pool *pgxpool.Pool) HealthRecordRepository {
	return &healthRecordRepository{pool: pool}
}

func (r *healthRecordRepository) Insert(ctx context.Context, rec domain.HealthRecord) error {
	const query = `
        INSERT INTO health_records (user_id, student_id, temperature, symptoms, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		rec.UserID,
		rec.StudentID,
		rec.Temperature,
		rec.Symptoms,
		rec.Status,
		rec.CreatedAt,
	)
	return err
}
