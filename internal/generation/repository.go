package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists usage records in PostgreSQL.
type Repository interface {
	Insert(ctx context.Context, rec *UsageRecord) error
	CountForMonth(ctx context.Context, userID uuid.UUID, month, year int) (int, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]UsageRecord, error)
	ListAll(ctx context.Context, userID uuid.UUID) ([]UsageRecord, error)
	FindByAudioID(ctx context.Context, userID, audioID uuid.UUID) (*UsageRecord, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Insert(ctx context.Context, rec *UsageRecord) error {
	query := `
		INSERT INTO audio_generations (id, user_id, file_name, audio_id, summary, month, year, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.UserID, rec.FileName, rec.AudioID,
		rec.Summary, rec.Month, rec.Year, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting usage record: %w", err)
	}
	return nil
}

func (r *postgresRepository) CountForMonth(ctx context.Context, userID uuid.UUID, month, year int) (int, error) {
	query := `
		SELECT COUNT(*) FROM audio_generations
		WHERE user_id = $1 AND month = $2 AND year = $3`

	var count int
	err := r.pool.QueryRow(ctx, query, userID, month, year).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting monthly usage: %w", err)
	}
	return count, nil
}

func (r *postgresRepository) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]UsageRecord, error) {
	query := `
		SELECT id, user_id, file_name, audio_id, summary, month, year, created_at
		FROM audio_generations
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing usage records: %w", err)
	}
	defer rows.Close()

	var records []UsageRecord
	for rows.Next() {
		var rec UsageRecord
		err := rows.Scan(&rec.ID, &rec.UserID, &rec.FileName, &rec.AudioID,
			&rec.Summary, &rec.Month, &rec.Year, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning usage record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating usage records: %w", err)
	}
	return records, nil
}

// ListAll returns every record for the user, newest first. Used by the
// account data export.
func (r *postgresRepository) ListAll(ctx context.Context, userID uuid.UUID) ([]UsageRecord, error) {
	query := `
		SELECT id, user_id, file_name, audio_id, summary, month, year, created_at
		FROM audio_generations
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing usage records: %w", err)
	}
	defer rows.Close()

	var records []UsageRecord
	for rows.Next() {
		var rec UsageRecord
		err := rows.Scan(&rec.ID, &rec.UserID, &rec.FileName, &rec.AudioID,
			&rec.Summary, &rec.Month, &rec.Year, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning usage record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating usage records: %w", err)
	}
	return records, nil
}

func (r *postgresRepository) FindByAudioID(ctx context.Context, userID, audioID uuid.UUID) (*UsageRecord, error) {
	query := `
		SELECT id, user_id, file_name, audio_id, summary, month, year, created_at
		FROM audio_generations
		WHERE user_id = $1 AND audio_id = $2`

	var rec UsageRecord
	err := r.pool.QueryRow(ctx, query, userID, audioID).Scan(
		&rec.ID, &rec.UserID, &rec.FileName, &rec.AudioID,
		&rec.Summary, &rec.Month, &rec.Year, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying usage record by audio id: %w", err)
	}
	return &rec, nil
}
