package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	UpdateSubscriptionTier(ctx context.Context, id uuid.UUID, tier string) error
	SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
	UpdateProfile(ctx context.Context, id uuid.UUID, name, email string) (*User, error)
	UpdateNotificationPreferences(ctx context.Context, id uuid.UUID, prefs NotificationPreferences) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

const userColumns = `id, email, name, password_hash, subscription_tier,
	COALESCE(stripe_customer_id, ''), created_at, updated_at,
	email_notifications, generation_alerts`

func (r *postgresRepository) scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.Name, &user.PasswordHash,
		&user.SubscriptionTier, &user.StripeCustomerID,
		&user.CreatedAt, &user.UpdatedAt,
		&user.EmailNotifications, &user.GenerationAlerts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func (r *postgresRepository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, name, password_hash, subscription_tier,
			created_at, updated_at, email_notifications, generation_alerts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash,
		user.SubscriptionTier, user.CreatedAt, user.UpdatedAt,
		user.EmailNotifications, user.GenerationAlerts)
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := r.scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("querying user by id: %w", err)
	}
	return user, nil
}

func (r *postgresRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := r.scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("querying user by email: %w", err)
	}
	return user, nil
}

func (r *postgresRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE stripe_customer_id = $1`

	user, err := r.scanUser(r.pool.QueryRow(ctx, query, customerID))
	if err != nil {
		return nil, fmt.Errorf("querying user by stripe customer id: %w", err)
	}
	return user, nil
}

func (r *postgresRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`

	var exists bool
	err := r.pool.QueryRow(ctx, query, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking email existence: %w", err)
	}
	return exists, nil
}

func (r *postgresRepository) UpdateSubscriptionTier(ctx context.Context, id uuid.UUID, tier string) error {
	query := `UPDATE users SET subscription_tier = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, tier)
	if err != nil {
		return fmt.Errorf("updating subscription tier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating subscription tier: user %s not found", id)
	}
	return nil
}

func (r *postgresRepository) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	query := `UPDATE users SET stripe_customer_id = $2, updated_at = NOW() WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, id, customerID)
	if err != nil {
		return fmt.Errorf("setting stripe customer id: %w", err)
	}
	return nil
}

func (r *postgresRepository) UpdateProfile(ctx context.Context, id uuid.UUID, name, email string) (*User, error) {
	query := `
		UPDATE users SET name = $2, email = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := r.scanUser(r.pool.QueryRow(ctx, query, id, name, email))
	if err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("updating profile: user %s not found", id)
	}
	return user, nil
}

func (r *postgresRepository) UpdateNotificationPreferences(ctx context.Context, id uuid.UUID, prefs NotificationPreferences) error {
	query := `
		UPDATE users SET email_notifications = $2, generation_alerts = $3, updated_at = NOW()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, prefs.EmailNotifications, prefs.GenerationAlerts)
	if err != nil {
		return fmt.Errorf("updating notification preferences: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating notification preferences: user %s not found", id)
	}
	return nil
}

// Delete removes the user; generation records go with it via the cascade.
func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM users WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deleting user: user %s not found", id)
	}
	return nil
}
