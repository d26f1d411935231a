package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ErrEmailTaken is returned when a profile update targets an email that
// already belongs to another account.
var ErrEmailTaken = errors.New("email already in use")

// Create inserts a new starter-tier user. The password must already be hashed.
func (s *Service) Create(ctx context.Context, email, name, passwordHash string) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		ID:               uuid.New(),
		Email:            normalizeEmail(email),
		Name:             strings.TrimSpace(name),
		PasswordHash:     passwordHash,
		SubscriptionTier: TierStarter,
		CreatedAt:        now,
		UpdatedAt:        now,

		EmailNotifications: true,
		GenerationAlerts:   true,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.repo.ExistsByEmail(ctx, normalizeEmail(email))
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, normalizeEmail(email))
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByStripeCustomerID(ctx context.Context, customerID string) (*User, error) {
	return s.repo.GetByStripeCustomerID(ctx, customerID)
}

func (s *Service) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	return s.repo.SetStripeCustomerID(ctx, id, customerID)
}

func (s *Service) ChangeSubscriptionTier(ctx context.Context, id uuid.UUID, tier string) error {
	if tier != TierStarter && tier != TierPro {
		return fmt.Errorf("unknown subscription tier %q", tier)
	}
	return s.repo.UpdateSubscriptionTier(ctx, id, tier)
}

// UpdateProfile changes the user's name and, when it differs from the
// current one, the email. A blank name or email keeps the stored value.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, name, email string) (*User, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("user %s not found", id)
	}

	newName := current.Name
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		newName = trimmed
	}

	newEmail := current.Email
	if normalized := normalizeEmail(email); normalized != "" && normalized != current.Email {
		taken, err := s.repo.ExistsByEmail(ctx, normalized)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrEmailTaken
		}
		newEmail = normalized
	}

	return s.repo.UpdateProfile(ctx, id, newName, newEmail)
}

func (s *Service) UpdateNotificationPreferences(ctx context.Context, id uuid.UUID, prefs NotificationPreferences) error {
	return s.repo.UpdateNotificationPreferences(ctx, id, prefs)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
