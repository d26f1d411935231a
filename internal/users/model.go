package users

import (
	"time"

	"github.com/google/uuid"
)

// Subscription tiers. Starter is the free tier with a monthly generation
// cap; pro removes the cap and unlocks speed control and folders.
const (
	TierStarter = "starter"
	TierPro     = "pro"
)

type User struct {
	ID               uuid.UUID `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name,omitempty"`
	PasswordHash     string    `json:"-"`
	SubscriptionTier string    `json:"subscription_tier"`
	StripeCustomerID string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	EmailNotifications bool `json:"email_notifications"`
	GenerationAlerts   bool `json:"generation_alerts"`
}

// NotificationPreferences is the user's opt-in/out state for email.
type NotificationPreferences struct {
	EmailNotifications bool `json:"email_notifications"`
	GenerationAlerts   bool `json:"generation_alerts"`
}

// IsPro reports whether the user is on the pro tier.
func (u *User) IsPro() bool {
	return u.SubscriptionTier == TierPro
}
