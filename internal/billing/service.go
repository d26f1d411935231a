package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	portalsession "github.com/stripe/stripe-go/v79/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"

	"github.com/capso-ai/capso/internal/config"
	inats "github.com/capso-ai/capso/internal/nats"
	"github.com/capso-ai/capso/internal/users"
)

// UserStore is the subset of the users service that billing needs.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*users.User, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (*users.User, error)
	SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
	ChangeSubscriptionTier(ctx context.Context, id uuid.UUID, tier string) error
}

// Service handles Stripe subscription lifecycle.
type Service struct {
	userStore UserStore
	publisher *inats.Publisher
	cfg       config.StripeConfig
}

// NewService creates a billing Service and wires the Stripe API key.
// publisher may be nil when NATS is disabled.
func NewService(userStore UserStore, publisher *inats.Publisher, cfg config.StripeConfig) *Service {
	stripe.Key = cfg.SecretKey
	return &Service{
		userStore: userStore,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Configured reports whether checkout can be offered.
func (s *Service) Configured() bool {
	return s.cfg.SecretKey != "" && s.cfg.PriceIDProMonthly != "" && s.cfg.FrontendURL != ""
}

// EnsureCustomer finds or creates a Stripe customer for the user and stores its ID.
func (s *Service) EnsureCustomer(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.userStore.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("loading user: %w", err)
	}
	if user == nil {
		return "", fmt.Errorf("user %s not found", userID)
	}
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Metadata: map[string]string{
			"user_id": user.ID.String(),
		},
	}
	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("creating stripe customer: %w", err)
	}

	if err := s.userStore.SetStripeCustomerID(ctx, user.ID, cust.ID); err != nil {
		return "", fmt.Errorf("storing stripe customer id: %w", err)
	}
	return cust.ID, nil
}

// CreateCheckoutSession starts a subscription checkout and returns its URL.
func (s *Service) CreateCheckoutSession(ctx context.Context, userID uuid.UUID) (string, error) {
	customerID, err := s.EnsureCustomer(ctx, userID)
	if err != nil {
		return "", err
	}

	frontendURL := strings.TrimRight(s.cfg.FrontendURL, "/")
	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.cfg.PriceIDProMonthly),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(frontendURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(frontendURL + "/billing/cancel"),
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("creating checkout session: %w", err)
	}
	return sess.URL, nil
}

// VerifyCheckoutSession confirms a paid checkout session and upgrades the user.
// Used by the frontend success page; the webhook remains the source of truth.
func (s *Service) VerifyCheckoutSession(ctx context.Context, userID uuid.UUID, sessionID string) (bool, error) {
	sess, err := checkoutsession.Get(sessionID, nil)
	if err != nil {
		return false, fmt.Errorf("fetching checkout session: %w", err)
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return false, nil
	}

	user, err := s.userStore.GetByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("loading user: %w", err)
	}
	if user == nil {
		return false, fmt.Errorf("user %s not found", userID)
	}
	if sess.Customer == nil || sess.Customer.ID != user.StripeCustomerID {
		return false, fmt.Errorf("checkout session does not belong to user %s", userID)
	}

	if !user.IsPro() {
		if err := s.changeTier(ctx, user, users.TierPro); err != nil {
			return false, err
		}
	}
	return true, nil
}

// CreatePortalSession returns a Stripe customer portal URL for subscription management.
func (s *Service) CreatePortalSession(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.userStore.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("loading user: %w", err)
	}
	if user == nil {
		return "", fmt.Errorf("user %s not found", userID)
	}
	if user.StripeCustomerID == "" {
		return "", ErrNoCustomer
	}

	frontendURL := strings.TrimRight(s.cfg.FrontendURL, "/")
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(user.StripeCustomerID),
		ReturnURL: stripe.String(frontendURL + "/settings/billing"),
	}

	sess, err := portalsession.New(params)
	if err != nil {
		return "", fmt.Errorf("creating portal session: %w", err)
	}
	return sess.URL, nil
}

// HandleEvent applies a verified Stripe webhook event to the user's tier.
// Unhandled event types are ignored.
func (s *Service) HandleEvent(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("unmarshaling checkout session: %w", err)
		}
		if sess.Customer == nil || sess.Customer.ID == "" {
			return fmt.Errorf("checkout session %s has no customer", sess.ID)
		}
		return s.changeTierByCustomer(ctx, sess.Customer.ID, users.TierPro)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("unmarshaling subscription: %w", err)
		}
		if sub.Customer == nil || sub.Customer.ID == "" {
			return fmt.Errorf("subscription %s has no customer", sub.ID)
		}
		return s.changeTierByCustomer(ctx, sub.Customer.ID, users.TierStarter)

	default:
		slog.Debug("ignoring stripe event", "type", event.Type)
		return nil
	}
}

func (s *Service) changeTierByCustomer(ctx context.Context, customerID, tier string) error {
	user, err := s.userStore.GetByStripeCustomerID(ctx, customerID)
	if err != nil {
		return fmt.Errorf("looking up stripe customer %s: %w", customerID, err)
	}
	if user == nil {
		return fmt.Errorf("no user for stripe customer %s", customerID)
	}
	if user.SubscriptionTier == tier {
		return nil
	}
	return s.changeTier(ctx, user, tier)
}

func (s *Service) changeTier(ctx context.Context, user *users.User, tier string) error {
	if err := s.userStore.ChangeSubscriptionTier(ctx, user.ID, tier); err != nil {
		return err
	}

	slog.Info("subscription tier changed", "user_id", user.ID, "from", user.SubscriptionTier, "to", tier)

	if s.publisher != nil {
		err := s.publisher.PublishSubscriptionEvent(ctx, inats.SubscriptionEvent{
			UserID:    user.ID,
			EventType: inats.EventSubscriptionChanged,
			FromTier:  user.SubscriptionTier,
			ToTier:    tier,
			Timestamp: time.Now().UTC(),
		})
		if err != nil {
			slog.Warn("publishing subscription event", "error", err)
		}
	}
	return nil
}
