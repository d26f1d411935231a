package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/capso-ai/capso/internal/api"
	"github.com/capso-ai/capso/internal/metrics"
	"github.com/capso-ai/capso/internal/users"
)

// Gate enforces monthly usage limits and pro-only feature access before
// any paid provider call is made.
type Gate struct {
	repo         Repository
	starterLimit int
}

func NewGate(repo Repository, starterLimit int) *Gate {
	return &Gate{repo: repo, starterLimit: starterLimit}
}

// Usage describes a user's position against their monthly limit.
type Usage struct {
	Current   int    `json:"current"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	Tier      string `json:"tier"`
	Unlimited bool   `json:"unlimited"`
}

// CurrentUsage computes this calendar month's usage for the user.
func (g *Gate) CurrentUsage(ctx context.Context, user *users.User) (Usage, error) {
	now := time.Now().UTC()
	count, err := g.repo.CountForMonth(ctx, user.ID, int(now.Month()), now.Year())
	if err != nil {
		return Usage{}, err
	}

	usage := Usage{
		Current:   count,
		Tier:      user.SubscriptionTier,
		Unlimited: user.IsPro(),
	}
	if !usage.Unlimited {
		usage.Limit = g.starterLimit
		usage.Remaining = max(g.starterLimit-count, 0)
	}
	return usage, nil
}

// Check validates the request against tier features and the monthly cap.
// The count-then-insert sequence is not transactional, so two in-flight
// requests can both pass at limit-1 and land one record over the cap.
func (g *Gate) Check(ctx context.Context, user *users.User, req *Request) error {
	if !user.IsPro() {
		if req.Speed != 0 && req.Speed != 1.0 {
			metrics.TierLimitRejectionsTotal.Inc()
			return api.NewTierLimitError("speed control requires a pro subscription")
		}
		if req.Folder != "" {
			metrics.TierLimitRejectionsTotal.Inc()
			return api.NewTierLimitError("folder organization requires a pro subscription")
		}
	}

	if user.IsPro() {
		return nil
	}

	usage, err := g.CurrentUsage(ctx, user)
	if err != nil {
		return fmt.Errorf("checking usage limit: %w", err)
	}
	if usage.Current >= g.starterLimit {
		metrics.TierLimitRejectionsTotal.Inc()
		return api.NewTierLimitError(fmt.Sprintf(
			"monthly limit of %d generations reached, upgrade to pro for unlimited generations",
			g.starterLimit))
	}
	return nil
}
