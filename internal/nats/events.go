package nats

import (
	"time"

	"github.com/google/uuid"
)

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// Stream names.
const (
	StreamEvents = "CAPSO_EVENTS"
)

// Subject constants.
const (
	SubjectGenerationEvent   = "capso.events.generation"
	SubjectSubscriptionEvent = "capso.events.subscription"
)

// Generation event types.
const (
	EventGenerationCompleted = "generation.completed"
	EventGenerationFailed    = "generation.failed"
)

// Subscription event types.
const (
	EventSubscriptionChanged = "subscription.changed"
)

// GenerationEvent is published after an audio generation attempt finishes.
type GenerationEvent struct {
	UserID    uuid.UUID `json:"user_id"`
	EventType string    `json:"event_type"`
	FileName  string    `json:"file_name"`
	Language  string    `json:"language"`
	Voice     string    `json:"voice"`
	Failure   string    `json:"failure,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SubscriptionEvent is published when a user's tier changes via Stripe.
type SubscriptionEvent struct {
	UserID    uuid.UUID `json:"user_id"`
	EventType string    `json:"event_type"`
	FromTier  string    `json:"from_tier"`
	ToTier    string    `json:"to_tier"`
	Timestamp time.Time `json:"timestamp"`
}
