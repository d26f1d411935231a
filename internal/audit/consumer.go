package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	inats "github.com/capso-ai/capso/internal/nats"
)

// Consumer listens on the event NATS subjects and persists entries to the database.
type Consumer struct {
	repo        *Repository
	consumerMgr *inats.ConsumerManager
}

// NewConsumer creates a new audit event Consumer.
func NewConsumer(repo *Repository, consumerMgr *inats.ConsumerManager) *Consumer {
	return &Consumer{
		repo:        repo,
		consumerMgr: consumerMgr,
	}
}

// Start begins the consume loop. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	consumer, err := c.consumerMgr.EnsureConsumer(ctx, inats.StreamEvents, "audit-persister", "capso.events.>")
	if err != nil {
		return err
	}

	slog.Info("audit consumer started", "consumer", "audit-persister")

	for {
		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(inats.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("audit consumer: fetching events", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.handleEvent(ctx, msg)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) handleEvent(ctx context.Context, msg jetstream.Msg) {
	var log *AuditLog

	switch msg.Subject() {
	case inats.SubjectGenerationEvent:
		var event inats.GenerationEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			slog.Error("audit consumer: unmarshaling generation event", "error", err)
			_ = msg.Nak()
			return
		}
		log = generationEventToLog(event)
	case inats.SubjectSubscriptionEvent:
		var event inats.SubscriptionEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			slog.Error("audit consumer: unmarshaling subscription event", "error", err)
			_ = msg.Nak()
			return
		}
		log = subscriptionEventToLog(event)
	default:
		slog.Warn("audit consumer: unknown subject", "subject", msg.Subject())
		_ = msg.Ack()
		return
	}

	if err := c.repo.Insert(ctx, log); err != nil {
		slog.Error("audit consumer: persisting audit log", "error", err, "event_type", log.EventType)
		_ = msg.Nak()
		return
	}

	_ = msg.Ack()

	slog.Debug("audit consumer: persisted event",
		"event_type", log.EventType,
		"user", log.UserID,
	)
}

func generationEventToLog(event inats.GenerationEvent) *AuditLog {
	severity := SeverityInfo
	if event.EventType == inats.EventGenerationFailed {
		severity = SeverityError
	}

	details := map[string]string{
		"file_name": event.FileName,
		"language":  event.Language,
		"voice":     event.Voice,
	}
	if event.Failure != "" {
		details["failure"] = event.Failure
	}
	data, _ := json.Marshal(details)

	return &AuditLog{
		ID:        uuid.New(),
		UserID:    event.UserID,
		EventType: event.EventType,
		Severity:  severity,
		Details:   data,
		CreatedAt: event.Timestamp,
	}
}

func subscriptionEventToLog(event inats.SubscriptionEvent) *AuditLog {
	details := map[string]string{
		"from_tier": event.FromTier,
		"to_tier":   event.ToTier,
	}
	data, _ := json.Marshal(details)

	return &AuditLog{
		ID:        uuid.New(),
		UserID:    event.UserID,
		EventType: event.EventType,
		Severity:  SeverityInfo,
		Details:   data,
		CreatedAt: event.Timestamp,
	}
}
