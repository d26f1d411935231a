package audit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inats "github.com/capso-ai/capso/internal/nats"
)

func TestGenerationEventToLog_Completed(t *testing.T) {
	userID := uuid.New()
	event := inats.GenerationEvent{
		UserID:    userID,
		EventType: inats.EventGenerationCompleted,
		FileName:  "report.pdf",
		Language:  "en",
		Voice:     "sarah",
		Timestamp: time.Now().UTC(),
	}

	log := generationEventToLog(event)

	assert.Equal(t, userID, log.UserID)
	assert.Equal(t, inats.EventGenerationCompleted, log.EventType)
	assert.Equal(t, SeverityInfo, log.Severity)

	var details map[string]string
	require.NoError(t, json.Unmarshal(log.Details, &details))
	assert.Equal(t, "report.pdf", details["file_name"])
	assert.Equal(t, "en", details["language"])
	assert.Equal(t, "sarah", details["voice"])
	assert.NotContains(t, details, "failure")
}

func TestGenerationEventToLog_Failed(t *testing.T) {
	event := inats.GenerationEvent{
		UserID:    uuid.New(),
		EventType: inats.EventGenerationFailed,
		FileName:  "scan.pdf",
		Language:  "fr",
		Voice:     "emma",
		Failure:   "no selectable text",
		Timestamp: time.Now().UTC(),
	}

	log := generationEventToLog(event)

	assert.Equal(t, SeverityError, log.Severity)

	var details map[string]string
	require.NoError(t, json.Unmarshal(log.Details, &details))
	assert.Equal(t, "no selectable text", details["failure"])
}

func TestSubscriptionEventToLog(t *testing.T) {
	userID := uuid.New()
	event := inats.SubscriptionEvent{
		UserID:    userID,
		EventType: inats.EventSubscriptionChanged,
		FromTier:  "starter",
		ToTier:    "pro",
		Timestamp: time.Now().UTC(),
	}

	log := subscriptionEventToLog(event)

	assert.Equal(t, userID, log.UserID)
	assert.Equal(t, inats.EventSubscriptionChanged, log.EventType)
	assert.Equal(t, SeverityInfo, log.Severity)

	var details map[string]string
	require.NoError(t, json.Unmarshal(log.Details, &details))
	assert.Equal(t, "starter", details["from_tier"])
	assert.Equal(t, "pro", details["to_tier"])
}
