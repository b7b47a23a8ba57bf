// Package events defines the roster change payloads emitted to downstream consumers.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types published on the roster topic.
const (
	TypeParticipantSignedUp     = "roster.participant_signed_up"
	TypeParticipantUnregistered = "roster.participant_unregistered"
)

// ParticipantSignedUp is emitted after an email is added to an activity roster.
type ParticipantSignedUp struct {
	Activity         string    `json:"activity"`
	Email            string    `json:"email"`
	ParticipantCount int       `json:"participant_count"`
	MaxParticipants  int       `json:"max_participants"`
	SignedUpAt       time.Time `json:"signed_up_at"`
}

// ParticipantUnregistered is emitted after an email is removed from an activity roster.
type ParticipantUnregistered struct {
	Activity         string    `json:"activity"`
	Email            string    `json:"email"`
	ParticipantCount int       `json:"participant_count"`
	MaxParticipants  int       `json:"max_participants"`
	UnregisteredAt   time.Time `json:"unregistered_at"`
}

// Envelope wraps a payload with the metadata needed to route and deduplicate it.
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	Activity   string          `json:"activity"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload and stamps a fresh event ID.
func NewEnvelope(eventType, activity string, occurredAt time.Time, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		Activity:   activity,
		OccurredAt: occurredAt.UTC(),
		Payload:    raw,
	}, nil
}
