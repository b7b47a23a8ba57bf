package outbox

import "example.com/roster/internal/events"

const participantSignedUpSchema = `{
  "type": "object",
  "title": "ParticipantSignedUp",
  "properties": {
    "event_id": {"type": "string"},
    "event_type": {"const": "roster.participant_signed_up"},
    "activity": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"},
    "payload": {
      "type": "object",
      "properties": {
        "activity": {"type": "string"},
        "email": {"type": "string"},
        "participant_count": {"type": "integer"},
        "max_participants": {"type": "integer"},
        "signed_up_at": {"type": "string", "format": "date-time"}
      },
      "required": ["activity", "email", "participant_count", "max_participants", "signed_up_at"]
    }
  },
  "required": ["event_id", "event_type", "activity", "occurred_at", "payload"]
}`

const participantUnregisteredSchema = `{
  "type": "object",
  "title": "ParticipantUnregistered",
  "properties": {
    "event_id": {"type": "string"},
    "event_type": {"const": "roster.participant_unregistered"},
    "activity": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"},
    "payload": {
      "type": "object",
      "properties": {
        "activity": {"type": "string"},
        "email": {"type": "string"},
        "participant_count": {"type": "integer"},
        "max_participants": {"type": "integer"},
        "unregistered_at": {"type": "string", "format": "date-time"}
      },
      "required": ["activity", "email", "participant_count", "max_participants", "unregistered_at"]
    }
  },
  "required": ["event_id", "event_type", "activity", "occurred_at", "payload"]
}`

// SchemaCatalogEntry maps event type to schema definition.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	events.TypeParticipantSignedUp:     {Schema: participantSignedUpSchema},
	events.TypeParticipantUnregistered: {Schema: participantUnregisteredSchema},
}
