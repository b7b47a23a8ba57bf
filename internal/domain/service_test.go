package domain_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/roster/internal/domain"
	"example.com/roster/internal/events"
	"example.com/roster/internal/roster"
)

func newService(t *testing.T, opts ...domain.Option) *domain.Service {
	t.Helper()
	catalog, err := roster.DefaultCatalog()
	require.NoError(t, err)
	return domain.NewService(roster.NewInMemoryStore(catalog), opts...)
}

func TestSignupReturnsConfirmation(t *testing.T) {
	service := newService(t)

	msg, err := service.Signup(context.Background(), "Chess Club", "new@x.edu")
	require.NoError(t, err)
	require.Equal(t, "Signed up new@x.edu for Chess Club", msg)

	chess := service.ListActivities(context.Background())["Chess Club"]
	require.Len(t, chess.Participants, 3)
	require.Contains(t, chess.Participants, "new@x.edu")
}

func TestChessClubScenario(t *testing.T) {
	service := newService(t)
	ctx := context.Background()

	_, err := service.Signup(ctx, "Chess Club", "new@x.edu")
	require.NoError(t, err)

	_, err = service.Signup(ctx, "Chess Club", "michael@mergington.edu")
	require.ErrorIs(t, err, domain.ErrAlreadyEnrolled)

	msg, err := service.Unregister(ctx, "Chess Club", "michael@mergington.edu")
	require.NoError(t, err)
	require.Equal(t, "Unregistered michael@mergington.edu from Chess Club", msg)

	participants := service.ListActivities(ctx)["Chess Club"].Participants
	require.Len(t, participants, 2)
	require.NotContains(t, participants, "michael@mergington.edu")
}

func TestEmailsAreNotValidated(t *testing.T) {
	service := newService(t)
	ctx := context.Background()

	msg, err := service.Signup(ctx, "Chess Club", "")
	require.NoError(t, err)
	require.Equal(t, "Signed up  for Chess Club", msg)

	_, err = service.Signup(ctx, "Chess Club", "")
	require.ErrorIs(t, err, domain.ErrAlreadyEnrolled)

	_, err = service.Unregister(ctx, "Chess Club", "   ")
	require.ErrorIs(t, err, domain.ErrNotEnrolled)

	_, err = service.Unregister(ctx, "Chess Club", "")
	require.NoError(t, err)
	require.Len(t, service.ListActivities(ctx)["Chess Club"].Participants, 2)
}

func TestSignupPublishesEvent(t *testing.T) {
	publisher := &recordingPublisher{}
	at := time.Date(2025, time.September, 1, 15, 30, 0, 0, time.UTC)
	service := newService(t, domain.WithPublisher(publisher), domain.WithClock(func() time.Time { return at }))
	ctx := context.Background()

	_, err := service.Signup(ctx, "Tennis Club", "newtennis@mergington.edu")
	require.NoError(t, err)
	_, err = service.Unregister(ctx, "Tennis Club", "newtennis@mergington.edu")
	require.NoError(t, err)

	require.Len(t, publisher.events, 2)

	signed := publisher.events[0]
	require.Equal(t, events.TypeParticipantSignedUp, signed.EventType)
	require.Equal(t, "Tennis Club", signed.Activity)
	require.NotEmpty(t, signed.EventID)
	require.Equal(t, at, signed.OccurredAt)

	var payload events.ParticipantSignedUp
	require.NoError(t, json.Unmarshal(signed.Payload, &payload))
	require.Equal(t, "newtennis@mergington.edu", payload.Email)
	require.Equal(t, 2, payload.ParticipantCount)
	require.Equal(t, 10, payload.MaxParticipants)

	unregistered := publisher.events[1]
	require.Equal(t, events.TypeParticipantUnregistered, unregistered.EventType)
	require.NotEqual(t, signed.EventID, unregistered.EventID)
}

func TestFailedOperationsPublishNothing(t *testing.T) {
	publisher := &recordingPublisher{}
	service := newService(t, domain.WithPublisher(publisher))
	ctx := context.Background()

	_, err := service.Signup(ctx, "Fake Activity", "student@mergington.edu")
	require.ErrorIs(t, err, domain.ErrActivityNotFound)
	_, err = service.Unregister(ctx, "Chess Club", "notregistered@mergington.edu")
	require.ErrorIs(t, err, domain.ErrNotEnrolled)

	require.Empty(t, publisher.events)
}

func TestPublishFailureDoesNotFailSignup(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("queue full")}
	service := newService(t, domain.WithPublisher(publisher))

	msg, err := service.Signup(context.Background(), "Art Studio", "newartist@mergington.edu")
	require.NoError(t, err)
	require.Contains(t, msg, "newartist@mergington.edu")
	require.Contains(t, service.ListActivities(context.Background())["Art Studio"].Participants, "newartist@mergington.edu")
}

type recordingPublisher struct {
	events []events.Envelope
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Envelope) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}
