// Package domain defines the business logic for the roster service.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"example.com/roster/internal/events"
	"example.com/roster/internal/observability"
)

var (
	// ErrActivityNotFound is returned when the activity name is not in the catalog.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrAlreadyEnrolled is returned when the email is already on the roster.
	ErrAlreadyEnrolled = errors.New("already signed up")
	// ErrNotEnrolled is returned when the email is not on the roster.
	ErrNotEnrolled = errors.New("not signed up")
	// ErrActivityFull is returned when the roster has reached max participants.
	ErrActivityFull = errors.New("activity is full")
)

// Store captures the roster mutations. Each call must be atomic for the activity it touches.
type Store interface {
	List(ctx context.Context) Catalog
	Enroll(ctx context.Context, activity, email string) (Activity, error)
	Unenroll(ctx context.Context, activity, email string) (Activity, error)
}

// Publisher forwards roster change events downstream.
type Publisher interface {
	Publish(ctx context.Context, evt events.Envelope) error
}

// NoopPublisher discards events.
type NoopPublisher struct{}

// Publish performs no action.
func (NoopPublisher) Publish(context.Context, events.Envelope) error { return nil }

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithPublisher routes change events to p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithLogger overrides the service logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service orchestrates roster workflows.
type Service struct {
	store     Store
	publisher Publisher
	logger    *zap.SugaredLogger
	now       func() time.Time
}

// NewService constructs a Service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		publisher: NoopPublisher{},
		logger:    zap.NewNop().Sugar(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListActivities returns a snapshot of the whole catalog.
func (s *Service) ListActivities(ctx context.Context) Catalog {
	return s.store.List(ctx)
}

// Signup adds email to the roster of the named activity and returns a confirmation message.
// Emails are opaque: they are neither validated nor normalised, and an empty string is a valid entry.
func (s *Service) Signup(ctx context.Context, activity, email string) (string, error) {
	updated, err := s.store.Enroll(ctx, activity, email)
	observability.RecordRosterOperation(observability.OperationSignup, outcome(err))
	if err != nil {
		return "", err
	}

	now := s.now()
	observability.RecordRosterChange(updated.Name, len(updated.Participants), now)
	s.logger.Infow("participant signed up", "activity", updated.Name, "email", email, "participants", len(updated.Participants))

	s.publish(ctx, events.TypeParticipantSignedUp, updated.Name, now, events.ParticipantSignedUp{
		Activity:         updated.Name,
		Email:            email,
		ParticipantCount: len(updated.Participants),
		MaxParticipants:  updated.MaxParticipants,
		SignedUpAt:       now.UTC(),
	})

	return fmt.Sprintf("Signed up %s for %s", email, updated.Name), nil
}

// Unregister removes email from the roster of the named activity and returns a confirmation message.
func (s *Service) Unregister(ctx context.Context, activity, email string) (string, error) {
	updated, err := s.store.Unenroll(ctx, activity, email)
	observability.RecordRosterOperation(observability.OperationUnregister, outcome(err))
	if err != nil {
		return "", err
	}

	now := s.now()
	observability.RecordRosterChange(updated.Name, len(updated.Participants), now)
	s.logger.Infow("participant unregistered", "activity", updated.Name, "email", email, "participants", len(updated.Participants))

	s.publish(ctx, events.TypeParticipantUnregistered, updated.Name, now, events.ParticipantUnregistered{
		Activity:         updated.Name,
		Email:            email,
		ParticipantCount: len(updated.Participants),
		MaxParticipants:  updated.MaxParticipants,
		UnregisteredAt:   now.UTC(),
	})

	return fmt.Sprintf("Unregistered %s from %s", email, updated.Name), nil
}

// publish never fails the caller: the roster mutation has already been applied.
func (s *Service) publish(ctx context.Context, eventType, activity string, at time.Time, payload any) {
	evt, err := events.NewEnvelope(eventType, activity, at, payload)
	if err == nil {
		err = s.publisher.Publish(ctx, evt)
	}
	if err != nil {
		observability.RecordPublishFailure(eventType)
		s.logger.Warnw("roster event not published", "event_type", eventType, "activity", activity, "error", err)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeOK
	case errors.Is(err, ErrActivityNotFound):
		return observability.OutcomeNotFound
	case errors.Is(err, ErrAlreadyEnrolled):
		return observability.OutcomeAlreadyEnrolled
	case errors.Is(err, ErrNotEnrolled):
		return observability.OutcomeNotEnrolled
	case errors.Is(err, ErrActivityFull):
		return observability.OutcomeFull
	default:
		return observability.OutcomeError
	}
}
