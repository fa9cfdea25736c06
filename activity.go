package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventRegistered          ActivityEventType = "credential.registered"
	ActivityEventNotificationFailure ActivityEventType = "credential.notification.failure"
	ActivityEventActivated           ActivityEventType = "credential.activated"
	ActivityEventActivationFailure   ActivityEventType = "credential.activation.failure"
	ActivityEventEmailUpdated        ActivityEventType = "credential.email.updated"
	ActivityEventLoginSuccess        ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure        ActivityEventType = "auth.login.failure"
	ActivityEventTokenRejected       ActivityEventType = "auth.token.rejected"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType    ActivityEventType
	CredentialID int64
	UserID       int64
	Email        string
	Metadata     map[string]any
	OccurredAt   time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
// Sinks run best effort, errors are logged and never fail an operation.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// MultiActivitySink fans an event out to every sink and returns the first error
type MultiActivitySink []ActivitySink

// Record implements ActivitySink.
func (m MultiActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	var first error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
