// Package notify is the notification delivery collaborator: it
// accepts registrations under caller-chosen identifiers and delivers
// them when their trigger instant arrives.
package notify

import (
	"context"
	"time"
)

// Notification is one registered delivery.
type Notification struct {
	ID        string
	Title     string
	Body      string
	TriggerAt time.Time
}

// Notifier registers and cancels future notifications. Cancelling an
// identifier that was never registered is a no-op, not an error.
type Notifier interface {
	Schedule(ctx context.Context, n Notification) error
	Cancel(ctx context.Context, id string) error
}

// Sender delivers a due notification over some channel.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}
