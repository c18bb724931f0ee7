package core

import (
	"context"
	"time"
)

// Domain event names
const (
	EventApplicationSubmitted = "application.submitted"
	EventPaymentRecorded      = "payment.recorded"
	EventScoresUpdated        = "scores.updated"
)

type Event struct {
	Name       string      `json:"name"`
	Payload    interface{} `json:"payload"`
	OccurredAt time.Time   `json:"occurred_at"`
}

func NewEvent(name string, payload interface{}) Event {
	return Event{Name: name, Payload: payload, OccurredAt: time.Now().UTC()}
}

// EventPublisher broadcasts domain events to live subscribers. Publish never blocks.
type EventPublisher interface {
	Publish(evt Event)
}

// RecordsListener is notified after a change to the data reports are computed from.
type RecordsListener interface {
	RecordsChanged(ctx context.Context)
}

func NotifyRecordsChanged(ctx context.Context, listeners []RecordsListener) {
	for _, l := range listeners {
		l.RecordsChanged(ctx)
	}
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
