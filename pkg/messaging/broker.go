package messaging

import (
	"context"
)

// Broker publishes messages to named channels.
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Close() error
}

// Message is the envelope published for every outbox event.
type Message struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	PracticeID string      `json:"practice_id"`
	Payload    interface{} `json:"payload"`
}
