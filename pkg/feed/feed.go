// Package feed carries change notices from the outbox relay to the
// processes that keep derived views, such as the pending-request count,
// fresh. Messages are triggers only: consumers re-read authoritative state
// instead of applying the message contents.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Message is a single change notice.
type Message struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// Publisher pushes a message onto the feed.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Subscription delivers messages until closed. Slow readers may miss
// messages while a previous one is still buffered.
type Subscription interface {
	Events() <-chan Message
	Close() error
}

// Source opens subscriptions. The subscription is closed automatically
// when ctx ends.
type Source interface {
	Subscribe(ctx context.Context) (Subscription, error)
}

// ErrClosed is returned when publishing to or subscribing on a closed feed.
var ErrClosed = errors.New("feed closed")

const subscriptionBuffer = 16

// Encode serializes a message for byte-oriented transports.
func Encode(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode feed message: %w", err)
	}
	return data, nil
}

// Decode parses a message produced by Encode.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode feed message: %w", err)
	}
	return msg, nil
}

func offer(ch chan Message, msg Message) bool {
	select {
	case ch <- msg:
		return true
	default:
		return false
	}
}
