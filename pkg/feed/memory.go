package feed

import (
	"context"
	"sync"
)

// Broker is an in-process feed used when the API runs the outbox relay
// itself and in tests.
type Broker struct {
	mu     sync.Mutex
	subs   map[*memorySubscription]struct{}
	closed bool
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[*memorySubscription]struct{})}
}

// Publish delivers msg to every open subscription without blocking.
func (b *Broker) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	for sub := range b.subs {
		offer(sub.ch, msg)
	}
	return nil
}

func (b *Broker) Subscribe(ctx context.Context) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	sub := &memorySubscription{broker: b, ch: make(chan Message, subscriptionBuffer)}
	b.subs[sub] = struct{}{}
	sub.stop = context.AfterFunc(ctx, func() { _ = sub.Close() })
	return sub, nil
}

// Close ends every subscription and rejects further use.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.ch)
	}
	return nil
}

type memorySubscription struct {
	broker *Broker
	ch     chan Message
	stop   func() bool
}

func (s *memorySubscription) Events() <-chan Message { return s.ch }

func (s *memorySubscription) Close() error {
	if s.stop != nil {
		s.stop()
	}
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()
	if _, ok := s.broker.subs[s]; !ok {
		return nil
	}
	delete(s.broker.subs, s)
	close(s.ch)
	return nil
}
