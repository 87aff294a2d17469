package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/stockroom-backend/pkg/logger"
)

const publishTimeout = 15 * time.Second

// PubSubClient is the subset of the Pub/Sub client used by the feed.
type PubSubClient interface {
	FeedPublisher() *gcppubsub.Publisher
	FeedSubscription() *gcppubsub.Subscriber
}

// PubSub moves messages over a Google Cloud Pub/Sub topic and subscription.
// Every API replica needs its own subscription to see every message.
type PubSub struct {
	client PubSubClient
	logg   *logger.Logger

	mu        sync.Mutex
	publisher *gcppubsub.Publisher
}

func NewPubSub(client PubSubClient, logg *logger.Logger) (*PubSub, error) {
	if client == nil {
		return nil, errors.New("pubsub client is required")
	}
	return &PubSub{client: client, logg: logg}, nil
}

func (p *PubSub) Publish(ctx context.Context, msg Message) error {
	pub, err := p.feedPublisher()
	if err != nil {
		return err
	}
	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if _, err := pub.Publish(publishCtx, toPubSubMessage(msg)).Get(publishCtx); err != nil {
		return fmt.Errorf("pubsub publish: %w", err)
	}
	return nil
}

func (p *PubSub) feedPublisher() (*gcppubsub.Publisher, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.publisher == nil {
		p.publisher = p.client.FeedPublisher()
		if p.publisher == nil {
			return nil, errors.New("pubsub feed topic not configured")
		}
	}
	return p.publisher, nil
}

func (p *PubSub) Subscribe(ctx context.Context) (Subscription, error) {
	subscriber := p.client.FeedSubscription()
	if subscriber == nil {
		return nil, errors.New("pubsub feed subscription not configured")
	}

	recvCtx, cancel := context.WithCancel(ctx)
	sub := &pubSubSubscription{
		out:    make(chan Message, subscriptionBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(sub.done)
		defer close(sub.out)
		err := subscriber.Receive(recvCtx, func(_ context.Context, m *gcppubsub.Message) {
			m.Ack()
			offer(sub.out, fromPubSubMessage(m))
		})
		if err != nil && !errors.Is(err, context.Canceled) && p.logg != nil {
			p.logg.Error(ctx, "pubsub feed receive stopped", err)
		}
	}()
	return sub, nil
}

// Stop flushes and releases the cached publisher.
func (p *PubSub) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.publisher != nil {
		p.publisher.Stop()
		p.publisher = nil
	}
}

type pubSubSubscription struct {
	out    chan Message
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *pubSubSubscription) Events() <-chan Message { return s.out }

func (s *pubSubSubscription) Close() error {
	s.cancel()
	<-s.done
	return nil
}

func toPubSubMessage(msg Message) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: msg.Payload,
		Attributes: map[string]string{
			"event_id":       msg.EventID,
			"event_type":     msg.EventType,
			"aggregate_type": msg.AggregateType,
			"aggregate_id":   msg.AggregateID,
		},
	}
}

func fromPubSubMessage(m *gcppubsub.Message) Message {
	msg := Message{Payload: m.Data}
	if m.Attributes != nil {
		msg.EventID = m.Attributes["event_id"]
		msg.EventType = m.Attributes["event_type"]
		msg.AggregateType = m.Attributes["aggregate_type"]
		msg.AggregateID = m.Attributes["aggregate_id"]
	}
	return msg
}
