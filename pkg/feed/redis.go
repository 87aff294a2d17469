package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/stockroom-backend/pkg/logger"
)

// RedisBus is the subset of the redis client used by the feed.
type RedisBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) (*goredis.PubSub, error)
}

// Redis publishes and subscribes on a single redis pub/sub channel.
type Redis struct {
	bus     RedisBus
	channel string
	logg    *logger.Logger
}

func NewRedis(bus RedisBus, channel string, logg *logger.Logger) (*Redis, error) {
	if bus == nil {
		return nil, errors.New("redis bus is required")
	}
	if channel == "" {
		return nil, errors.New("redis channel is required")
	}
	return &Redis{bus: bus, channel: channel, logg: logg}, nil
}

func (r *Redis) Publish(ctx context.Context, msg Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}
	if err := r.bus.Publish(ctx, r.channel, data); err != nil {
		return fmt.Errorf("redis publish %s: %w", r.channel, err)
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context) (Subscription, error) {
	ps, err := r.bus.Subscribe(ctx, r.channel)
	if err != nil {
		return nil, err
	}
	// wait for the subscribe confirmation so no message published after
	// this call returns is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", r.channel, err)
	}

	sub := &redisSubscription{ps: ps, out: make(chan Message, subscriptionBuffer)}
	go sub.pump(ctx, r.logg)
	sub.stop = context.AfterFunc(ctx, func() { _ = sub.Close() })
	return sub, nil
}

type redisSubscription struct {
	ps   *goredis.PubSub
	out  chan Message
	stop func() bool
	once sync.Once
	err  error
}

func (s *redisSubscription) pump(ctx context.Context, logg *logger.Logger) {
	defer close(s.out)
	for raw := range s.ps.Channel() {
		msg, err := Decode([]byte(raw.Payload))
		if err != nil && logg != nil {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "undecodable feed message")
		}
		offer(s.out, msg)
	}
}

func (s *redisSubscription) Events() <-chan Message { return s.out }

func (s *redisSubscription) Close() error {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
		s.err = s.ps.Close()
	})
	return s.err
}
