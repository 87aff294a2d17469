package feed

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/stockroom-backend/pkg/config"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
	"github.com/angelmondragon/stockroom-backend/pkg/pubsub"
	"github.com/angelmondragon/stockroom-backend/pkg/redis"
)

// Transport both publishes to and subscribes on the change feed.
type Transport interface {
	Publisher
	Source
}

// Open builds the transport selected by cfg.Feed. The returned closer
// releases every resource Open acquired.
func Open(ctx context.Context, cfg *config.Config, rdb *redis.Client, logg *logger.Logger) (Transport, func() error, error) {
	switch driver := cfg.Feed.NormalizedDriver(); driver {
	case config.FeedDriverMemory:
		broker := NewBroker()
		return broker, broker.Close, nil

	case config.FeedDriverRedis:
		if rdb == nil {
			return nil, nil, errors.New("redis feed requires a redis client")
		}
		transport, err := NewRedis(rdb, rdb.ChannelName(cfg.Feed.Channel), logg)
		if err != nil {
			return nil, nil, err
		}
		return transport, func() error { return nil }, nil

	case config.FeedDriverPubSub:
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.Feed, logg)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap pubsub feed: %w", err)
		}
		transport, err := NewPubSub(client, logg)
		if err != nil {
			return nil, nil, multierr.Append(err, client.Close())
		}
		closer := func() error {
			transport.Stop()
			return client.Close()
		}
		return transport, closer, nil

	default:
		return nil, nil, fmt.Errorf("unsupported feed driver %q", driver)
	}
}
