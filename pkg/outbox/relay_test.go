package outbox

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroom-backend/pkg/config"
	dbpkg "github.com/angelmondragon/stockroom-backend/pkg/db"
	"github.com/angelmondragon/stockroom-backend/pkg/db/dbtest"
	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	"github.com/angelmondragon/stockroom-backend/pkg/feed"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
	"github.com/angelmondragon/stockroom-backend/pkg/outbox/payloads"
)

func TestEmitThenRelayPublishesToFeed(t *testing.T) {
	ctx := context.Background()
	client, repo, logg := newRelayFixture(t)
	service := NewService(repo, logg)

	requestID := uuid.New()
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return service.Emit(ctx, tx, DomainEvent{
			EventType:     enums.EventRequestSubmitted,
			AggregateType: enums.AggregateRequest,
			AggregateID:   requestID,
			Actor:         &ActorRef{UserID: uuid.New(), Role: enums.UserRoleDocente},
			Data:          payloads.RequestSubmittedEvent{RequestID: requestID, Code: "SOL-2026-00001", ItemCount: 2},
		})
	})
	require.NoError(t, err)

	broker := feed.NewBroker()
	sub, err := broker.Subscribe(ctx)
	require.NoError(t, err)

	relay := newTestRelay(t, client, repo, broker, logg, 3)
	processed, err := relay.ProcessBatch(ctx)
	require.NoError(t, err)
	require.True(t, processed)

	select {
	case msg := <-sub.Events():
		require.Equal(t, string(enums.EventRequestSubmitted), msg.EventType)
		require.Equal(t, requestID.String(), msg.AggregateID)
		require.NotEmpty(t, msg.EventID)
		env, err := DecodeEnvelope(string(msg.Payload))
		require.NoError(t, err)
		require.Equal(t, 1, env.Version)
		require.Contains(t, string(env.Data), "SOL-2026-00001")
	case <-time.After(time.Second):
		t.Fatal("expected feed message")
	}

	var row models.OutboxEvent
	require.NoError(t, client.DB().First(&row).Error)
	require.NotNil(t, row.PublishedAt)

	processed, err = relay.ProcessBatch(ctx)
	require.NoError(t, err)
	require.False(t, processed, "published rows must not be fetched again")
}

func TestRelayRecordsFailureAndGoesTerminal(t *testing.T) {
	ctx := context.Background()
	client, repo, logg := newRelayFixture(t)
	service := NewService(repo, logg)

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return service.Emit(ctx, tx, DomainEvent{
			EventType:     enums.EventItemRejected,
			AggregateType: enums.AggregateRequestItem,
			AggregateID:   uuid.New(),
			Data:          payloads.ItemDecidedEvent{Status: enums.ItemStatusRejected},
		})
	}))

	pub := &failingPublisher{err: errors.New("transient")}
	relay := newTestRelay(t, client, repo, pub, logg, 2)

	_, err := relay.ProcessBatch(ctx)
	require.NoError(t, err)

	var row models.OutboxEvent
	require.NoError(t, client.DB().First(&row).Error)
	require.Nil(t, row.PublishedAt)
	require.Equal(t, 1, row.AttemptCount)
	require.NotNil(t, row.LastError)

	_, err = relay.ProcessBatch(ctx)
	require.NoError(t, err)
	require.NoError(t, client.DB().First(&row).Error)
	require.Equal(t, 2, row.AttemptCount)

	processed, err := relay.ProcessBatch(ctx)
	require.NoError(t, err)
	require.False(t, processed, "terminal rows are parked")
	require.Equal(t, 2, pub.calls)
}

func TestRelayParksUndecodablePayload(t *testing.T) {
	ctx := context.Background()
	client, repo, logg := newRelayFixture(t)

	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventItemApproved,
		AggregateType: enums.AggregateRequestItem,
		AggregateID:   uuid.New(),
		Payload:       "{broken",
	}
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error { return repo.Insert(tx, row) }))

	pub := &failingPublisher{}
	relay := newTestRelay(t, client, repo, pub, logg, 5)
	processed, err := relay.ProcessBatch(ctx)
	require.NoError(t, err)
	require.True(t, processed)
	require.Zero(t, pub.calls)

	var stored models.OutboxEvent
	require.NoError(t, client.DB().First(&stored, "id = ?", row.ID).Error)
	require.Equal(t, 5, stored.AttemptCount)

	backlog, err := repo.CountUnpublished(nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, backlog)
}

func TestEmitRequiresTransaction(t *testing.T) {
	service := NewService(NewRepository(nil), nil)
	err := service.Emit(context.Background(), nil, DomainEvent{})
	require.Error(t, err)
}

func TestNewRelayValidatesParams(t *testing.T) {
	_, err := NewRelay(RelayParams{})
	require.Error(t, err)
}

func TestBackoffHelpers(t *testing.T) {
	require.Equal(t, 2*time.Second, nextBackoff(time.Second, time.Second, maxBackoff))
	require.Equal(t, maxBackoff, nextBackoff(8*time.Second, time.Second, maxBackoff))
	require.Equal(t, time.Second, nextBackoff(0, 500*time.Millisecond, maxBackoff))

	jittered := withJitter(time.Second)
	require.GreaterOrEqual(t, jittered, time.Second)
	require.Less(t, jittered, time.Second+jitterWindow)
	require.Zero(t, withJitter(0))
}

func newRelayFixture(t *testing.T) (*dbpkg.Client, *Repository, *logger.Logger) {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Writer(&bytes.Buffer{})})
	return dbpkg.Wrap(conn), NewRepository(conn), logg
}

func newTestRelay(t *testing.T, client *dbpkg.Client, repo *Repository, pub feed.Publisher, logg *logger.Logger, maxAttempts int) *Relay {
	t.Helper()
	relay, err := NewRelay(RelayParams{
		Config:     config.OutboxConfig{BatchSize: 10, PollIntervalMS: 10, MaxAttempts: maxAttempts},
		Logger:     logg,
		DB:         client,
		Repository: repo,
		Publisher:  pub,
	})
	require.NoError(t, err)
	return relay
}

type failingPublisher struct {
	err   error
	calls int
}

func (p *failingPublisher) Publish(context.Context, feed.Message) error {
	p.calls++
	return p.err
}
