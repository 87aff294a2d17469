package pendingcount

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
	"github.com/angelmondragon/stockroom-backend/pkg/feed"
)

type scriptedCounter struct {
	mu      sync.Mutex
	results []countResult
	calls   atomic.Int32
}

type countResult struct {
	count int64
	err   error
}

func (c *scriptedCounter) CountPending(context.Context) (int64, error) {
	c.calls.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.results[0]
	if len(c.results) > 1 {
		c.results = c.results[1:]
	}
	return next.count, next.err
}

func (c *scriptedCounter) set(results ...countResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = results
}

type countingSource struct {
	feed.Source
	subscribes atomic.Int32
}

func (s *countingSource) Subscribe(ctx context.Context) (feed.Subscription, error) {
	s.subscribes.Add(1)
	return s.Source.Subscribe(ctx)
}

func newTestNotifier(t *testing.T, counter Counter, source feed.Source) *Notifier {
	t.Helper()
	n, err := NewNotifier(Params{Counter: counter, Source: source, RequeryTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Dispose() })
	return n
}

func publish(t *testing.T, broker *feed.Broker) {
	t.Helper()
	require.NoError(t, broker.Publish(context.Background(), feed.Message{EventType: "item_approved"}))
}

func TestInitializeIsIdempotent(t *testing.T) {
	counter := &scriptedCounter{results: []countResult{{count: 4}}}
	source := &countingSource{Source: feed.NewBroker()}
	n := newTestNotifier(t, counter, source)

	for i := 0; i < 3; i++ {
		require.NoError(t, n.Initialize(context.Background()))
	}
	assert.Equal(t, int64(4), n.Count())
	assert.Equal(t, int32(1), source.subscribes.Load())
	assert.Equal(t, int32(1), counter.calls.Load())
	assert.True(t, n.Initialized())
}

func TestConcurrentInitializeSubscribesOnce(t *testing.T) {
	counter := &scriptedCounter{results: []countResult{{count: 1}}}
	source := &countingSource{Source: feed.NewBroker()}
	n := newTestNotifier(t, counter, source)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, n.Initialize(context.Background()))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), source.subscribes.Load())
}

func TestInitializeFailureLeavesNotifierUninitialized(t *testing.T) {
	counter := &scriptedCounter{results: []countResult{{err: errors.New("db down")}}}
	source := &countingSource{Source: feed.NewBroker()}
	n := newTestNotifier(t, counter, source)

	err := n.Initialize(context.Background())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.False(t, n.Initialized())
	assert.Zero(t, source.subscribes.Load())

	counter.set(countResult{count: 2})

	require.NoError(t, n.Initialize(context.Background()))
	assert.Equal(t, int64(2), n.Count())
	assert.Equal(t, int32(1), source.subscribes.Load())
}

func TestInitializeSubscribeFailure(t *testing.T) {
	broker := feed.NewBroker()
	require.NoError(t, broker.Close())
	n := newTestNotifier(t, &scriptedCounter{results: []countResult{{count: 1}}}, broker)

	err := n.Initialize(context.Background())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.False(t, n.Initialized())
}

func TestRefreshOverwritesAndKeepsLastGoodValue(t *testing.T) {
	counter := &scriptedCounter{results: []countResult{{count: 5}}}
	broker := feed.NewBroker()
	n := newTestNotifier(t, counter, broker)
	require.NoError(t, n.Initialize(context.Background()))

	counter.set(countResult{err: errors.New("timeout")})
	publish(t, broker)
	require.Eventually(t, func() bool { return counter.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(5), n.Count())

	counter.set(countResult{count: 6})
	publish(t, broker)
	require.Eventually(t, func() bool { return n.Count() == 6 }, time.Second, 5*time.Millisecond)

	counter.set(countResult{count: 5})
	publish(t, broker)
	require.Eventually(t, func() bool { return n.Count() == 5 }, time.Second, 5*time.Millisecond)
}

func TestWatchDeliversUpdatesAndClosesOnDispose(t *testing.T) {
	counter := &scriptedCounter{results: []countResult{{count: 3}}}
	broker := feed.NewBroker()
	n := newTestNotifier(t, counter, broker)

	early, _ := n.Watch()
	_, open := <-early
	assert.False(t, open, "watching before Initialize yields a closed channel")

	require.NoError(t, n.Initialize(context.Background()))
	updates, cancel := n.Watch()
	defer cancel()
	assert.Equal(t, int64(3), <-updates)

	counter.set(countResult{count: 4})
	publish(t, broker)

	select {
	case got := <-updates:
		assert.Equal(t, int64(4), got)
	case <-time.After(time.Second):
		t.Fatal("watcher did not receive the refreshed count")
	}

	other, cancelOther := n.Watch()
	assert.Equal(t, int64(4), <-other)
	cancelOther()
	cancelOther()
	_, open = <-other
	assert.False(t, open)

	require.NoError(t, n.Dispose())
	_, open = <-updates
	assert.False(t, open)
}

func TestDisposeIsRepeatable(t *testing.T) {
	broker := feed.NewBroker()
	n := newTestNotifier(t, &scriptedCounter{results: []countResult{{count: 1}}}, broker)

	require.NoError(t, n.Dispose())
	require.NoError(t, n.Initialize(context.Background()))
	require.NoError(t, n.Dispose())
	require.NoError(t, n.Dispose())
	assert.False(t, n.Initialized())

	require.NoError(t, broker.Publish(context.Background(), feed.Message{}))
}

func TestNewNotifierValidatesParams(t *testing.T) {
	_, err := NewNotifier(Params{Source: feed.NewBroker()})
	assert.Error(t, err)
	_, err = NewNotifier(Params{Counter: &scriptedCounter{}})
	assert.Error(t, err)
}
