// Package pendingcount keeps a process-wide count of pending requests fresh
// by re-running the count query on every change-feed event.
package pendingcount

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
	"github.com/angelmondragon/stockroom-backend/pkg/feed"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
	"github.com/angelmondragon/stockroom-backend/pkg/metrics"
)

const defaultRequeryTimeout = 5 * time.Second

type Params struct {
	Counter        Counter
	Source         feed.Source
	Logger         *logger.Logger
	Metrics        *metrics.EngineMetrics
	RequeryTimeout time.Duration
}

// Notifier holds the latest pending count. One subscription and one refresh
// loop exist per initialized notifier.
type Notifier struct {
	counter Counter
	source  feed.Source
	logg    *logger.Logger
	metrics *metrics.EngineMetrics
	timeout time.Duration

	count atomic.Int64

	mu          sync.Mutex
	initialized bool
	sub         feed.Subscription
	stop        context.CancelFunc
	done        chan struct{}
	watchers    map[uint64]chan int64
	nextWatcher uint64
}

func NewNotifier(params Params) (*Notifier, error) {
	if params.Counter == nil {
		return nil, fmt.Errorf("pending counter required")
	}
	if params.Source == nil {
		return nil, fmt.Errorf("feed source required")
	}
	timeout := params.RequeryTimeout
	if timeout <= 0 {
		timeout = defaultRequeryTimeout
	}
	return &Notifier{
		counter:  params.Counter,
		source:   params.Source,
		logg:     params.Logger,
		metrics:  params.Metrics,
		timeout:  timeout,
		watchers: make(map[uint64]chan int64),
	}, nil
}

// Initialize runs the first count and starts listening to the feed. Calls
// after a successful one return nil without subscribing again. A failed
// first count leaves the notifier uninitialized.
func (n *Notifier) Initialize(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.initialized {
		return nil
	}

	count, err := n.query(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "initial pending count")
	}

	loopCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	sub, err := n.source.Subscribe(loopCtx)
	if err != nil {
		stop()
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "subscribe to change feed")
	}

	n.store(count)
	n.sub = sub
	n.stop = stop
	n.done = make(chan struct{})
	n.initialized = true
	go n.loop(loopCtx, sub, n.done)

	if n.logg != nil {
		n.logg.Info(n.logg.WithField(ctx, "pending_count", count), "pending count notifier started")
	}
	return nil
}

func (n *Notifier) loop(ctx context.Context, sub feed.Subscription, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sub.Events():
			if !ok {
				return
			}
			n.Refresh(ctx)
		}
	}
}

// Refresh re-runs the count query and publishes the result. On failure the
// previous value is kept.
func (n *Notifier) Refresh(ctx context.Context) {
	count, err := n.query(ctx)
	if err != nil {
		if n.logg != nil && ctx.Err() == nil {
			n.logg.Warn(n.logg.WithField(ctx, "error", err.Error()), "pending count re-query failed")
		}
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.store(count)
}

func (n *Notifier) query(ctx context.Context) (int64, error) {
	queryCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	start := time.Now()
	count, err := n.counter.CountPending(queryCtx)
	n.metrics.ObserveRequery(time.Since(start), err)
	return count, err
}

// store must be called with mu held.
func (n *Notifier) store(count int64) {
	n.count.Store(count)
	n.metrics.SetPending(count)
	for _, ch := range n.watchers {
		// keep only the newest value for slow watchers
		select {
		case <-ch:
		default:
		}
		ch <- count
	}
}

// Count returns the latest known pending count.
func (n *Notifier) Count() int64 {
	return n.count.Load()
}

// Initialized reports whether the notifier is running.
func (n *Notifier) Initialized() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.initialized
}

// Watch returns a channel that receives the current count followed by every
// change. The channel closes on cancel or Dispose.
func (n *Notifier) Watch() (<-chan int64, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan int64, 1)
	if !n.initialized {
		close(ch)
		return ch, func() {}
	}
	id := n.nextWatcher
	n.nextWatcher++
	n.watchers[id] = ch
	ch <- n.count.Load()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			if w, ok := n.watchers[id]; ok {
				delete(n.watchers, id)
				close(w)
			}
		})
	}
}

// Dispose stops the refresh loop, closes the subscription and every watcher.
// It is safe to call more than once.
func (n *Notifier) Dispose() error {
	n.mu.Lock()
	if !n.initialized {
		n.mu.Unlock()
		return nil
	}
	sub, stop, done := n.sub, n.stop, n.done
	n.sub, n.stop, n.done = nil, nil, nil
	n.initialized = false
	n.mu.Unlock()

	stop()
	err := sub.Close()
	select {
	case <-done:
	case <-time.After(n.timeout):
		err = multierr.Append(err, errors.New("refresh loop did not stop"))
	}

	n.mu.Lock()
	for id, ch := range n.watchers {
		delete(n.watchers, id)
		close(ch)
	}
	n.mu.Unlock()

	if n.logg != nil {
		n.logg.Info(context.Background(), "pending count notifier stopped")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dispose pending count notifier")
	}
	return nil
}
