package controllers

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type chanWatcher struct {
	ch       chan int64
	once     sync.Once
	canceled chan struct{}
}

func newChanWatcher() *chanWatcher {
	return &chanWatcher{ch: make(chan int64, 4), canceled: make(chan struct{})}
}

func (w *chanWatcher) Watch() (<-chan int64, func()) {
	return w.ch, func() { w.once.Do(func() { close(w.canceled) }) }
}

func TestPendingCountSocketPushesUpdates(t *testing.T) {
	watcher := newChanWatcher()
	server := httptest.NewServer(PendingCountSocket(watcher, nil, testLogger()))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	watcher.ch <- 3
	watcher.ch <- 2

	for _, want := range []int64{3, 2} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var frame pendingCountResponse
		require.NoError(t, conn.ReadJSON(&frame))
		require.Equal(t, want, frame.Pending)
	}

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	select {
	case <-watcher.canceled:
	case <-time.After(2 * time.Second):
		t.Fatal("expected watch to be canceled after client disconnect")
	}
}

func TestPendingCountSocketClosesWhenFeedEnds(t *testing.T) {
	watcher := newChanWatcher()
	server := httptest.NewServer(PendingCountSocket(watcher, nil, testLogger()))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	close(watcher.ch)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
}

func TestOriginChecker(t *testing.T) {
	require.Nil(t, originChecker(nil))

	check := originChecker([]string{"http://localhost:3000"})
	req := httptest.NewRequest("GET", "/ws/pending-count", nil)
	require.True(t, check(req))

	req.Header.Set("Origin", "http://localhost:3000")
	require.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example")
	require.False(t, check(req))
}
