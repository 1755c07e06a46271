package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/mmeshcher/atompoint/internal/metrics"
)

type stubStore struct {
	mu      sync.Mutex
	saved   map[int64][]string
	err     error
	release chan struct{}
}

func newStubStore() *stubStore {
	return &stubStore{saved: make(map[int64][]string)}
}

func (s *stubStore) CreateNotification(ctx context.Context, userID int64, message string) error {
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[userID] = append(s.saved[userID], message)
	return nil
}

func (s *stubStore) messages(userID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved[userID]
}

func TestDispatcher_DeliversQueuedMessagesOnClose(t *testing.T) {
	store := newStubStore()
	m := metrics.Noop()
	d := NewDispatcher(store, zaptest.NewLogger(t), m, 2, 16)

	d.Notify(1, "hello")
	d.Notify(1, "world")
	d.Notify(2, "other")
	d.Close()

	assert.ElementsMatch(t, []string{"hello", "world"}, store.messages(1))
	assert.Equal(t, []string{"other"}, store.messages(2))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.NotificationsSent))
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	store := newStubStore()
	store.release = make(chan struct{})
	m := metrics.Noop()
	d := NewDispatcher(store, zaptest.NewLogger(t), m, 1, 1)

	// Первое сообщение занимает воркер, второе заполняет очередь.
	d.Notify(1, "a")
	d.Notify(1, "b")
	d.Notify(1, "c")
	d.Notify(1, "d")

	assert.GreaterOrEqual(t, testutil.ToFloat64(m.NotificationsDropped.WithLabelValues("queue_full")), 1.0)

	close(store.release)
	d.Close()
}

func TestDispatcher_StoreErrorIsSwallowed(t *testing.T) {
	store := newStubStore()
	store.err = errors.New("db down")
	m := metrics.Noop()
	d := NewDispatcher(store, zaptest.NewLogger(t), m, 1, 4)

	d.Notify(1, "lost")
	d.Close()

	assert.Empty(t, store.messages(1))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsDropped.WithLabelValues("store_error")))
}

func TestDispatcher_NotifyAfterClose(t *testing.T) {
	store := newStubStore()
	m := metrics.Noop()
	d := NewDispatcher(store, zaptest.NewLogger(t), m, 1, 4)
	d.Close()

	assert.NotPanics(t, func() { d.Notify(1, "late") })
	assert.NotPanics(t, d.Close)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsDropped.WithLabelValues("closed")))
}
