// Package notify доставляет уведомления пользователям в фоне, не задерживая
// транзакции движка заказов.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/atompoint/internal/metrics"
)

const writeTimeout = 5 * time.Second

// Store сохраняет уведомление во входящие пользователя.
type Store interface {
	CreateNotification(ctx context.Context, userID int64, message string) error
}

type message struct {
	userID int64
	text   string
}

// Dispatcher принимает уведомления в буферизованную очередь и сохраняет их пулом воркеров.
// Notify никогда не блокирует вызывающего: при переполненной очереди сообщение отбрасывается.
type Dispatcher struct {
	store   Store
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	queue  chan message
	wg     sync.WaitGroup
}

// NewDispatcher создаёт диспетчер и запускает workers воркеров.
func NewDispatcher(store Store, logger *zap.Logger, m *metrics.Metrics, workers, queueSize int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	d := &Dispatcher{
		store:   store,
		logger:  logger,
		metrics: m,
		queue:   make(chan message, queueSize),
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}

	return d
}

// Notify ставит сообщение в очередь доставки.
func (d *Dispatcher) Notify(userID int64, text string) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop("closed", userID)
		return
	}

	select {
	case d.queue <- message{userID: userID, text: text}:
	default:
		d.drop("queue_full", userID)
	}
}

// Close прекращает приём сообщений и дожидается доставки уже поставленных в очередь.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for msg := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := d.store.CreateNotification(ctx, msg.userID, msg.text)
		cancel()

		if err != nil {
			d.logger.Error("save notification", zap.Error(err), zap.Int64("userID", msg.userID))
			d.metrics.NotificationsDropped.WithLabelValues("store_error").Inc()
			continue
		}
		d.metrics.NotificationsSent.Inc()
	}
}

func (d *Dispatcher) drop(reason string, userID int64) {
	d.logger.Warn("notification dropped", zap.String("reason", reason), zap.Int64("userID", userID))
	d.metrics.NotificationsDropped.WithLabelValues(reason).Inc()
}
