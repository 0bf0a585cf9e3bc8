// Package queue реализует ограниченную очередь измерений между
// периодическим сборщиком и основным циклом
package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"ppg-service/internal/models"
)

// DefaultCapacity емкость очереди по умолчанию
const DefaultCapacity = 10

// ErrInvalidCapacity емкость должна быть положительной
var ErrInvalidCapacity = errors.New("queue: capacity must be > 0")

// Queue FIFO фиксированной емкости для одного производителя и одного
// потребителя. Put не блокируется и не выделяет память; при переполнении
// новое измерение отбрасывается, содержимое не меняется.
type Queue struct {
	items    chan models.Measurement
	dropped  atomic.Uint64
	accepted atomic.Uint64
}

// New создает очередь емкостью capacity
func New(capacity int) (*Queue, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &Queue{items: make(chan models.Measurement, capacity)}, nil
}

// Put добавляет измерение без ожидания. false означает, что очередь
// заполнена и измерение отброшено; повторять не нужно.
func (q *Queue) Put(m models.Measurement) bool {
	select {
	case q.items <- m:
		q.accepted.Add(1)
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Get возвращает самое старое измерение, ожидая не дольше timeout.
// false при истечении таймаута или отмене ctx.
func (q *Queue) Get(ctx context.Context, timeout time.Duration) (models.Measurement, bool) {
	// быстрый путь без таймера
	select {
	case m := <-q.items:
		return m, true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case m := <-q.items:
		return m, true
	case <-timer.C:
		return models.Measurement{}, false
	case <-ctx.Done():
		return models.Measurement{}, false
	}
}

// Len текущее число измерений в очереди
func (q *Queue) Len() int {
	return len(q.items)
}

// Cap емкость очереди
func (q *Queue) Cap() int {
	return cap(q.items)
}

// Dropped число отброшенных измерений
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Accepted число принятых измерений
func (q *Queue) Accepted() uint64 {
	return q.accepted.Load()
}
