// Package timer реализует таблицу периодических таймеров.
// Вызывающий получает Handle - индекс слота с поколением, а не указатель;
// все обращения проверяются по границам и поколению.
package timer

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultCapacity число слотов по умолчанию
const DefaultCapacity = 20

var (
	// ErrTableFull все слоты заняты
	ErrTableFull = errors.New("timer: table is full")
	// ErrInvalidHandle индекс вне таблицы или слот уже освобожден
	ErrInvalidHandle = errors.New("timer: invalid handle")
	// ErrInvalidPeriod период должен быть положительным
	ErrInvalidPeriod = errors.New("timer: period must be > 0")
	// ErrNilCallback не задан обработчик
	ErrNilCallback = errors.New("timer: callback is nil")
)

// Handle стабильная ссылка на слот таблицы
type Handle struct {
	index int
	gen   uint32
}

// Index номер слота
func (h Handle) Index() int {
	return h.index
}

func (h Handle) String() string {
	return fmt.Sprintf("timer#%d.%d", h.index, h.gen)
}

type slot struct {
	gen      uint32
	used     bool
	callback func()
	period   time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// Table владеет фиксированным массивом слотов
type Table struct {
	mu    sync.Mutex
	slots []slot
}

// NewTable создает таблицу на capacity таймеров
func NewTable(capacity int) *Table {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Table{slots: make([]slot, capacity)}
}

// Register занимает свободный слот под callback
func (t *Table) Register(callback func()) (Handle, error) {
	if callback == nil {
		return Handle{}, ErrNilCallback
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.slots {
		s := &t.slots[i]
		if s.used {
			continue
		}
		s.gen++
		s.used = true
		s.callback = callback
		return Handle{index: i, gen: s.gen}, nil
	}
	return Handle{}, ErrTableFull
}

// Start запускает вызов callback с периодом period. Уже запущенный
// таймер сначала синхронно останавливается.
func (t *Table) Start(h Handle, period time.Duration) error {
	if period <= 0 {
		return ErrInvalidPeriod
	}
	for {
		if err := t.Stop(h); err != nil {
			return err
		}

		t.mu.Lock()
		s, err := t.lookup(h)
		if err != nil {
			t.mu.Unlock()
			return err
		}
		// конкурентный Start успел запустить таймер
		if s.stop != nil {
			t.mu.Unlock()
			continue
		}
		s.period = period
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go run(s.callback, period, s.stop, s.done)
		t.mu.Unlock()
		return nil
	}
}

// Stop останавливает таймер. После возврата callback не выполняется
// и не будет вызван. Повторный Stop ничего не делает.
// Нельзя вызывать из самого callback.
func (t *Table) Stop(h Handle) error {
	t.mu.Lock()
	s, err := t.lookup(h)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	t.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}

// Running сообщает, запущен ли таймер
func (t *Table) Running(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.lookup(h)
	return err == nil && s.stop != nil
}

// Release останавливает таймер и освобождает слот. Handle после этого
// недействителен.
func (t *Table) Release(h Handle) error {
	if err := t.Stop(h); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.lookup(h)
	if err != nil {
		return err
	}
	s.used = false
	s.callback = nil
	s.period = 0
	return nil
}

// Active число занятых слотов
func (t *Table) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for i := range t.slots {
		if t.slots[i].used {
			n++
		}
	}
	return n
}

// Close останавливает все запущенные таймеры
func (t *Table) Close() {
	t.mu.Lock()
	handles := make([]Handle, 0, len(t.slots))
	for i := range t.slots {
		if t.slots[i].used {
			handles = append(handles, Handle{index: i, gen: t.slots[i].gen})
		}
	}
	t.mu.Unlock()

	for _, h := range handles {
		_ = t.Stop(h)
	}
}

func (t *Table) lookup(h Handle) (*slot, error) {
	if h.index < 0 || h.index >= len(t.slots) {
		return nil, fmt.Errorf("%w: index %d out of range", ErrInvalidHandle, h.index)
	}
	s := &t.slots[h.index]
	if !s.used || s.gen != h.gen {
		return nil, fmt.Errorf("%w: %s is stale", ErrInvalidHandle, h)
	}
	return s, nil
}

// run выполняется в собственной горутине таймера
func run(callback func(), period time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// stop имеет приоритет над накопившимся тиком
			select {
			case <-stop:
				return
			default:
			}
			callback()
		}
	}
}
