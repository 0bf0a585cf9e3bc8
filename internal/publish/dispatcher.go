// Package publish раздает готовые записи внешним приемникам
// (аналитика, Redis, NATS, MQTT) вне горячего пути контроллера
package publish

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"ppg-service/internal/metrics"
	"ppg-service/internal/models"
)

// DefaultTimeout ограничение на одну публикацию
const DefaultTimeout = 2 * time.Second

// Sink приемник записей
type Sink interface {
	Name() string
	Publish(ctx context.Context, rec models.Record) error
}

// Dispatcher буферизует записи и раздает их приемникам в фоновой горутине
type Dispatcher struct {
	sinks    []Sink
	records  chan models.Record
	stopChan chan struct{}
	wg       sync.WaitGroup
	timeout  time.Duration

	startOnce sync.Once
	stopOnce  sync.Once

	submitted atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

// NewDispatcher создает диспетчер с буфером bufferSize
func NewDispatcher(bufferSize int, timeout time.Duration, sinks ...Sink) *Dispatcher {
	if bufferSize < 1 {
		bufferSize = 1
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		sinks:    sinks,
		records:  make(chan models.Record, bufferSize),
		stopChan: make(chan struct{}),
		timeout:  timeout,
	}
}

// Sinks возвращает имена подключенных приемников
func (d *Dispatcher) Sinks() []string {
	names := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Start запускает горутину раздачи
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		d.wg.Add(1)
		go d.worker()
	})
}

// Submit ставит запись в очередь без блокировки.
// При переполненном буфере запись отбрасывается.
func (d *Dispatcher) Submit(rec models.Record) bool {
	select {
	case d.records <- rec:
		d.submitted.Add(1)
		return true
	default:
		d.dropped.Add(1)
		metrics.SinkDropped.Inc()
		return false
	}
}

// Stop останавливает раздачу, дообработав буфер
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopChan)
	})
	d.wg.Wait()
}

// Stats счетчики диспетчера
func (d *Dispatcher) Stats() (submitted, dropped, failed uint64) {
	return d.submitted.Load(), d.dropped.Load(), d.failed.Load()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case rec := <-d.records:
			d.dispatch(rec)
		case <-d.stopChan:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case rec := <-d.records:
			d.dispatch(rec)
		default:
			return
		}
	}
}

func (d *Dispatcher) dispatch(rec models.Record) {
	for _, s := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := s.Publish(ctx, rec)
		cancel()
		if err != nil {
			n := d.failed.Add(1)
			metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			if n == 1 || n%100 == 0 {
				log.Printf("[Publish] Sink %s failed (%d failures total): %v", s.Name(), n, err)
			}
		}
	}
}
