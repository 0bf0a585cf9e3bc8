// Package acquisition реализует периодический сбор отсчетов датчика:
// чтение, фильтрация, метка времени и передача в очередь измерений
package acquisition

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sync/atomic"
	"time"

	"ppg-service/internal/metrics"
	"ppg-service/internal/models"
	"ppg-service/internal/timer"
)

// dropLogEvery частота предупреждений о потерянных отсчетах
const dropLogEvery = 100

// Sensor источник сырых значений. ok=false - чтение не удалось,
// побочных эффектов нет.
type Sensor interface {
	Read() (value uint16, ok bool)
}

// Clock монотонные часы в микросекундах
type Clock interface {
	NowMicros() uint64
}

// Filter фильтр сглаживания сырого сигнала
type Filter interface {
	Apply(sample float32) float32
}

// Sink приемник измерений; Put не должен блокироваться
type Sink interface {
	Put(m models.Measurement) bool
}

// Stats счетчики сборщика
type Stats struct {
	Acquired     uint64 `json:"acquired"`
	ReadFailures uint64 `json:"read_failures"`
	Dropped      uint64 `json:"dropped"`
	Running      bool   `json:"running"`
}

// Scheduler вызывает Tick с фиксированным периодом через таблицу таймеров.
// Состояние фильтра сохраняется между Start/Stop.
type Scheduler struct {
	timers *timer.Table
	handle timer.Handle

	sensor Sensor
	clock  Clock
	filter Filter
	sink   Sink

	acquired     atomic.Uint64
	readFailures atomic.Uint64
	dropped      atomic.Uint64
}

// NewScheduler регистрирует сборщик в таблице таймеров
func NewScheduler(timers *timer.Table, sensor Sensor, clock Clock, filter Filter, sink Sink) (*Scheduler, error) {
	if timers == nil || sensor == nil || clock == nil || filter == nil || sink == nil {
		return nil, errors.New("acquisition: all collaborators are required")
	}

	s := &Scheduler{
		timers: timers,
		sensor: sensor,
		clock:  clock,
		filter: filter,
		sink:   sink,
	}

	h, err := timers.Register(s.Tick)
	if err != nil {
		return nil, fmt.Errorf("acquisition: failed to register timer: %w", err)
	}
	s.handle = h
	return s, nil
}

// Start начинает сбор с периодом period
func (s *Scheduler) Start(period time.Duration) error {
	if err := s.timers.Start(s.handle, period); err != nil {
		return fmt.Errorf("acquisition: failed to start: %w", err)
	}
	log.Printf("[Acquisition] Started, period %s", period)
	return nil
}

// Stop синхронно останавливает сбор: после возврата Tick не выполняется.
// На остановленном сборщике ничего не делает.
func (s *Scheduler) Stop() {
	if !s.timers.Running(s.handle) {
		return
	}
	if err := s.timers.Stop(s.handle); err != nil {
		log.Printf("[Acquisition] Warning: stop failed: %v", err)
		return
	}
	log.Printf("[Acquisition] Stopped")
}

// Running сообщает, идет ли сбор
func (s *Scheduler) Running() bool {
	return s.timers.Running(s.handle)
}

// Close освобождает слот таймера
func (s *Scheduler) Close() error {
	return s.timers.Release(s.handle)
}

// Tick один цикл сбора. Выполняется в контексте таймера и не блокируется.
func (s *Scheduler) Tick() {
	raw, ok := s.sensor.Read()
	if !ok {
		// отсчет пропускается целиком, фильтр не трогаем
		s.readFailures.Add(1)
		metrics.SensorReadFailures.Inc()
		return
	}

	sample := models.RawSample{Timestamp: s.clock.NowMicros(), Value: raw}
	m := models.Measurement{
		Timestamp: sample.Timestamp,
		Raw:       sample.Value,
		Filtered:  toInt16(s.filter.Apply(float32(sample.Value))),
	}
	s.acquired.Add(1)
	metrics.SamplesAcquired.Inc()

	if !s.sink.Put(m) {
		n := s.dropped.Add(1)
		metrics.SamplesDropped.Inc()
		if n == 1 || n%dropLogEvery == 0 {
			log.Printf("[Acquisition] Warning: queue is full, sample dropped (%d total)", n)
		}
	}
}

// Stats возвращает снимок счетчиков
func (s *Scheduler) Stats() Stats {
	return Stats{
		Acquired:     s.acquired.Load(),
		ReadFailures: s.readFailures.Load(),
		Dropped:      s.dropped.Load(),
		Running:      s.Running(),
	}
}

// toInt16 отбрасывает дробную часть с насыщением на границах int16
func toInt16(v float32) int16 {
	switch {
	case math.IsNaN(float64(v)):
		return 0
	case v >= math.MaxInt16:
		return math.MaxInt16
	case v <= math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}
