// Package controller реализует главный цикл: конечный автомат состояния
// канала связи, который запускает и останавливает сбор данных, ведет
// оценку пульса и отправляет записи потребителю.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"ppg-service/internal/indicator"
	"ppg-service/internal/metrics"
	"ppg-service/internal/models"
)

const (
	// DefaultReceiveTimeout ожидание измерения в очереди
	DefaultReceiveTimeout = 10 * time.Millisecond
	// DefaultPollInterval опрос канала в состоянии Disconnected
	DefaultPollInterval = 100 * time.Millisecond
)

// Link канал связи с потребителем
type Link interface {
	IsOpen() bool
	Write(p []byte) (int, error)
}

// Indicator индикатор состояния
type Indicator interface {
	SetColor(c models.Color)
}

// Acquisition периодический сбор измерений
type Acquisition interface {
	Start(period time.Duration) error
	Stop()
	Running() bool
}

// Source очередь измерений со стороны потребителя
type Source interface {
	Get(ctx context.Context, timeout time.Duration) (models.Measurement, bool)
}

// Estimator оценка пульса
type Estimator interface {
	Process(sample float32) uint8
	Estimates() uint64
}

// Submitter получает копию каждой отправленной записи
type Submitter interface {
	Submit(rec models.Record) bool
}

// Config параметры контроллера
type Config struct {
	SamplePeriod   time.Duration
	ReceiveTimeout time.Duration
	PollInterval   time.Duration
	ReadyColor     models.Color
	WaitingColor   models.Color
}

// DefaultConfig параметры для 50 Гц
func DefaultConfig() Config {
	return Config{
		SamplePeriod:   20 * time.Millisecond,
		ReceiveTimeout: DefaultReceiveTimeout,
		PollInterval:   DefaultPollInterval,
		ReadyColor:     indicator.Ready,
		WaitingColor:   indicator.Waiting,
	}
}

// Deps коллабораторы контроллера. Submitter необязателен.
type Deps struct {
	Link        Link
	Indicator   Indicator
	Acquisition Acquisition
	Source      Source
	Estimator   Estimator
	Submitter   Submitter
}

// Controller конечный автомат Disconnected/Connected
type Controller struct {
	cfg  Config
	deps Deps

	state   atomic.Int32
	started bool
	buf     [models.RecordBufferSize]byte

	emitted       atomic.Uint64
	writeFailures atomic.Uint64
	lastBPM       atomic.Uint32
}

// New проверяет конфигурацию и создает контроллер в состоянии Disconnected
func New(cfg Config, deps Deps) (*Controller, error) {
	if cfg.SamplePeriod <= 0 || cfg.ReceiveTimeout <= 0 || cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("controller: non-positive period or timeout in %+v", cfg)
	}
	if deps.Link == nil || deps.Indicator == nil || deps.Acquisition == nil ||
		deps.Source == nil || deps.Estimator == nil {
		return nil, errors.New("controller: missing collaborator")
	}
	return &Controller{cfg: cfg, deps: deps}, nil
}

// State текущее состояние
func (c *Controller) State() models.ConnectionState {
	return models.ConnectionState(c.state.Load())
}

// Emitted количество отправленных записей
func (c *Controller) Emitted() uint64 {
	return c.emitted.Load()
}

// WriteFailures количество неудачных отправок
func (c *Controller) WriteFailures() uint64 {
	return c.writeFailures.Load()
}

// BPM последняя отправленная оценка
func (c *Controller) BPM() uint8 {
	return uint8(c.lastBPM.Load())
}

// Run выполняет цикл до отмены ctx. При выходе сбор останавливается.
func (c *Controller) Run(ctx context.Context) error {
	log.Printf("[Controller] Started (period=%v, receive timeout=%v, poll=%v)",
		c.cfg.SamplePeriod, c.cfg.ReceiveTimeout, c.cfg.PollInterval)
	defer func() {
		if c.State() == models.Connected {
			c.disconnect("shutdown")
		}
		log.Printf("[Controller] Stopped after %d records", c.Emitted())
	}()

	for {
		if err := c.Step(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// Step выполняет одну итерацию цикла. Единственные точки ожидания:
// опрос канала в Disconnected и получение из очереди в Connected.
func (c *Controller) Step(ctx context.Context) error {
	if !c.started {
		c.started = true
		c.deps.Indicator.SetColor(c.cfg.WaitingColor)
	}

	switch c.State() {
	case models.Disconnected:
		if c.deps.Link.IsOpen() {
			return c.connect()
		}
		return sleep(ctx, c.cfg.PollInterval)

	case models.Connected:
		if !c.deps.Link.IsOpen() {
			c.disconnect("link closed")
			return nil
		}
		m, ok := c.deps.Source.Get(ctx, c.cfg.ReceiveTimeout)
		if !ok {
			return ctx.Err()
		}
		c.emit(m)
		return nil
	}
	return fmt.Errorf("controller: unknown state %v", c.State())
}

func (c *Controller) connect() error {
	c.deps.Indicator.SetColor(c.cfg.ReadyColor)
	if err := c.deps.Acquisition.Start(c.cfg.SamplePeriod); err != nil {
		c.deps.Indicator.SetColor(c.cfg.WaitingColor)
		return fmt.Errorf("failed to start acquisition: %w", err)
	}
	c.state.Store(int32(models.Connected))
	metrics.SetLinkState(true)
	log.Printf("[Controller] Link up, acquisition started")
	return nil
}

func (c *Controller) disconnect(reason string) {
	c.deps.Acquisition.Stop()
	c.deps.Indicator.SetColor(c.cfg.WaitingColor)
	c.state.Store(int32(models.Disconnected))
	metrics.SetLinkState(false)
	log.Printf("[Controller] Link down (%s), acquisition stopped", reason)
}

func (c *Controller) emit(m models.Measurement) {
	before := c.deps.Estimator.Estimates()
	start := time.Now()
	bpm := c.deps.Estimator.Process(float32(m.Filtered))
	fresh := c.deps.Estimator.Estimates() != before
	if fresh {
		metrics.EstimateLatency.Observe(time.Since(start).Seconds())
		metrics.EstimatesTotal.Inc()
		metrics.CurrentBPM.Set(float64(bpm))
	}

	rec := models.NewRecord(m, bpm, fresh)
	line := models.AppendRecord(c.buf[:0], rec)
	if _, err := c.deps.Link.Write(line); err != nil {
		c.writeFailures.Add(1)
		log.Printf("[Controller] Write failed: %v", err)
		c.disconnect("write failed")
		return
	}

	c.emitted.Add(1)
	c.lastBPM.Store(uint32(bpm))
	metrics.RecordsEmitted.Inc()
	if c.deps.Submitter != nil {
		c.deps.Submitter.Submit(rec)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
