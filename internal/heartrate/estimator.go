// Package heartrate оценивает частоту пульса по спектру скользящего окна
// отфильтрованного сигнала
package heartrate

import (
	"fmt"
	"math"

	"ppg-service/internal/dsp"
)

// Transform спектральное преобразование: |X[k]|^2 для k в [0, N/2)
type Transform interface {
	MagnitudeSquared(dst, window []float32) []float32
}

// Estimator конечный автомат "заполнение -> оценка".
// Не безопасен для конкурентного использования: принадлежит основному циклу.
type Estimator struct {
	cfg       Config
	transform Transform

	window []float32
	mag    []float32
	pos    int

	bpm       uint8
	bin       int
	estimates uint64
}

// New создает оценщик. При transform == nil используется БПФ длины
// cfg.FFTLength.
func New(cfg Config, transform Transform) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if transform == nil {
		s, err := dsp.NewSpectrum(cfg.FFTLength)
		if err != nil {
			return nil, fmt.Errorf("heartrate: %w", err)
		}
		transform = s
	}

	return &Estimator{
		cfg:       cfg,
		transform: transform,
		window:    make([]float32, cfg.FFTLength),
		mag:       make([]float32, cfg.FFTLength/2),
	}, nil
}

// Process добавляет отсчет и возвращает текущую оценку. Новая оценка
// вычисляется один раз на NumSamples отсчетов; между ними возвращается
// предыдущее значение (0 до первого полного окна).
func (e *Estimator) Process(sample float32) uint8 {
	e.window[e.offset()+e.pos] = sample
	e.pos++
	if e.pos < e.cfg.NumSamples {
		return e.bpm
	}

	e.estimate()
	e.advance()
	return e.bpm
}

// BPM последняя оценка
func (e *Estimator) BPM() uint8 {
	return e.bpm
}

// Bin индекс бина последней оценки, -1 если оценки еще не было
// или спектр не содержал конечных значений
func (e *Estimator) Bin() int {
	if e.estimates == 0 {
		return -1
	}
	return e.bin
}

// Estimates число выполненных оценок
func (e *Estimator) Estimates() uint64 {
	return e.estimates
}

// Pending отсчетов накоплено с последней оценки
func (e *Estimator) Pending() int {
	return e.pos
}

// Window копия текущего окна длины FFTLength
func (e *Estimator) Window() []float32 {
	out := make([]float32, len(e.window))
	copy(out, e.window)
	return out
}

// Config конфигурация оценщика
func (e *Estimator) Config() Config {
	return e.cfg
}

// offset позиция первого нового отсчета в окне
func (e *Estimator) offset() int {
	if e.cfg.Policy == PolicySlide {
		return e.cfg.History - e.cfg.NumSamples
	}
	return 0
}

func (e *Estimator) estimate() {
	e.mag = e.transform.MagnitudeSquared(e.mag, e.window)

	from := 0
	if e.cfg.ExcludeDC {
		from = 1
	}
	// при равенстве выигрывает меньший индекс
	e.bin = dsp.ArgMax(e.mag, from)
	e.bpm = BinToBPM(e.bin, e.cfg.SampleRate, e.cfg.FFTLength)
	e.estimates++
}

func (e *Estimator) advance() {
	switch e.cfg.Policy {
	case PolicySlide:
		copy(e.window, e.window[e.cfg.NumSamples:e.cfg.History])
	case PolicyReset:
		clear(e.window)
	}
	e.pos = 0
}

// BinToBPM переводит индекс бина в удары в минуту:
// 60 * (fs/2) * bin / (N/2), с округлением и насыщением на 255.
// Отрицательный бин дает 0.
func BinToBPM(bin, sampleRate, fftLength int) uint8 {
	if bin <= 0 {
		return 0
	}
	bpm := math.Round(60 * float64(bin) * float64(sampleRate) / float64(fftLength))
	if bpm > math.MaxUint8 {
		return math.MaxUint8
	}
	return uint8(bpm)
}
