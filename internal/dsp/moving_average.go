package dsp

import "errors"

// ErrZeroLength окно скользящего среднего нулевой длины
var ErrZeroLength = errors.New("dsp: moving average length must be > 0")

// MovingAverage скользящее среднее с бегущей суммой
type MovingAverage[T Float] struct {
	samples []T
	tail    int
	sum     T
}

// NewMovingAverage создает фильтр на n отсчетов
func NewMovingAverage[T Float](n int) (*MovingAverage[T], error) {
	if n <= 0 {
		return nil, ErrZeroLength
	}
	return &MovingAverage[T]{samples: make([]T, n)}, nil
}

// Apply добавляет отсчет и возвращает среднее по окну.
// До заполнения окна недостающие отсчеты считаются нулевыми.
func (m *MovingAverage[T]) Apply(sample T) T {
	m.sum -= m.samples[m.tail]
	m.sum += sample
	m.samples[m.tail] = sample
	m.tail++
	if m.tail == len(m.samples) {
		m.tail = 0
	}
	return m.sum / T(len(m.samples))
}

// Reset очищает окно
func (m *MovingAverage[T]) Reset() {
	clear(m.samples)
	m.tail = 0
	m.sum = 0
}
