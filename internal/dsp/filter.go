// Package dsp реализует цифровые фильтры и спектральное преобразование
// для обработки сигнала фотоплетизмограммы
package dsp

import (
	"errors"
	"fmt"
)

const (
	// CoeffsPerSection коэффициентов на одну биквадратную секцию: b0, b1, b2, a1, a2
	CoeffsPerSection = 5
	// StatesPerSection переменных состояния на секцию
	StatesPerSection = 2
	// PulseBandOrder порядок полосового фильтра пульсового диапазона
	PulseBandOrder = 2
)

// PulseBand коэффициенты полосового фильтра второго порядка для 50 Гц
var PulseBand = []float32{0.13672873, 0, -0.13672873, 1.705965, -0.72654253}

var (
	// ErrZeroOrder фильтр нулевого порядка
	ErrZeroOrder = errors.New("dsp: filter order must be > 0")
	// ErrCoefficientCount число коэффициентов не соответствует порядку
	ErrCoefficientCount = errors.New("dsp: coefficient count does not match filter order")
	// ErrBlockLength длины входного и выходного блоков различаются
	ErrBlockLength = errors.New("dsp: input and output blocks differ in length")
)

// Float ограничение на тип отсчета
type Float interface {
	~float32 | ~float64
}

// Filter общий контракт фильтра: один отсчет на входе, один на выходе
type Filter[T Float] interface {
	Apply(sample T) T
}

// Sections возвращает число биквадратных секций для фильтра порядка order
func Sections(order int) int {
	return order/2 + order%2
}

// Cascade каскад биквадратных секций в транспонированной прямой форме II.
// Знаки a1, a2 соответствуют CMSIS-DSP (уже инвертированы):
//
//	y  = b0*x + d1
//	d1 = b1*x + a1*y + d2
//	d2 = b2*x + a2*y
type Cascade[T Float] struct {
	coeffs []T
	state  []T
}

// NewCascade создает фильтр порядка order. Коэффициенты копируются
// и далее только читаются.
func NewCascade[T Float](order int, coeffs []T) (*Cascade[T], error) {
	if order <= 0 {
		return nil, ErrZeroOrder
	}
	n := Sections(order)
	if len(coeffs) != n*CoeffsPerSection {
		return nil, fmt.Errorf("%w: order %d needs %d, got %d",
			ErrCoefficientCount, order, n*CoeffsPerSection, len(coeffs))
	}

	c := &Cascade[T]{
		coeffs: make([]T, len(coeffs)),
		state:  make([]T, n*StatesPerSection),
	}
	copy(c.coeffs, coeffs)
	return c, nil
}

// Apply фильтрует один отсчет
func (c *Cascade[T]) Apply(sample T) T {
	return c.step(sample)
}

// ApplyBlock фильтрует блок src в dst той же длины. dst и src могут совпадать.
// Результат побитово совпадает с поотсчетным вызовом Apply.
func (c *Cascade[T]) ApplyBlock(dst, src []T) error {
	if len(dst) != len(src) {
		return ErrBlockLength
	}
	for i, x := range src {
		dst[i] = c.step(x)
	}
	return nil
}

// Reset обнуляет состояние, коэффициенты не меняются
func (c *Cascade[T]) Reset() {
	clear(c.state)
}

// Sections возвращает число секций
func (c *Cascade[T]) Sections() int {
	return len(c.state) / StatesPerSection
}

func (c *Cascade[T]) step(x T) T {
	// T(...) запрещает слияние в FMA: Apply и ApplyBlock округляют одинаково.
	for k, d := 0, 0; d < len(c.state); k, d = k+CoeffsPerSection, d+StatesPerSection {
		b0, b1, b2 := c.coeffs[k], c.coeffs[k+1], c.coeffs[k+2]
		a1, a2 := c.coeffs[k+3], c.coeffs[k+4]

		y := T(b0*x) + c.state[d]
		c.state[d] = T(T(b1*x)+T(a1*y)) + c.state[d+1]
		c.state[d+1] = T(b2*x) + T(a2*y)
		x = y
	}
	return x
}
