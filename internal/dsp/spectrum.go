package dsp

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// ErrLengthNotPowerOfTwo длина преобразования не степень двойки
var ErrLengthNotPowerOfTwo = errors.New("dsp: transform length must be a power of two")

// Spectrum вещественное БПФ фиксированной длины N.
// Буферы выделяются один раз при создании; экземпляр не безопасен
// для конкурентного использования.
type Spectrum struct {
	n      int
	fft    *fourier.FFT
	seq    []float64
	coeffs []complex128
}

// IsPowerOfTwo проверяет n > 0 и n = 2^k
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// NewSpectrum создает преобразование длины n
func NewSpectrum(n int) (*Spectrum, error) {
	if !IsPowerOfTwo(n) || n < 2 {
		return nil, fmt.Errorf("%w: %d", ErrLengthNotPowerOfTwo, n)
	}
	return &Spectrum{
		n:      n,
		fft:    fourier.NewFFT(n),
		seq:    make([]float64, n),
		coeffs: make([]complex128, n/2+1),
	}, nil
}

// Len длина преобразования
func (s *Spectrum) Len() int {
	return s.n
}

// Bins число выходных бинов (N/2)
func (s *Spectrum) Bins() int {
	return s.n / 2
}

// MagnitudeSquared вычисляет |X[k]|^2 для k в [0, N/2) и пишет в dst.
// Если cap(dst) < N/2, выделяется новый срез.
func (s *Spectrum) MagnitudeSquared(dst, window []float32) []float32 {
	s.transform(window)
	dst = resize(dst, s.n/2)
	for k := range dst {
		c := s.coeffs[k]
		dst[k] = float32(real(c)*real(c) + imag(c)*imag(c))
	}
	return dst
}

// PhaseRad вычисляет фазу каждого бина в радианах
func (s *Spectrum) PhaseRad(dst, window []float32) []float32 {
	s.transform(window)
	dst = resize(dst, s.n/2)
	for k := range dst {
		dst[k] = float32(cmplx.Phase(s.coeffs[k]))
	}
	return dst
}

func (s *Spectrum) transform(window []float32) {
	if len(window) != s.n {
		panic(fmt.Sprintf("dsp: window length %d, transform length %d", len(window), s.n))
	}
	for i, v := range window {
		s.seq[i] = float64(v)
	}
	s.coeffs = s.fft.Coefficients(s.coeffs, s.seq)
}

func resize(dst []float32, n int) []float32 {
	if cap(dst) < n {
		return make([]float32, n)
	}
	return dst[:n]
}

// BinFrequency частота бина k в Гц для частоты дискретизации fs
func BinFrequency(k, n int, fs float64) float64 {
	return float64(k) * fs / float64(n)
}

// ArgMax индекс первого максимального элемента, начиная с from.
// Возвращает -1 для пустого диапазона.
func ArgMax(v []float32, from int) int {
	best := -1
	peak := float32(math.Inf(-1))
	for i := from; i < len(v); i++ {
		if v[i] > peak {
			peak = v[i]
			best = i
		}
	}
	return best
}
