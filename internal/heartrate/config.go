package heartrate

import (
	"errors"
	"fmt"
	"strings"

	"ppg-service/internal/dsp"
)

// ErrInvalidConfig недопустимая конфигурация окна
var ErrInvalidConfig = errors.New("heartrate: invalid configuration")

// Policy поведение окна после оценки
type Policy int

const (
	// PolicySlide отбрасывает NumSamples старейших отсчетов и сдвигает
	// остаток к началу: окна перекрываются
	PolicySlide Policy = iota
	// PolicyReset очищает окно, заполнение начинается с нуля
	PolicyReset
)

func (p Policy) String() string {
	switch p {
	case PolicySlide:
		return "slide"
	case PolicyReset:
		return "reset"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy разбирает "slide" или "reset"
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "slide":
		return PolicySlide, nil
	case "reset":
		return PolicyReset, nil
	default:
		return 0, fmt.Errorf("%w: unknown window policy %q", ErrInvalidConfig, s)
	}
}

// Config параметры оценщика
type Config struct {
	SampleRate int    // частота дискретизации, Гц
	NumSamples int    // новых отсчетов на одну оценку
	History    int    // отсчетов в окне (NumSamples <= History <= FFTLength)
	FFTLength  int    // длина преобразования, степень двойки
	Policy     Policy // поведение окна после оценки
	// ExcludeDC исключает бин 0 из поиска максимума
	ExcludeDC bool
}

// DefaultConfig 2 секунды сигнала при 50 Гц, БПФ на 1024 точки
func DefaultConfig() Config {
	return Config{
		SampleRate: 50,
		NumSamples: 100,
		History:    100,
		FFTLength:  1024,
		Policy:     PolicySlide,
		ExcludeDC:  false,
	}
}

// Validate проверяет конфигурацию до запуска
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, c.SampleRate)
	case c.NumSamples <= 0:
		return fmt.Errorf("%w: NumSamples must be > 0", ErrInvalidConfig)
	case c.History < c.NumSamples:
		return fmt.Errorf("%w: History %d < NumSamples %d", ErrInvalidConfig, c.History, c.NumSamples)
	case !dsp.IsPowerOfTwo(c.FFTLength) || c.FFTLength < 2:
		return fmt.Errorf("%w: FFT length %d is not a power of two", ErrInvalidConfig, c.FFTLength)
	case c.FFTLength < c.History:
		return fmt.Errorf("%w: FFT length %d < History %d", ErrInvalidConfig, c.FFTLength, c.History)
	case c.Policy != PolicySlide && c.Policy != PolicyReset:
		return fmt.Errorf("%w: policy %s", ErrInvalidConfig, c.Policy)
	}
	return nil
}

// Resolution разрешение по частоте, Гц на бин: (fs/2) / (N/2)
func (c Config) Resolution() float64 {
	return float64(c.SampleRate) / float64(c.FFTLength)
}
