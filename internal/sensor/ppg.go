// Package sensor содержит программную модель датчика приближения,
// используемого как источник сигнала фотоплетизмограммы
package sensor

import (
	"math"
	"math/rand"
	"sync"
)

// Config параметры модели
type Config struct {
	SampleRate  float64 // Гц
	HeartRate   float64 // уд/мин
	Baseline    float64 // постоянная составляющая отражения
	Amplitude   float64 // амплитуда пульсовой волны
	Noise       float64 // доля амплитуды
	FailureRate float64 // вероятность неудачного чтения [0..1]
	Seed        int64
}

// DefaultConfig значения, близкие к реальному датчику на пальце
func DefaultConfig() Config {
	return Config{
		SampleRate:  50,
		HeartRate:   72,
		Baseline:    2000,
		Amplitude:   120,
		Noise:       0.05,
		FailureRate: 0,
		Seed:        1,
	}
}

// PPGSim генерирует пульсовую волну: основная гармоника, вторая гармоника
// (дикротическая волна), медленный дрейф и шум.
type PPGSim struct {
	mu    sync.Mutex
	cfg   Config
	phase float64
	drift float64
	rng   *rand.Rand
}

// NewPPGSim создает модель
func NewPPGSim(cfg Config) *PPGSim {
	return &PPGSim{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// SetHeartRate меняет частоту пульса на лету
func (s *PPGSim) SetHeartRate(bpm float64) {
	s.mu.Lock()
	s.cfg.HeartRate = bpm
	s.mu.Unlock()
}

// Read возвращает следующее значение и продвигает время на один отсчет
func (s *PPGSim) Read() (uint16, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.advance()
	if s.cfg.FailureRate > 0 && s.rng.Float64() < s.cfg.FailureRate {
		return 0, false
	}

	p := 2 * math.Pi * s.phase
	pulse := math.Sin(p) + 0.3*math.Sin(2*p+0.8)
	// дыхательный дрейф ~0.25 Гц
	drift := 0.4 * math.Sin(2*math.Pi*s.drift)
	noise := s.cfg.Noise * (2*s.rng.Float64() - 1)

	v := s.cfg.Baseline + s.cfg.Amplitude*(pulse+drift+noise)
	return clampU16(v), true
}

func (s *PPGSim) advance() {
	s.phase += s.cfg.HeartRate / 60 / s.cfg.SampleRate
	s.phase -= math.Floor(s.phase)
	s.drift += 0.25 / s.cfg.SampleRate
	s.drift -= math.Floor(s.drift)
}

func clampU16(v float64) uint16 {
	switch {
	case v <= 0:
		return 0
	case v >= math.MaxUint16:
		return math.MaxUint16
	default:
		return uint16(v)
	}
}

// Sine генерирует n отсчетов синусоиды частоты f (Гц) с амплитудой amp
func Sine(n int, f, amp, fs float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*f*float64(i)/fs))
	}
	return out
}
