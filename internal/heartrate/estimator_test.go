package heartrate

import (
	"errors"
	"math"
	"testing"

	"ppg-service/internal/sensor"
)

// recordingTransform captures every analyzed window and returns a fixed spectrum
type recordingTransform struct {
	windows  [][]float32
	spectrum []float32
}

func (r *recordingTransform) MagnitudeSquared(dst, window []float32) []float32 {
	w := make([]float32, len(window))
	copy(w, window)
	r.windows = append(r.windows, w)
	if r.spectrum != nil {
		return append(dst[:0], r.spectrum...)
	}
	return append(dst[:0], make([]float32, len(window)/2)...)
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}

	bad := map[string]func(*Config){
		"zero sample rate":    func(c *Config) { c.SampleRate = 0 },
		"zero samples":        func(c *Config) { c.NumSamples = 0 },
		"history < samples":   func(c *Config) { c.History = c.NumSamples - 1 },
		"fft not power of 2":  func(c *Config) { c.FFTLength = 1000 },
		"fft < history":       func(c *Config) { c.FFTLength = 64 },
		"fft < samples":       func(c *Config) { c.NumSamples, c.History, c.FFTLength = 256, 256, 128 },
		"unknown window mode": func(c *Config) { c.Policy = Policy(7) },
	}
	for name, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
		if _, err := New(cfg, nil); err == nil {
			t.Errorf("%s: New should reject the config", name)
		}
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy("Reset"); err != nil || p != PolicyReset {
		t.Errorf("Expected reset, got %v (%v)", p, err)
	}
	if p, err := ParsePolicy("slide"); err != nil || p != PolicySlide {
		t.Errorf("Expected slide, got %v (%v)", p, err)
	}
	if _, err := ParsePolicy("tumble"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestEstimator_ReturnsPreviousBetweenWindows(t *testing.T) {
	tr := &recordingTransform{spectrum: []float32{0, 0, 9, 0, 0, 0, 0, 0}}
	cfg := Config{SampleRate: 16, NumSamples: 4, History: 4, FFTLength: 16}
	e, _ := New(cfg, tr)

	for i := 0; i < 3; i++ {
		if bpm := e.Process(1); bpm != 0 {
			t.Fatalf("Expected 0 before the first window, got %d", bpm)
		}
	}
	if e.Bin() != -1 {
		t.Errorf("Expected no bin before the first estimate, got %d", e.Bin())
	}

	// bin 2 at fs=16, N=16 -> 2 Hz -> 120 BPM
	if bpm := e.Process(1); bpm != 120 {
		t.Fatalf("Expected 120 BPM, got %d", bpm)
	}
	for i := 0; i < 3; i++ {
		if bpm := e.Process(1); bpm != 120 {
			t.Errorf("Estimate should persist between windows, got %d", bpm)
		}
	}
	if e.Estimates() != 1 || len(tr.windows) != 1 {
		t.Errorf("Expected exactly one estimate, got %d (%d transforms)", e.Estimates(), len(tr.windows))
	}
	if e.Pending() != 3 {
		t.Errorf("Expected 3 pending samples, got %d", e.Pending())
	}
}

func TestEstimator_TieBreaksOnLowestBin(t *testing.T) {
	tr := &recordingTransform{spectrum: []float32{1, 5, 5, 2, 0, 0, 0, 0}}
	e, _ := New(Config{SampleRate: 16, NumSamples: 1, History: 1, FFTLength: 16}, tr)

	e.Process(0)
	if e.Bin() != 1 {
		t.Errorf("Expected bin 1 on tie, got %d", e.Bin())
	}
}

func TestEstimator_SlideKeepsTail(t *testing.T) {
	tr := &recordingTransform{}
	cfg := Config{SampleRate: 16, NumSamples: 3, History: 8, FFTLength: 16, Policy: PolicySlide}
	e, _ := New(cfg, tr)

	for i := 1; i <= 9; i++ {
		e.Process(float32(i))
	}
	if len(tr.windows) != 3 {
		t.Fatalf("Expected 3 estimates, got %d", len(tr.windows))
	}

	keep := cfg.History - cfg.NumSamples
	for w := 1; w < len(tr.windows); w++ {
		prev, cur := tr.windows[w-1], tr.windows[w]
		for i := 0; i < keep; i++ {
			if cur[i] != prev[i+cfg.NumSamples] {
				t.Errorf("Window %d position %d: expected %v from previous tail, got %v",
					w, i, prev[i+cfg.NumSamples], cur[i])
			}
		}
		for i := cfg.History; i < cfg.FFTLength; i++ {
			if cur[i] != 0 {
				t.Errorf("Window %d position %d should be zero padding, got %v", w, i, cur[i])
			}
		}
	}

	// Newest samples land at the end of the history
	last := tr.windows[2]
	if last[5] != 7 || last[6] != 8 || last[7] != 9 {
		t.Errorf("Unexpected newest samples %v", last[5:8])
	}
	// After the update the retained part equals the tail of the last window
	cur := e.Window()
	for i := 0; i < keep; i++ {
		if cur[i] != last[i+cfg.NumSamples] {
			t.Errorf("Retained position %d: expected %v, got %v", i, last[i+cfg.NumSamples], cur[i])
		}
	}
}

func TestEstimator_ResetEmptiesWindow(t *testing.T) {
	tr := &recordingTransform{}
	cfg := Config{SampleRate: 16, NumSamples: 3, History: 6, FFTLength: 8, Policy: PolicyReset}
	e, _ := New(cfg, tr)

	for i := 1; i <= 6; i++ {
		e.Process(float32(i))
	}

	want := [][]float32{
		{1, 2, 3, 0, 0, 0, 0, 0},
		{4, 5, 6, 0, 0, 0, 0, 0},
	}
	for w := range want {
		for i := range want[w] {
			if tr.windows[w][i] != want[w][i] {
				t.Errorf("Window %d: expected %v, got %v", w, want[w], tr.windows[w])
				break
			}
		}
	}
	for i, v := range e.Window() {
		if v != 0 {
			t.Errorf("Window should be empty after reset, position %d = %v", i, v)
		}
	}
}

func TestEstimator_DCExclusion(t *testing.T) {
	cfg := Config{SampleRate: 50, NumSamples: 100, History: 100, FFTLength: 1024}

	withDC, _ := New(cfg, nil)
	cfg.ExcludeDC = true
	withoutDC, _ := New(cfg, nil)

	var a, b uint8
	for i := 0; i < 100; i++ {
		a = withDC.Process(100)
		b = withoutDC.Process(100)
	}

	if withDC.Bin() != 0 || a != 0 {
		t.Errorf("Constant input should win at DC: bin %d, bpm %d", withDC.Bin(), a)
	}
	if withoutDC.Bin() != 1 || b != 3 {
		t.Errorf("With DC excluded expected bin 1 (3 BPM), got bin %d, bpm %d", withoutDC.Bin(), b)
	}
}

func TestEstimator_SineEndToEnd(t *testing.T) {
	cfg := Config{SampleRate: 50, NumSamples: 100, History: 100, FFTLength: 1024}
	e, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var bpm uint8
	for _, x := range sensor.Sine(100, 1.2, 300, 50) {
		bpm = e.Process(x)
	}

	tolerance := 60 * cfg.Resolution()
	if math.Abs(float64(bpm)-72) > tolerance {
		t.Errorf("Expected 72±%.2f BPM, got %d", tolerance, bpm)
	}
}

func TestEstimator_ConvergesForSines(t *testing.T) {
	for _, policy := range []Policy{PolicySlide, PolicyReset} {
		cfg := Config{SampleRate: 50, NumSamples: 100, History: 300, FFTLength: 1024, Policy: policy}
		for _, f := range []float64{0.8, 1.0, 1.5, 2.0, 2.5, 3.0} {
			e, _ := New(cfg, nil)

			var bpm uint8
			for _, x := range sensor.Sine(400, f, 200, 50) {
				bpm = e.Process(x)
			}

			tolerance := 60 * cfg.Resolution()
			if math.Abs(float64(bpm)-60*f) > tolerance {
				t.Errorf("%s, %.1f Hz: expected %.0f±%.2f BPM, got %d", policy, f, 60*f, tolerance, bpm)
			}
		}
	}
}

func TestBinToBPM(t *testing.T) {
	cases := []struct {
		bin  int
		want uint8
	}{
		{-1, 0},
		{0, 0},
		{25, 73},
		{24, 70},
		{500, 255},
	}
	for _, c := range cases {
		if got := BinToBPM(c.bin, 50, 1024); got != c.want {
			t.Errorf("BinToBPM(%d) = %d, want %d", c.bin, got, c.want)
		}
	}
}

func BenchmarkEstimatorProcess(b *testing.B) {
	e, _ := New(DefaultConfig(), nil)
	samples := sensor.Sine(1000, 1.2, 300, 50)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Process(samples[i%len(samples)])
	}
}
