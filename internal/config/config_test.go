package config

import (
	"errors"
	"testing"
	"time"

	"ppg-service/internal/dsp"
	"ppg-service/internal/heartrate"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Defaults should be valid: %v", err)
	}

	if cfg.SamplePeriod() != 20*time.Millisecond {
		t.Errorf("Expected 20ms period, got %v", cfg.SamplePeriod())
	}
	if cfg.QueueCapacity != 10 || cfg.NumSamples != 100 || cfg.History != 100 || cfg.FFTLength != 1024 {
		t.Errorf("Unexpected defaults %+v", cfg)
	}
	if cfg.Policy != heartrate.PolicySlide || cfg.ExcludeDC {
		t.Errorf("Expected slide policy with DC included, got %v exclude=%v", cfg.Policy, cfg.ExcludeDC)
	}
	if len(cfg.FilterCoeffs) != len(dsp.PulseBand) || cfg.FilterCoeffs[3] != dsp.PulseBand[3] {
		t.Errorf("Unexpected default coefficients %v", cfg.FilterCoeffs)
	}
	if cfg.ReceiveTimeout != 10*time.Millisecond || cfg.PollInterval != 100*time.Millisecond {
		t.Errorf("Unexpected timeouts %v / %v", cfg.ReceiveTimeout, cfg.PollInterval)
	}
	if cfg.LinkMode != LinkWebSocket || cfg.RedisAddr != "" || cfg.NATSURL != "" || cfg.MQTTBroker != "" {
		t.Errorf("Unexpected link/sink defaults %+v", cfg)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SAMPLE_RATE_HZ", "100")
	t.Setenv("HR_WINDOW_POLICY", "reset")
	t.Setenv("HR_EXCLUDE_DC", "true")
	t.Setenv("HR_FFT_LENGTH", "256")
	t.Setenv("FILTER_ORDER", "4")
	t.Setenv("FILTER_COEFFS", "1,0,0,0,0, 1,0,0,0,0")
	t.Setenv("RECEIVE_TIMEOUT", "5ms")
	t.Setenv("LINK_MODE", "STDOUT")
	t.Setenv("SIM_HEART_RATE", "90.5")
	t.Setenv("QUEUE_CAPACITY", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected valid config: %v", err)
	}

	if cfg.SampleRate != 100 || cfg.SamplePeriod() != 10*time.Millisecond {
		t.Errorf("Unexpected rate %d / %v", cfg.SampleRate, cfg.SamplePeriod())
	}
	if cfg.Policy != heartrate.PolicyReset || !cfg.ExcludeDC || cfg.FFTLength != 256 {
		t.Errorf("Unexpected estimator config %+v", cfg.HeartRate())
	}
	if cfg.FilterOrder != 4 || len(cfg.FilterCoeffs) != 10 {
		t.Errorf("Unexpected filter config %d %v", cfg.FilterOrder, cfg.FilterCoeffs)
	}
	if cfg.ReceiveTimeout != 5*time.Millisecond || cfg.LinkMode != LinkStdout || cfg.SimHeartRate != 90.5 {
		t.Errorf("Unexpected overrides %+v", cfg)
	}
	// malformed value falls back to the default
	if cfg.QueueCapacity != 10 {
		t.Errorf("Expected default capacity, got %d", cfg.QueueCapacity)
	}
}

func TestLoad_ParseErrors(t *testing.T) {
	t.Setenv("HR_WINDOW_POLICY", "tumbling")
	if _, err := Load(); !errors.Is(err, ErrInvalid) {
		t.Errorf("Expected ErrInvalid for unknown policy, got %v", err)
	}

	t.Setenv("HR_WINDOW_POLICY", "slide")
	t.Setenv("FILTER_COEFFS", "0.1,abc")
	if _, err := Load(); !errors.Is(err, ErrInvalid) {
		t.Errorf("Expected ErrInvalid for bad coefficients, got %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	base, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero rate", func(c *Config) { c.SampleRate = 0 }},
		{"zero capacity", func(c *Config) { c.QueueCapacity = 0 }},
		{"zero order", func(c *Config) { c.FilterOrder = 0 }},
		{"coefficient count", func(c *Config) { c.FilterOrder = 3 }},
		{"fft not power of two", func(c *Config) { c.FFTLength = 1000 }},
		{"fft shorter than history", func(c *Config) { c.FFTLength = 64 }},
		{"history shorter than window", func(c *Config) { c.History = 50 }},
		{"zero samples", func(c *Config) { c.NumSamples = 0 }},
		{"link mode", func(c *Config) { c.LinkMode = "serial" }},
		{"receive timeout", func(c *Config) { c.ReceiveTimeout = 0 }},
		{"failure rate", func(c *Config) { c.SimFailureRate = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.FilterCoeffs = append([]float32(nil), base.FilterCoeffs...)
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("Expected ErrInvalid, got %v", err)
			}
		})
	}
}
