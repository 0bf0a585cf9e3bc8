// Package config загружает конфигурацию сервиса из переменных окружения
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"ppg-service/internal/dsp"
	"ppg-service/internal/heartrate"
)

// ErrInvalid некорректная конфигурация, обнаруженная при старте
var ErrInvalid = errors.New("invalid configuration")

// Режимы канала связи
const (
	LinkWebSocket = "websocket"
	LinkStdout    = "stdout"
)

// Config содержит конфигурацию сервиса
type Config struct {
	ServerAddr  string
	ReadTimeout time.Duration
	IdleTimeout time.Duration

	SampleRate    int
	QueueCapacity int

	NumSamples int
	History    int
	FFTLength  int
	Policy     heartrate.Policy
	ExcludeDC  bool

	FilterOrder     int
	FilterCoeffs    []float32
	FilterSmoothing int

	ReceiveTimeout   time.Duration
	PollInterval     time.Duration
	LinkMode         string
	LinkWriteTimeout time.Duration

	SinkBuffer    int
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NATSURL       string
	NATSSubject   string
	MQTTBroker    string
	MQTTTopic     string

	SimHeartRate   float64
	SimNoise       float64
	SimFailureRate float64
}

// Load читает конфигурацию. Ошибки разбора значений возвращаются сразу,
// проверка согласованности выполняется в Validate.
func Load() (Config, error) {
	policy, err := heartrate.ParsePolicy(getEnv("HR_WINDOW_POLICY", heartrate.PolicySlide.String()))
	if err != nil {
		return Config{}, fmt.Errorf("%w: HR_WINDOW_POLICY: %v", ErrInvalid, err)
	}
	coeffs, err := parseCoeffs(getEnv("FILTER_COEFFS", ""))
	if err != nil {
		return Config{}, fmt.Errorf("%w: FILTER_COEFFS: %v", ErrInvalid, err)
	}
	if coeffs == nil {
		coeffs = append([]float32(nil), dsp.PulseBand...)
	}

	return Config{
		ServerAddr:  getEnv("SERVER_ADDR", ":8080"),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,

		SampleRate:    getEnvInt("SAMPLE_RATE_HZ", 50),
		QueueCapacity: getEnvInt("QUEUE_CAPACITY", 10),

		NumSamples: getEnvInt("HR_NUM_SAMPLES", 100),
		History:    getEnvInt("HR_HISTORY", 100),
		FFTLength:  getEnvInt("HR_FFT_LENGTH", 1024),
		Policy:     policy,
		ExcludeDC:  getEnvBool("HR_EXCLUDE_DC", false),

		FilterOrder:     getEnvInt("FILTER_ORDER", dsp.PulseBandOrder),
		FilterCoeffs:    coeffs,
		FilterSmoothing: getEnvInt("FILTER_SMOOTHING", 0),

		ReceiveTimeout:   getEnvDuration("RECEIVE_TIMEOUT", 10*time.Millisecond),
		PollInterval:     getEnvDuration("LINK_POLL_INTERVAL", 100*time.Millisecond),
		LinkMode:         strings.ToLower(getEnv("LINK_MODE", LinkWebSocket)),
		LinkWriteTimeout: getEnvDuration("LINK_WRITE_TIMEOUT", 200*time.Millisecond),

		SinkBuffer:    getEnvInt("SINK_BUFFER", 1024),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		NATSURL:       getEnv("NATS_URL", ""),
		NATSSubject:   getEnv("NATS_SUBJECT", "ppg.records"),
		MQTTBroker:    getEnv("MQTT_BROKER", ""),
		MQTTTopic:     getEnv("MQTT_TOPIC", "ppg/records"),

		SimHeartRate:   getEnvFloat("SIM_HEART_RATE", 72),
		SimNoise:       getEnvFloat("SIM_NOISE", 0.05),
		SimFailureRate: getEnvFloat("SIM_FAILURE_RATE", 0),
	}, nil
}

// SamplePeriod период опроса датчика
func (c Config) SamplePeriod() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.SampleRate)
}

// HeartRate параметры оценщика пульса
func (c Config) HeartRate() heartrate.Config {
	return heartrate.Config{
		SampleRate: c.SampleRate,
		NumSamples: c.NumSamples,
		History:    c.History,
		FFTLength:  c.FFTLength,
		Policy:     c.Policy,
		ExcludeDC:  c.ExcludeDC,
	}
}

// Validate проверяет конфигурацию до запуска главного цикла
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.SampleRate > 0, "SAMPLE_RATE_HZ must be > 0, got %d", c.SampleRate)
	check(c.QueueCapacity > 0, "QUEUE_CAPACITY must be > 0, got %d", c.QueueCapacity)
	check(c.FilterOrder > 0, "FILTER_ORDER must be > 0, got %d", c.FilterOrder)
	if c.FilterOrder > 0 {
		want := dsp.Sections(c.FilterOrder) * dsp.CoeffsPerSection
		check(len(c.FilterCoeffs) == want,
			"FILTER_COEFFS: order %d needs %d coefficients, got %d", c.FilterOrder, want, len(c.FilterCoeffs))
	}
	check(c.FilterSmoothing >= 0, "FILTER_SMOOTHING must be >= 0, got %d", c.FilterSmoothing)
	check(c.ReceiveTimeout > 0, "RECEIVE_TIMEOUT must be > 0")
	check(c.PollInterval > 0, "LINK_POLL_INTERVAL must be > 0")
	check(c.LinkWriteTimeout > 0, "LINK_WRITE_TIMEOUT must be > 0")
	check(c.LinkMode == LinkWebSocket || c.LinkMode == LinkStdout,
		"LINK_MODE must be %q or %q, got %q", LinkWebSocket, LinkStdout, c.LinkMode)
	check(c.SinkBuffer > 0, "SINK_BUFFER must be > 0, got %d", c.SinkBuffer)
	check(c.SimFailureRate >= 0 && c.SimFailureRate <= 1,
		"SIM_FAILURE_RATE must be within [0,1], got %g", c.SimFailureRate)
	if err := c.HeartRate().Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// getEnv получает переменную окружения с значением по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленную переменную окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		n, err := strconv.Atoi(value)
		if err == nil {
			return n
		}
		log.Printf("[Config] Warning: %s=%q is not an integer, using %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
		log.Printf("[Config] Warning: %s=%q is not a number, using %g", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
		log.Printf("[Config] Warning: %s=%q is not a boolean, using %v", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
		log.Printf("[Config] Warning: %s=%q is not a duration, using %v", key, value, defaultValue)
	}
	return defaultValue
}

// parseCoeffs разбирает список через запятую. Пустая строка - nil.
func parseCoeffs(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, 0, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("coefficient %d: %w", i, err)
		}
		out = append(out, float32(f))
	}
	return out, nil
}
