// Package metrics реализует экспорт метрик в Prometheus
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики
var (
	// RequestsTotal общее количество HTTP запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ppg_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"endpoint", "method", "status"},
	)

	// RequestDuration длительность HTTP запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ppg_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint", "method"},
	)

	// SamplesAcquired успешно прочитанные и отфильтрованные отсчеты
	SamplesAcquired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ppg_samples_acquired_total",
			Help: "Total number of sensor samples acquired and filtered",
		},
	)

	// SensorReadFailures неудачные чтения датчика
	SensorReadFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ppg_sensor_read_failures_total",
			Help: "Total number of failed sensor reads",
		},
	)

	// SamplesDropped отсчеты, отброшенные из-за заполненной очереди
	SamplesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ppg_samples_dropped_total",
			Help: "Total number of samples dropped on a full queue",
		},
	)

	// QueueDepth глубина очереди измерений
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ppg_queue_depth",
			Help: "Current number of measurements waiting in the queue",
		},
	)

	// RecordsEmitted записи, отправленные по каналу связи
	RecordsEmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ppg_records_emitted_total",
			Help: "Total number of records written to the link",
		},
	)

	// CurrentBPM последняя оценка пульса
	CurrentBPM = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ppg_bpm",
			Help: "Latest heart rate estimate in beats per minute",
		},
	)

	// EstimatesTotal число выполненных спектральных оценок
	EstimatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ppg_estimates_total",
			Help: "Total number of completed spectral estimates",
		},
	)

	// EstimateLatency время выполнения оценки на заполненном окне
	EstimateLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ppg_estimate_latency_seconds",
			Help:    "Spectral estimate computation latency in seconds",
			Buckets: []float64{.00005, .0001, .0005, .001, .005, .01, .025},
		},
	)

	// LinkConnected состояние канала связи (1 - подключен)
	LinkConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ppg_link_connected",
			Help: "Whether the downstream link is connected",
		},
	)

	// LinkTransitions переходы состояния канала
	LinkTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ppg_link_transitions_total",
			Help: "Total number of connection state transitions",
		},
		[]string{"to"},
	)

	// IndicatorColor текущий цвет индикатора по каналам
	IndicatorColor = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ppg_indicator_color",
			Help: "Current status indicator color component",
		},
		[]string{"channel"},
	)

	// SinkErrors ошибки публикации записей
	SinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ppg_sink_errors_total",
			Help: "Total number of record publish failures per sink",
		},
		[]string{"sink"},
	)

	// SinkDropped записи, не принятые диспетчером
	SinkDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ppg_sink_dropped_total",
			Help: "Total number of records dropped by the publish dispatcher",
		},
	)

	// RollingAvgBPM скользящее среднее пульса
	RollingAvgBPM = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ppg_rolling_avg_bpm",
			Help: "Rolling average of heart rate estimates",
		},
	)

	// ZScoreBPM z-score последней оценки
	ZScoreBPM = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ppg_bpm_zscore",
			Help: "Z-score of the latest heart rate estimate",
		},
	)

	// AnomaliesDetected количество аномальных оценок
	AnomaliesDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ppg_anomalies_detected_total",
			Help: "Total number of anomalous heart rate estimates",
		},
	)

	// ActiveGoroutines количество активных горутин
	ActiveGoroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ppg_active_goroutines",
			Help: "Number of active goroutines",
		},
	)
)

// UpdateAnalysisMetrics обновляет метрики анализа
func UpdateAnalysisMetrics(avgBPM, zScore float64, isAnomaly bool) {
	RollingAvgBPM.Set(avgBPM)
	ZScoreBPM.Set(zScore)
	if isAnomaly {
		AnomaliesDetected.Inc()
	}
}

// SetLinkState обновляет метрики канала связи
func SetLinkState(connected bool) {
	if connected {
		LinkConnected.Set(1)
		LinkTransitions.WithLabelValues("connected").Inc()
		return
	}
	LinkConnected.Set(0)
	LinkTransitions.WithLabelValues("disconnected").Inc()
}

// SetIndicatorColor обновляет метрику цвета индикатора
func SetIndicatorColor(r, g, b uint8) {
	IndicatorColor.WithLabelValues("r").Set(float64(r))
	IndicatorColor.WithLabelValues("g").Set(float64(g))
	IndicatorColor.WithLabelValues("b").Set(float64(b))
}
