// Package handlers содержит HTTP обработчики для API
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ppg-service/internal/acquisition"
	"ppg-service/internal/analytics"
	"ppg-service/internal/metrics"
	"ppg-service/internal/models"
)

// Pipeline состояние главного цикла
type Pipeline interface {
	State() models.ConnectionState
	Emitted() uint64
	WriteFailures() uint64
	BPM() uint8
}

// Acquisition счетчики сборщика
type Acquisition interface {
	Stats() acquisition.Stats
}

// Queue заполненность очереди измерений
type Queue interface {
	Len() int
	Cap() int
}

// ColorSource текущий цвет индикатора
type ColorSource interface {
	Color() models.Color
}

// RecordStore хранилище последних записей
type RecordStore interface {
	LatestRecords(ctx context.Context, count int64) ([]models.Record, error)
	Estimates(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// Deps зависимости обработчиков. Store может быть nil.
type Deps struct {
	Pipeline    Pipeline
	Acquisition Acquisition
	Queue       Queue
	Indicator   ColorSource
	Tracker     *analytics.Tracker
	Store       RecordStore
}

// Handler содержит зависимости для HTTP обработчиков
type Handler struct {
	deps      Deps
	startTime time.Time
}

// NewHandler создает новый обработчик
func NewHandler(deps Deps) *Handler {
	return &Handler{
		deps:      deps,
		startTime: time.Now(),
	}
}

// HealthHandler обрабатывает GET /health - проверка здоровья
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	redisStatus := "disabled"
	if h.deps.Store != nil {
		redisStatus = "disconnected"
		if h.deps.Store.Ping(r.Context()) == nil {
			redisStatus = "connected"
		}
	}

	status := models.HealthStatus{
		Status:    "healthy",
		Link:      h.deps.Pipeline.State().String(),
		Redis:     redisStatus,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now().Format(time.RFC3339),
	}

	metrics.RequestsTotal.WithLabelValues("/health", r.Method, "200").Inc()
	h.respondJSON(w, status, http.StatusOK)
}

// StatsHandler обрабатывает GET /stats - статистика конвейера
func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/stats", r.Method))
	defer timer.ObserveDuration()

	// Обновляем метрику горутин
	metrics.ActiveGoroutines.Set(float64(runtime.NumGoroutine()))

	acq := h.deps.Acquisition.Stats()
	response := models.StatsResponse{
		State:              h.deps.Pipeline.State().String(),
		Indicator:          h.deps.Indicator.Color().String(),
		BPM:                h.deps.Pipeline.BPM(),
		RecordsEmitted:     h.deps.Pipeline.Emitted(),
		WriteFailures:      h.deps.Pipeline.WriteFailures(),
		SamplesAcquired:    acq.Acquired,
		SensorReadFailures: acq.ReadFailures,
		SamplesDropped:     acq.Dropped,
		QueueDepth:         h.deps.Queue.Len(),
		QueueCapacity:      h.deps.Queue.Cap(),
	}

	if h.deps.Tracker != nil {
		st := h.deps.Tracker.Stats()
		response.RollingAvgBPM = st.RollingAvg
		response.StdDevBPM = st.StdDev
		response.Anomalies = st.Anomalies
	}
	if h.deps.Store != nil {
		response.CachedEstimates, _ = h.deps.Store.Estimates(r.Context())
	}

	metrics.RequestsTotal.WithLabelValues("/stats", r.Method, "200").Inc()
	h.respondJSON(w, response, http.StatusOK)
}

// LatestRecordsHandler возвращает последние записи из кэша
func (h *Handler) LatestRecordsHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/records/latest", r.Method))
	defer timer.ObserveDuration()

	count := int64(50)
	if countStr := r.URL.Query().Get("count"); countStr != "" {
		if c, err := strconv.ParseInt(countStr, 10, 64); err == nil && c > 0 && c <= 1000 {
			count = c
		}
	}

	if h.deps.Store == nil {
		metrics.RequestsTotal.WithLabelValues("/records/latest", r.Method, "503").Inc()
		h.respondError(w, "Cache not available", http.StatusServiceUnavailable)
		return
	}

	records, err := h.deps.Store.LatestRecords(r.Context(), count)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues("/records/latest", r.Method, "500").Inc()
		h.respondError(w, "Failed to get records: "+err.Error(), http.StatusInternalServerError)
		return
	}

	metrics.RequestsTotal.WithLabelValues("/records/latest", r.Method, "200").Inc()
	h.respondJSON(w, records, http.StatusOK)
}

// AnalysisHandler обрабатывает GET /analyze - статистика оценок пульса
func (h *Handler) AnalysisHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/analyze", r.Method))
	defer timer.ObserveDuration()

	if h.deps.Tracker == nil {
		h.respondError(w, "Analytics not available", http.StatusServiceUnavailable)
		return
	}

	response := map[string]interface{}{
		"timestamp": time.Now(),
		"stats":     h.deps.Tracker.Stats(),
		"thresholds": map[string]float64{
			"anomaly_z_score": analytics.ZScoreThreshold,
			"window_size":     float64(analytics.WindowSize),
		},
	}

	metrics.RequestsTotal.WithLabelValues("/analyze", r.Method, "200").Inc()
	h.respondJSON(w, response, http.StatusOK)
}

// respondJSON отправляет JSON ответ
func (h *Handler) respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError отправляет ошибку в JSON формате
func (h *Handler) respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
