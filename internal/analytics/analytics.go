// Package analytics реализует статистический анализ оценок пульса:
// скользящее среднее и z-score для детекции аномальных значений
package analytics

import (
	"context"
	"math"
	"sync"

	"ppg-service/internal/metrics"
	"ppg-service/internal/models"
)

const (
	// WindowSize размер окна в свежих оценках
	WindowSize = 50
	// ZScoreThreshold порог для детекции аномалий (> 2σ)
	ZScoreThreshold = 2.0
	// MinSamples оценок до начала детекции
	MinSamples = 5
)

// Stats сводка по трекеру
type Stats struct {
	Estimates  uint64                 `json:"estimates"`
	Anomalies  uint64                 `json:"anomalies"`
	RollingAvg float64                `json:"rolling_avg_bpm"`
	StdDev     float64                `json:"stddev_bpm"`
	Last       *models.AnalysisResult `json:"last,omitempty"`
}

// Tracker анализирует только записи, завершившие окно оценки.
// Нулевой BPM (нет пульса в спектре) в статистику не попадает.
type Tracker struct {
	mu        sync.RWMutex
	window    *SlidingWindow
	last      *models.AnalysisResult
	estimates uint64
	anomalies uint64
}

// NewTracker создает трекер с окном windowSize
func NewTracker(windowSize int) *Tracker {
	return &Tracker{window: NewSlidingWindow(windowSize)}
}

// Name имя приемника записей
func (t *Tracker) Name() string {
	return "analytics"
}

// Publish принимает запись от диспетчера
func (t *Tracker) Publish(_ context.Context, rec models.Record) error {
	t.Observe(rec)
	return nil
}

// Observe анализирует запись. false - запись не несет новой оценки.
func (t *Tracker) Observe(rec models.Record) (models.AnalysisResult, bool) {
	if !rec.Fresh || rec.BPM == 0 {
		return models.AnalysisResult{}, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	value := float64(rec.BPM)
	// z-score до добавления в окно
	z := t.window.ZScore(value)
	anomaly := t.window.Count() >= MinSamples && math.Abs(z) > ZScoreThreshold
	t.window.Add(value)

	result := models.AnalysisResult{
		Timestamp:  rec.Timestamp,
		BPM:        rec.BPM,
		RollingAvg: t.window.Mean(),
		StdDev:     t.window.StdDev(),
		ZScore:     z,
		IsAnomaly:  anomaly,
	}
	t.last = &result
	t.estimates++
	if anomaly {
		t.anomalies++
	}

	metrics.UpdateAnalysisMetrics(result.RollingAvg, z, anomaly)
	return result, true
}

// Stats возвращает текущую статистику
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Stats{
		Estimates:  t.estimates,
		Anomalies:  t.anomalies,
		RollingAvg: t.window.Mean(),
		StdDev:     t.window.StdDev(),
	}
	if t.last != nil {
		last := *t.last
		s.Last = &last
	}
	return s
}

// Reset очищает историю, например при новом подключении
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.window.Reset()
	t.last = nil
}
