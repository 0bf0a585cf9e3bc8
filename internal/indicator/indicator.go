// Package indicator реализует индикатор состояния (RGB светодиод).
// Цвет хранится в памяти и экспортируется в метриках.
package indicator

import (
	"log"
	"sync"

	"ppg-service/internal/metrics"
	"ppg-service/internal/models"
)

var (
	// Ready канал связи открыт, идет сбор
	Ready = models.Color{R: 0, G: 10, B: 0}
	// Waiting ожидание подключения
	Waiting = models.Color{R: 10, G: 0, B: 0}
)

// Status индикатор состояния
type Status struct {
	mu      sync.RWMutex
	color   models.Color
	changes uint64
}

// New создает выключенный индикатор
func New() *Status {
	return &Status{}
}

// SetColor устанавливает цвет
func (s *Status) SetColor(c models.Color) {
	s.mu.Lock()
	changed := s.color != c || s.changes == 0
	s.color = c
	s.changes++
	s.mu.Unlock()

	metrics.SetIndicatorColor(c.R, c.G, c.B)
	if changed {
		log.Printf("[Indicator] Color set to %s", c)
	}
}

// Color текущий цвет
func (s *Status) Color() models.Color {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.color
}

// Changes количество вызовов SetColor
func (s *Status) Changes() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changes
}
