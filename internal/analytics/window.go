package analytics

import "math"

// SlidingWindow кольцевое окно значений с бегущими суммами
type SlidingWindow struct {
	values []float64
	index  int
	count  int
	sum    float64
	sumSq  float64
}

// NewSlidingWindow создает окно на size значений
func NewSlidingWindow(size int) *SlidingWindow {
	if size < 1 {
		size = 1
	}
	return &SlidingWindow{values: make([]float64, size)}
}

// Add добавляет значение, вытесняя самое старое при заполненном окне
func (sw *SlidingWindow) Add(value float64) {
	if sw.count == len(sw.values) {
		old := sw.values[sw.index]
		sw.sum -= old
		sw.sumSq -= old * old
	} else {
		sw.count++
	}

	sw.values[sw.index] = value
	sw.sum += value
	sw.sumSq += value * value
	sw.index = (sw.index + 1) % len(sw.values)
}

// Mean скользящее среднее
func (sw *SlidingWindow) Mean() float64 {
	if sw.count == 0 {
		return 0
	}
	return sw.sum / float64(sw.count)
}

// StdDev выборочное стандартное отклонение
func (sw *SlidingWindow) StdDev() float64 {
	if sw.count < 2 {
		return 0
	}
	n := float64(sw.count)
	variance := (sw.sumSq - (sw.sum*sw.sum)/n) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// ZScore отклонение value от среднего окна в сигмах
func (sw *SlidingWindow) ZScore(value float64) float64 {
	stdDev := sw.StdDev()
	if stdDev == 0 {
		return 0
	}
	return (value - sw.Mean()) / stdDev
}

// Count количество значений в окне
func (sw *SlidingWindow) Count() int {
	return sw.count
}

// Reset очищает окно
func (sw *SlidingWindow) Reset() {
	clear(sw.values)
	sw.index, sw.count = 0, 0
	sw.sum, sw.sumSq = 0, 0
}
