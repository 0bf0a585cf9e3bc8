package acquisition

import "time"

// MonotonicClock отсчитывает микросекунды от момента создания
// по монотонной составляющей time.Time
type MonotonicClock struct {
	start time.Time
}

// NewMonotonicClock создает часы с нулем в текущий момент
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

// NowMicros микросекунды с момента создания
func (c *MonotonicClock) NowMicros() uint64 {
	return uint64(time.Since(c.start).Microseconds())
}
