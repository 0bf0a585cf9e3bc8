// Package models содержит структуры данных конвейера измерений пульса
package models

import "fmt"

// RawSample представляет одно сырое значение датчика
type RawSample struct {
	Timestamp uint64 `json:"timestamp_us"` // микросекунды, монотонные часы
	Value     uint16 `json:"value"`
}

// Measurement отфильтрованное измерение, передаваемое через очередь
type Measurement struct {
	Timestamp uint64 `json:"timestamp_us"`
	Raw       uint16 `json:"raw"`
	Filtered  int16  `json:"filtered"`
}

// Record итоговая запись, отправляемая по каналу связи
type Record struct {
	Timestamp uint64 `json:"timestamp_us"`
	Raw       uint16 `json:"raw"`
	Filtered  int16  `json:"filtered"`
	BPM       uint8  `json:"bpm"`
	// Fresh отмечает запись, на которой завершилось окно оценки
	Fresh bool `json:"fresh"`
}

// NewRecord собирает запись из измерения и текущей оценки пульса
func NewRecord(m Measurement, bpm uint8, fresh bool) Record {
	return Record{
		Timestamp: m.Timestamp,
		Raw:       m.Raw,
		Filtered:  m.Filtered,
		BPM:       bpm,
		Fresh:     fresh,
	}
}

// Color цвет индикатора состояния
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

func (c Color) String() string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

// ConnectionState состояние канала связи
type ConnectionState int

const (
	// Disconnected начальное состояние, сбор данных остановлен
	Disconnected ConnectionState = iota
	// Connected канал открыт, идет сбор и оценка
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("ConnectionState(%d)", int(s))
	}
}
