package models

import "strconv"

const (
	// RecordBufferSize размер буфера под одну текстовую запись
	RecordBufferSize = 64
	// MaxRecordLen максимальная длина записи:
	// 20 (uint64) + 5 (uint16) + 6 (int16) + 3 (uint8) + 3 запятые + CRLF
	MaxRecordLen = 20 + 5 + 6 + 3 + 3 + 2
)

// AppendRecord дописывает запись в формате "timestamp,raw,filtered,bpm\r\n".
// При cap(dst)-len(dst) >= MaxRecordLen аллокаций не происходит.
func AppendRecord(dst []byte, r Record) []byte {
	dst = strconv.AppendUint(dst, r.Timestamp, 10)
	dst = append(dst, ',')
	dst = strconv.AppendUint(dst, uint64(r.Raw), 10)
	dst = append(dst, ',')
	dst = strconv.AppendInt(dst, int64(r.Filtered), 10)
	dst = append(dst, ',')
	dst = strconv.AppendUint(dst, uint64(r.BPM), 10)
	return append(dst, '\r', '\n')
}
