// Package link реализует канал связи с потребителем записей:
// единственный WebSocket клиент или стандартный вывод
package link

import (
	"errors"
	"io"
	"sync"
)

var (
	// ErrClosed канал закрыт и больше не принимает данные
	ErrClosed = errors.New("link closed")
	// ErrNotConnected потребитель не подключен
	ErrNotConnected = errors.New("link not connected")
)

// WriterLink канал поверх io.Writer, открыт до вызова Close
type WriterLink struct {
	mu     sync.Mutex
	w      io.Writer
	closed bool
}

// NewWriterLink создает канал, пишущий в w
func NewWriterLink(w io.Writer) *WriterLink {
	return &WriterLink{w: w}
}

// IsOpen сообщает, принимает ли канал данные
func (l *WriterLink) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed
}

func (l *WriterLink) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, ErrClosed
	}
	return l.w.Write(p)
}

// Close закрывает канал
func (l *WriterLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}
