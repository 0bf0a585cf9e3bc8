package link

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// DefaultWriteTimeout дедлайн на отправку одной записи
const DefaultWriteTimeout = 200 * time.Millisecond

// WebSocketLink держит не более одного подключенного клиента.
// Канал открыт, пока клиент подключен.
type WebSocketLink struct {
	upgrader     websocket.Upgrader
	writeTimeout time.Duration

	mu      sync.Mutex
	conn    *websocket.Conn
	session string
	closed  bool

	sessions atomic.Uint64
}

// NewWebSocketLink создает канал с дедлайном записи writeTimeout
func NewWebSocketLink(writeTimeout time.Duration) *WebSocketLink {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &WebSocketLink{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		writeTimeout: writeTimeout,
	}
}

// IsOpen сообщает, подключен ли клиент
func (l *WebSocketLink) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn != nil
}

// Session идентификатор текущего подключения или пустая строка
func (l *WebSocketLink) Session() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session
}

// Sessions количество подключений за время работы
func (l *WebSocketLink) Sessions() uint64 {
	return l.sessions.Load()
}

// Write отправляет p одним текстовым сообщением.
// При ошибке клиент отключается, и канал становится закрытым.
func (l *WebSocketLink) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, ErrClosed
	}
	if l.conn == nil {
		return 0, ErrNotConnected
	}

	_ = l.conn.SetWriteDeadline(time.Now().Add(l.writeTimeout))
	if err := l.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		log.Printf("[Link] Write to session %s failed: %v", l.session, err)
		l.detachLocked()
		return 0, fmt.Errorf("link write: %w", err)
	}
	return len(p), nil
}

// ServeHTTP принимает подключение клиента и держит его до разрыва
func (l *WebSocketLink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l.mu.Lock()
	closed, busy := l.closed, l.conn != nil
	l.mu.Unlock()
	if closed {
		http.Error(w, "link closed", http.StatusServiceUnavailable)
		return
	}
	if busy {
		http.Error(w, "consumer already attached", http.StatusConflict)
		return
	}

	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Link] Upgrade failed: %v", err)
		return
	}

	session, ok := l.attach(conn)
	if !ok {
		// Другой клиент успел подключиться между проверкой и апгрейдом
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "consumer already attached"),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}
	log.Printf("[Link] Consumer %s attached from %s", session, r.RemoteAddr)

	// Входящие сообщения не используются, чтение нужно для обработки close и ping
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	l.mu.Lock()
	if l.conn == conn {
		l.detachLocked()
	}
	l.mu.Unlock()
	log.Printf("[Link] Consumer %s detached", session)
}

// Close отключает клиента и запрещает новые подключения
func (l *WebSocketLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	if l.conn != nil {
		_ = l.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		l.detachLocked()
	}
	return nil
}

func (l *WebSocketLink) attach(conn *websocket.Conn) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.conn != nil {
		return "", false
	}
	l.conn = conn
	l.session = uuid.NewString()
	l.sessions.Add(1)
	return l.session, true
}

func (l *WebSocketLink) detachLocked() {
	if l.conn == nil {
		return
	}
	l.conn.Close()
	l.conn = nil
	l.session = ""
}
