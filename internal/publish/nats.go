package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"ppg-service/internal/models"
)

// DefaultNATSSubject тема для записей
const DefaultNATSSubject = "ppg.records"

type natsPublisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink публикует записи в NATS в виде JSON
type NATSSink struct {
	conn    *nats.Conn
	pub     natsPublisher
	subject string
}

// ConnectNATS подключается к серверу NATS с бесконечным переподключением
func ConnectNATS(url string) (*nats.Conn, error) {
	return nats.Connect(
		url,
		nats.Name("ppg-service"),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[NATS] Disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[NATS] Reconnected to %s", nc.ConnectedUrl())
		}),
	)
}

// NewNATSSink подключается к url и публикует в subject
func NewNATSSink(url, subject string) (*NATSSink, error) {
	if subject == "" {
		subject = DefaultNATSSubject
	}
	nc, err := ConnectNATS(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSSink{conn: nc, pub: nc, subject: subject}, nil
}

// Name имя приемника
func (s *NATSSink) Name() string {
	return "nats"
}

// Subject тема публикации
func (s *NATSSink) Subject() string {
	return s.subject
}

// Publish отправляет запись. Буферизацию и переподключение ведет клиент NATS.
func (s *NATSSink) Publish(ctx context.Context, rec models.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := s.pub.Publish(s.subject, data); err != nil {
		return fmt.Errorf("nats publish to %s: %w", s.subject, err)
	}
	return nil
}

// Close дожидается отправки буфера и закрывает соединение
func (s *NATSSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}
