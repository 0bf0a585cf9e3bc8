package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"ppg-service/internal/models"
)

const (
	// DefaultMQTTTopic топик для записей
	DefaultMQTTTopic   = "ppg/records"
	mqttConnectTimeout = 10 * time.Second
)

// ErrNotConnected клиент MQTT не подключен к брокеру
var ErrNotConnected = errors.New("mqtt client not connected")

type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
}

// MQTTSink публикует записи в MQTT брокер с QoS 0
type MQTTSink struct {
	client mqtt.Client
	pub    mqttPublisher
	topic  string
}

// NewMQTTSink подключается к broker (например tcp://localhost:1883)
func NewMQTTSink(broker, topic string) (*MQTTSink, error) {
	if topic == "" {
		topic = DefaultMQTTTopic
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)

	clientID := "ppg-service-" + uuid.NewString()
	opts.SetClientID(clientID)

	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		log.Printf("[MQTT] Connected to %s", broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Printf("[MQTT] Connection lost: %v (will auto-reconnect)", err)
	}

	client := mqtt.NewClient(opts)
	log.Printf("[MQTT] Connecting to %s as %s...", broker, clientID)

	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("MQTT connect timeout")
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	return &MQTTSink{client: client, pub: client, topic: topic}, nil
}

// Name имя приемника
func (s *MQTTSink) Name() string {
	return "mqtt"
}

// Topic топик публикации
func (s *MQTTSink) Topic() string {
	return s.topic
}

// Publish отправляет запись и ждет подтверждения не дольше дедлайна ctx
func (s *MQTTSink) Publish(ctx context.Context, rec models.Record) error {
	if !s.pub.IsConnected() {
		return ErrNotConnected
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	token := s.pub.Publish(s.topic, 0, false, data)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt publish to %s: %w", s.topic, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close отключается от брокера
func (s *MQTTSink) Close() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
	}
}
