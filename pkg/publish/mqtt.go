package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	mqttQoS          = 1
	mqttPublishWait  = 2 * time.Second
	mqttQuiesceMilli = 250
)

type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes messages on an MQTT topic with QoS 1.
type MQTT struct {
	client mqttClient
	topic  string
}

// DialMQTT connects to the broker at url, e.g. tcp://localhost:1883.
func DialMQTT(url, topic string) (*MQTT, error) {
	if url == "" {
		url = "tcp://localhost:1883"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(url)
	opts.SetClientID("gonibp-" + uuid.NewString()[:8])
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(3 * time.Second)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		slog.Warn("mqtt connection lost", "broker", url, "err", err)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect mqtt %s: %w", url, token.Error())
	}
	return &MQTT{client: client, topic: topic}, nil
}

// Publish sends msg and waits for the broker acknowledgement.
func (m *MQTT) Publish(ctx context.Context, msg Message) error {
	data, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	token := m.client.Publish(m.topic, mqttQoS, false, data)

	timer := time.NewTimer(mqttPublishWait)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-timer.C:
		return fmt.Errorf("publish %s: timed out", m.topic)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	m.client.Disconnect(mqttQuiesceMilli)
	return nil
}
