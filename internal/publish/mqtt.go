package publish

import (
	"context"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/gojosatorou999/jalscan-sih/internal/conf"
	"github.com/gojosatorou999/jalscan-sih/internal/errors"
)

// Operation timeouts for the paho client.
const (
	mqttConnectTimeout    = 30 * time.Second
	mqttPublishTimeout    = 10 * time.Second
	mqttDisconnectQuiesce = 250 // milliseconds, paho API takes a uint
)

// mqttClient adapts the paho client to the Client interface.
type mqttClient struct {
	internal mqtt.Client
	settings conf.MQTTSettings
}

// NewMQTTClient creates an MQTT transport from the realtime settings.
func NewMQTTClient(settings conf.MQTTSettings, clientID string) Client {
	opts := mqtt.NewClientOptions().
		AddBroker(settings.Broker).
		SetClientID(clientID).
		SetConnectTimeout(mqttConnectTimeout).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if settings.Username != "" {
		opts.SetUsername(settings.Username)
		opts.SetPassword(settings.Password)
	}

	return &mqttClient{
		internal: mqtt.NewClient(opts),
		settings: settings,
	}
}

// Connect establishes the broker connection, honoring the context deadline.
func (c *mqttClient) Connect(ctx context.Context) error {
	token := c.internal.Connect()
	if err := waitToken(ctx, token); err != nil {
		return errors.New(err).
			Component("publish").
			Category(errors.CategoryMQTTConnection).
			Context("broker", c.settings.Broker).
			Build()
	}
	return nil
}

// Publish sends one payload at QoS 1.
func (c *mqttClient) Publish(ctx context.Context, topic string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, mqttPublishTimeout)
	defer cancel()

	token := c.internal.Publish(topic, 1, c.settings.Retain, payload)
	if err := waitToken(ctx, token); err != nil {
		return errors.New(err).
			Component("publish").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}
	return nil
}

// IsConnected reports the broker connection state.
func (c *mqttClient) IsConnected() bool {
	return c.internal.IsConnected()
}

// Disconnect closes the connection after letting in-flight work settle.
func (c *mqttClient) Disconnect() {
	c.internal.Disconnect(mqttDisconnectQuiesce)
}

// waitToken waits for a paho token respecting context cancellation.
func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
