package notify

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// MQTTConfig configures the MQTT notifier.
type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
	QoS      byte
	Username string
	Password string
	Timeout  time.Duration
}

// publisher is the subset of mqtt.Client used to deliver events.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTNotifier publishes events as JSON to a topic.
type MQTTNotifier struct {
	config MQTTConfig
	client publisher
	logger *zap.Logger
}

type mqttPayload struct {
	Event
	DurationSeconds float64 `json:"duration_s"`
}

// NewMQTTNotifier connects to the broker and returns a notifier publishing to config.Topic.
//
// Arguments:
//   - ctx: Bounds the initial connection attempt.
//   - config: Broker address, topic and credentials. An empty ClientID gets a random one.
//   - logger: Receives connection lifecycle messages.
//
// Returns:
//   - *MQTTNotifier: The connected notifier.
//   - error: An error if the broker cannot be reached.
func NewMQTTNotifier(ctx context.Context, config MQTTConfig, logger *zap.Logger) (*MQTTNotifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ClientID == "" {
		config.ClientID = "go-motion-" + uuid.NewString()[:8]
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		logger.Info("MQTT connection established", zap.String("broker", config.Broker))
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.String("broker", config.Broker), zap.Error(err))
	}

	client := mqtt.NewClient(opts)
	if err := wait(ctx, client.Connect(), config.Timeout); err != nil {
		return nil, errors.Wrapf(err, "failed to connect to mqtt broker %s", config.Broker)
	}

	return newMQTTNotifier(config, client, logger), nil
}

func newMQTTNotifier(config MQTTConfig, client publisher, logger *zap.Logger) *MQTTNotifier {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	return &MQTTNotifier{config: config, client: client, logger: logger}
}

// Notify publishes the event and waits for the broker acknowledgement.
func (n *MQTTNotifier) Notify(ctx context.Context, event Event) error {
	payload, err := json.Marshal(mqttPayload{Event: event, DurationSeconds: event.Seconds()})
	if err != nil {
		return &NotifyError{Notifier: "mqtt", ClipID: event.ClipID, Err: err}
	}

	token := n.client.Publish(n.config.Topic, n.config.QoS, false, payload)
	if err := wait(ctx, token, n.config.Timeout); err != nil {
		return &NotifyError{Notifier: "mqtt", ClipID: event.ClipID, Err: err}
	}

	n.logger.Debug("Notification published",
		zap.String("topic", n.config.Topic),
		zap.Int("clip_id", event.ClipID),
		zap.Int("size", len(payload)))
	return nil
}

// Close disconnects from the broker when the notifier owns a full client.
func (n *MQTTNotifier) Close() {
	if c, ok := n.client.(mqtt.Client); ok {
		c.Disconnect(250)
	}
}

func wait(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return errors.New("mqtt operation timed out")
	case <-ctx.Done():
		return ctx.Err()
	}
}
