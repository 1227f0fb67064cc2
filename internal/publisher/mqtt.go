package publisher

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-json-experiment/json"

	"github.com/hfujita/wattsync/internal/config"
	"github.com/hfujita/wattsync/pkg/models"
)

// Publisher pushes committed series points to Home Assistant over MQTT.
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
}

// New connects to the MQTT broker from config.
func New(cfg config.MQTTConfig) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required when enabled")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID("wattsync")
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}

	return &Publisher{
		client:      client,
		topicPrefix: cfg.GetTopicPrefix(),
	}, nil
}

// statePayload is what Home Assistant reads off the state topic.
type statePayload struct {
	State string `json:"state"`
	Sum   string `json:"sum"`
	Start string `json:"start"`
}

// PublishPoint publishes one committed point on the account's state
// topic, retained so Home Assistant picks it up after a restart.
func (p *Publisher) PublishPoint(account string, point models.SeriesPoint) error {
	payload, err := json.Marshal(statePayload{
		State: fmt.Sprintf("%.3f", point.State),
		Sum:   fmt.Sprintf("%.3f", point.Sum),
		Start: point.Start.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encoding state payload: %w", err)
	}

	topic := fmt.Sprintf("%s/%s/state", p.topicPrefix, account)
	if token := p.client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	return nil
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
