// Package mqtt publishes the sitter's cycle status to an MQTT broker. It is
// a passive observer of the event bus and never participates in control
// decisions; the service runs fine with no broker configured.
package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/homegrid/battsitter/core/events"
	"github.com/homegrid/battsitter/infra/logger"
)

// Config defines the connection parameters for the status publisher. An
// empty Broker disables publishing entirely.
type Config struct {
	Broker   string `json:"broker"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	Topic    string `json:"topic"`
	UseTLS   bool   `json:"use_tls"`
}

const (
	defaultTopic   = "battsitter/status"
	publishTimeout = 5 * time.Second
)

// pahoClient is the subset of the Paho client the publisher uses, kept as an
// interface so tests can substitute a fake.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// StatusPublisher pushes a retained JSON status document after every cycle
// and maintains an availability topic through the broker's last will.
type StatusPublisher struct {
	cli   pahoClient
	topic string
	log   logger.Logger
}

// NewStatusPublisher connects to the broker. The availability topic carries
// "online" retained while connected and "offline" via LWT after a dirty
// disconnect.
func NewStatusPublisher(cfg Config) (*StatusPublisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt: broker is required")
	}
	if cfg.Topic == "" {
		cfg.Topic = defaultTopic
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "battsitter-" + uuid.NewString()[:8]
	}

	log := logger.New("mqtt-publisher")
	availability := cfg.Topic + "/availability"

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10*time.Second).
		SetWill(availability, "offline", 1, true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if token := c.Publish(availability, 1, true, "online"); token.Wait() && token.Error() != nil {
			log.Errorf("availability publish error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Warnf("MQTT connection lost: %v", err)
	}

	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt: connect: %w", token.Error())
	}
	return &StatusPublisher{cli: cli, topic: cfg.Topic, log: log}, nil
}

// statusPayload is the retained status document.
type statusPayload struct {
	Outcome         string  `json:"outcome"`
	EVCharging      bool    `json:"ev_charging"`
	ChargerState    string  `json:"charger_state"`
	CarConnected    bool    `json:"car_connected"`
	BatteryCharging bool    `json:"battery_charging"`
	BatterySoc      float64 `json:"battery_soc"`
	BatteryMode     string  `json:"battery_mode"`
	OwnsOverride    bool    `json:"owns_override"`
	LastCommand     string  `json:"last_command,omitempty"`
	Error           string  `json:"error,omitempty"`
	Time            string  `json:"time"`
}

// Publish sends one cycle event as a retained message.
func (p *StatusPublisher) Publish(ev events.CycleEvent) error {
	payload := statusPayload{
		Outcome:         ev.Outcome,
		EVCharging:      ev.Charger.DrawingPower(),
		ChargerState:    ev.Charger.ChargingState.String(),
		CarConnected:    ev.Charger.CarConnected,
		BatteryCharging: ev.Battery.IsCharging,
		BatterySoc:      ev.Battery.StateOfCharge,
		BatteryMode:     ev.Battery.Mode.String(),
		OwnsOverride:    ev.OwnsOverride,
		Time:            ev.Time.Format(time.RFC3339),
	}
	if !ev.LastCommand.IsZero() {
		payload.LastCommand = ev.LastCommand.Format(time.RFC3339)
	}
	if ev.Err != nil {
		payload.Error = ev.Err.Error()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("mqtt: marshal status: %w", err)
	}
	token := p.cli.Publish(p.topic, 0, true, body)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt: publish timeout")
	}
	if token.Error() != nil {
		return fmt.Errorf("mqtt: publish: %w", token.Error())
	}
	return nil
}

// Run consumes cycle events until the context is canceled or the channel
// closes. Publish errors are logged, never propagated: status publishing
// must not disturb the control loop.
func (p *StatusPublisher) Run(ctx context.Context, sub <-chan events.CycleEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if err := p.Publish(ev); err != nil {
				p.log.Warnf("status publish failed: %v", err)
			}
		}
	}
}

// Close disconnects from the broker.
func (p *StatusPublisher) Close() {
	if p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
