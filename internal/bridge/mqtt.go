// Package bridge publishes session state changes to an MQTT broker so home
// automation consumers can follow the device without speaking BLE.
package bridge

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/herbertwells/Volcano/internal/session"
)

// Options holds broker connection settings.
type Options struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// MQTT is an observer consumer of the session manager: every snapshot is
// published as retained JSON, plus a bare status topic for cheap
// availability checks.
type MQTT struct {
	client  mqtt.Client
	manager *session.Manager
	log     *zap.SugaredLogger
	prefix  string

	token uuid.UUID
}

// New connects to the broker. The bridge does not observe the manager
// until Start is called.
func New(manager *session.Manager, opts Options, log *zap.SugaredLogger) (*MQTT, error) {
	copts := mqtt.NewClientOptions()
	copts.AddBroker(opts.Broker)
	copts.SetClientID(opts.ClientID)
	copts.SetUsername(opts.Username)
	copts.SetPassword(opts.Password)
	copts.SetAutoReconnect(true)
	copts.SetKeepAlive(60 * time.Second)
	copts.SetPingTimeout(10 * time.Second)
	copts.SetOnConnectHandler(func(mqtt.Client) {
		log.Infow("mqtt connected", "broker", opts.Broker)
	})
	copts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warnw("mqtt connection lost", "error", err)
	})

	client := mqtt.NewClient(copts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("bridge: connect to broker: %w", token.Error())
	}

	return &MQTT{
		client:  client,
		manager: manager,
		log:     log,
		prefix:  opts.TopicPrefix,
	}, nil
}

// Start registers the bridge as a session observer and publishes the
// current snapshot immediately.
func (b *MQTT) Start() {
	b.token = b.manager.Register(b.publish)
	b.publish(b.manager.Snapshot())
}

// Close unregisters from the manager and disconnects from the broker.
func (b *MQTT) Close() {
	b.manager.Unregister(b.token)
	b.client.Disconnect(250)
}

// publish runs on the manager's notification path and must not block, so
// delivery results are checked on a separate goroutine.
func (b *MQTT) publish(snap session.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		b.log.Errorw("marshal snapshot", "error", err)
		return
	}
	b.send(stateTopic(b.prefix), payload)
	b.send(statusTopic(b.prefix), []byte(snap.Status.String()))
}

func (b *MQTT) send(topic string, payload []byte) {
	token := b.client.Publish(topic, 1, true, payload)
	go func() {
		if token.Wait() && token.Error() != nil {
			b.log.Warnw("mqtt publish failed", "topic", topic, "error", token.Error())
		}
	}()
}

func stateTopic(prefix string) string  { return prefix + "/state" }
func statusTopic(prefix string) string { return prefix + "/status" }
