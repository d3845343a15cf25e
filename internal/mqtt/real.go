package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/sweeney/button-monitor/internal/monitor"
)

// ClientID identifies this daemon to the broker.
const ClientID = "button-monitor"

// bufferCapacity is the number of messages kept while disconnected.
const bufferCapacity = 100

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client      paho.Client
	eventsTopic string
	systemTopic string
	out         *outbox
	log         logrus.FieldLogger
}

// NewRealPublisher creates a publisher for the given broker and topic prefix.
// The connection is retried in the background; an unreachable broker is not
// an error.
func NewRealPublisher(broker, topic string, log logrus.FieldLogger) (*RealPublisher, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	p := &RealPublisher{
		eventsTopic: EventsTopic(topic),
		systemTopic: SystemTopic(topic),
		log:         log.WithField("broker", broker),
	}

	will, err := FormatSystemPayload(SystemEvent{Event: "OFFLINE"})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(ClientID).
		SetBinaryWill(p.systemTopic, will, 1, true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	p.out = newOutbox(bufferCapacity, p.client.IsConnectionOpen, p.send, p.log)
	p.out.start()

	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		p.log.Warn("mqtt: broker not reachable yet, buffering until connected")
		return p, nil
	}
	if err := token.Error(); err != nil {
		p.out.stop()
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func (p *RealPublisher) onConnect(paho.Client) {
	p.log.WithField("pending", p.out.pending()).Info("mqtt: connected")
	p.out.kick()
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.log.WithError(err).Warn("mqtt: connection lost")
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.topic, err)
	}
	return nil
}

// Publish queues a transition without waiting for the broker. QoS 0
// (at-most-once), not retained.
func (p *RealPublisher) Publish(t monitor.Transition) error {
	payload, err := FormatPayload(t)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	p.out.deliver(bufferedMsg{topic: p.eventsTopic, payload: payload})
	return nil
}

// PublishSystem queues a lifecycle event. QoS 1 so shutdown events arrive.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	p.out.deliver(bufferedMsg{topic: p.systemTopic, payload: payload, qos: 1, retained: event.Retained})
	return nil
}

// IsConnected reports whether the broker connection is open.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close sends what it still can and disconnects from the broker.
func (p *RealPublisher) Close() error {
	if n := p.out.stop(); n > 0 {
		p.log.WithField("dropped", n).Warn("mqtt: closing with undelivered messages")
	}
	p.client.Disconnect(1000) // 1 second quiesce
	return nil
}

var (
	_ Publisher        = (*RealPublisher)(nil)
	_ ConnectionStatus = (*RealPublisher)(nil)
)
