package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/arming-panel/internal/logger"
	"github.com/sweeney/arming-panel/internal/panel"
)

const (
	publishTimeout = 5 * time.Second
	bufferCapacity = 256
	outboxCapacity = 64
)

var (
	errPublishTimeout = errors.New("publish timeout")
	errClosed         = errors.New("publisher closed")
)

// RealPublisher publishes to an actual MQTT broker. Publish and
// PublishSystem only enqueue; a single worker goroutine talks to the
// broker. Messages that cannot be delivered (offline, timed out, refused,
// or a full outbox) are buffered and replayed on the next connect.
type RealPublisher struct {
	client  paho.Client
	log     *zap.SugaredLogger
	timeout time.Duration

	outbox chan bufferedMsg
	done   chan struct{}

	mu        sync.Mutex
	buffer    *ringBuffer
	connected bool // set after the first successful connect
	closed    bool
}

// NewRealPublisher creates a publisher for broker. The connection is made
// in the background and retried forever, so startup never blocks on the
// broker.
func NewRealPublisher(broker, clientID string) *RealPublisher {
	var p *RealPublisher

	will, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE"})
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(func(c paho.Client) { p.onConnect(c) }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warnw("connection lost", "error", err)
		})

	client := paho.NewClient(opts)
	p = newPublisher(client, publishTimeout)
	client.Connect()
	p.log.Infow("connecting", "broker", broker, "client_id", clientID)
	return p
}

// newPublisher wraps client and starts the delivery worker.
func newPublisher(client paho.Client, timeout time.Duration) *RealPublisher {
	log := logger.Named("mqtt")
	p := &RealPublisher{
		client:  client,
		log:     log,
		timeout: timeout,
		outbox:  make(chan bufferedMsg, outboxCapacity),
		done:    make(chan struct{}),
		buffer:  newRingBuffer(bufferCapacity, log),
	}
	go p.run()
	return p
}

// onConnect replays buffered messages. Reconnects after the first
// connection also announce themselves on the system topic.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	reconnect := p.connected
	p.connected = true
	pending := p.buffer.drainAll()
	p.mu.Unlock()

	if reconnect {
		p.log.Infow("reconnected", "buffered", len(pending))
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		c.Publish(TopicSystem, 1, false, payload)
	} else {
		p.log.Infow("connected", "buffered", len(pending))
	}

	for _, m := range pending {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

// Publish queues a panel event for the MQTT broker.
func (p *RealPublisher) Publish(event panel.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	if err := p.enqueue(bufferedMsg{topic: Topic, payload: payload}); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// PublishSystem queues a system lifecycle event for the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) so lifecycle events survive a flaky link
	msg := bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained}
	if err := p.enqueue(msg); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// enqueue hands m to the worker without blocking.
func (p *RealPublisher) enqueue(m bufferedMsg) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errClosed
	}
	select {
	case p.outbox <- m:
	default:
		p.log.Warnw("outbox full, buffered", "topic", m.topic)
		p.buffer.push(m)
	}
	return nil
}

func (p *RealPublisher) run() {
	defer close(p.done)
	for m := range p.outbox {
		if err := p.send(m); err != nil {
			p.log.Warnw("publish failed, buffered", "topic", m.topic, "error", err)
			p.hold(m)
		}
	}
}

func (p *RealPublisher) send(m bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.log.Debugw("offline, buffered", "topic", m.topic)
		p.hold(m)
		return nil
	}

	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("%w after %s", errPublishTimeout, p.timeout)
	}
	return token.Error()
}

func (p *RealPublisher) hold(m bufferedMsg) {
	p.mu.Lock()
	p.buffer.push(m)
	p.mu.Unlock()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close stops accepting messages, gives the worker up to one publish
// timeout to deliver what is queued and disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.outbox)
	p.mu.Unlock()

	select {
	case <-p.done:
	case <-time.After(p.timeout):
		p.log.Warnw("closing with messages still queued")
	}

	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
