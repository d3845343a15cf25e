package mqtt

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// bufferedMsg stores a serialized MQTT message until it is sent.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer is a fixed-capacity FIFO of pending messages.
// Not safe for concurrent use; outbox synchronizes.
type ringBuffer struct {
	buf      []bufferedMsg
	capacity int
	head     int // position of the oldest message
	count    int
	overflow bool // true if any message was dropped since the buffer was last empty
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{
		buf:      make([]bufferedMsg, capacity),
		capacity: capacity,
	}
}

// push appends msg, overwriting the oldest message when full.
// Returns true if a message was dropped.
func (r *ringBuffer) push(msg bufferedMsg) bool {
	tail := (r.head + r.count) % r.capacity
	r.buf[tail] = msg
	if r.count == r.capacity {
		r.head = (r.head + 1) % r.capacity
		r.overflow = true
		return true
	}
	r.count++
	return false
}

// pushFront puts msg back as the oldest message. When full, msg is the one
// dropped and false is returned.
func (r *ringBuffer) pushFront(msg bufferedMsg) bool {
	if r.count == r.capacity {
		r.overflow = true
		return false
	}
	r.head = (r.head - 1 + r.capacity) % r.capacity
	r.buf[r.head] = msg
	r.count++
	return true
}

// pop removes and returns the oldest message.
func (r *ringBuffer) pop() (bufferedMsg, bool) {
	if r.count == 0 {
		return bufferedMsg{}, false
	}
	msg := r.buf[r.head]
	r.buf[r.head] = bufferedMsg{}
	r.head = (r.head + 1) % r.capacity
	r.count--
	if r.count == 0 {
		r.head = 0
		r.overflow = false
	}
	return msg, true
}

// drainAll removes and returns every message, oldest first.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.count == 0 {
		return nil
	}
	result := make([]bufferedMsg, 0, r.count)
	for {
		msg, ok := r.pop()
		if !ok {
			return result
		}
		result = append(result, msg)
	}
}

func (r *ringBuffer) len() int {
	return r.count
}

// outbox queues messages and sends them, oldest first, from a single
// goroutine. deliver never blocks on the network, and messages queued while
// a replay is running go out after it.
type outbox struct {
	mu        sync.Mutex
	buf       *ringBuffer
	connected func() bool
	send      func(bufferedMsg) error
	log       logrus.FieldLogger

	wake     chan struct{}
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

func newOutbox(capacity int, connected func() bool, send func(bufferedMsg) error, log logrus.FieldLogger) *outbox {
	return &outbox{
		buf:       newRingBuffer(capacity),
		connected: connected,
		send:      send,
		log:       log,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

// start runs the sender goroutine.
func (o *outbox) start() {
	go o.run()
}

func (o *outbox) run() {
	defer close(o.stopped)
	for {
		select {
		case <-o.done:
			o.flush()
			return
		case <-o.wake:
			o.flush()
		}
	}
}

// deliver queues msg for the sender. The oldest message is dropped when the
// queue is full.
func (o *outbox) deliver(msg bufferedMsg) {
	o.mu.Lock()
	wasOverflowing := o.buf.overflow
	if o.buf.push(msg) && !wasOverflowing {
		o.log.Warnf("mqtt: buffer full (%d messages), dropping oldest", o.buf.capacity)
	}
	o.mu.Unlock()
	o.kick()
}

// kick wakes the sender, typically after a reconnect.
func (o *outbox) kick() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// flush sends queued messages in order while connected. A message that fails
// is put back at the front for the next attempt. Returns the number sent.
func (o *outbox) flush() int {
	sent := 0
	for o.connected() {
		o.mu.Lock()
		msg, ok := o.buf.pop()
		o.mu.Unlock()
		if !ok {
			break
		}
		if err := o.send(msg); err != nil {
			o.log.WithError(err).WithField("topic", msg.topic).Warn("mqtt: publish failed, buffering")
			o.mu.Lock()
			o.buf.pushFront(msg)
			o.mu.Unlock()
			break
		}
		sent++
	}
	return sent
}

// stop makes a last send attempt, stops the sender and returns the number of
// messages left undelivered.
func (o *outbox) stop() int {
	o.stopOnce.Do(func() { close(o.done) })
	<-o.stopped

	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.buf.drainAll())
}

func (o *outbox) pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.len()
}
