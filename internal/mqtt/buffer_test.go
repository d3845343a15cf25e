package mqtt

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(i int) bufferedMsg {
	return bufferedMsg{topic: "t", payload: []byte{byte(i)}}
}

func payloads(msgs []bufferedMsg) []byte {
	var out []byte
	for _, m := range msgs {
		out = append(out, m.payload[0])
	}
	return out
}

func TestRingBufferEmptyDrain(t *testing.T) {
	rb := newRingBuffer(10)
	assert.Nil(t, rb.drainAll())
	_, ok := rb.pop()
	assert.False(t, ok)
}

func TestRingBufferPushAndDrain(t *testing.T) {
	rb := newRingBuffer(10)
	for i := 0; i < 5; i++ {
		assert.False(t, rb.push(msg(i)))
	}

	assert.Equal(t, []byte{0, 1, 2, 3, 4}, payloads(rb.drainAll()))
	assert.Nil(t, rb.drainAll(), "second drain should be empty")
}

func TestRingBufferOverflow(t *testing.T) {
	rb := newRingBuffer(5)

	// Push 8 items, buffer should keep the most recent 5.
	dropped := 0
	for i := 0; i < 8; i++ {
		if rb.push(msg(i)) {
			dropped++
		}
	}
	assert.Equal(t, 3, dropped)
	assert.True(t, rb.overflow)
	assert.Equal(t, []byte{3, 4, 5, 6, 7}, payloads(rb.drainAll()))
	assert.False(t, rb.overflow)
}

func TestRingBufferMultipleCycles(t *testing.T) {
	rb := newRingBuffer(5)
	for i := 0; i < 3; i++ {
		rb.push(msg(i))
	}
	require.Len(t, rb.drainAll(), 3)

	for i := 10; i < 14; i++ {
		rb.push(msg(i))
	}
	assert.Equal(t, []byte{10, 11, 12, 13}, payloads(rb.drainAll()))
}

func TestRingBufferPopAndPushFront(t *testing.T) {
	rb := newRingBuffer(3)
	rb.push(msg(1))
	rb.push(msg(2))

	m, ok := rb.pop()
	require.True(t, ok)
	assert.Equal(t, byte(1), m.payload[0])

	rb.push(msg(3))
	assert.True(t, rb.pushFront(m))
	assert.Equal(t, 3, rb.len())

	// Full: the message being put back is the one dropped.
	assert.False(t, rb.pushFront(msg(0)))
	assert.Equal(t, []byte{1, 2, 3}, payloads(rb.drainAll()))
}

func TestRingBufferPreservesFields(t *testing.T) {
	rb := newRingBuffer(10)
	want := bufferedMsg{topic: "gpio/test", payload: []byte(`{"test":true}`), qos: 1, retained: true}
	rb.push(want)

	got := rb.drainAll()
	require.Len(t, got, 1)
	assert.Equal(t, want, got[0])
	assert.Equal(t, 0, rb.len())
}

// fakeLink stands in for the broker connection.
type fakeLink struct {
	mu        sync.Mutex
	connected bool
	sendErr   error
	hold      chan struct{} // if set, send blocks until it is closed
	sent      []bufferedMsg
}

func (l *fakeLink) isConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

func (l *fakeLink) setConnected(c bool) {
	l.mu.Lock()
	l.connected = c
	l.mu.Unlock()
}

func (l *fakeLink) setSendErr(err error) {
	l.mu.Lock()
	l.sendErr = err
	l.mu.Unlock()
}

func (l *fakeLink) send(m bufferedMsg) error {
	l.mu.Lock()
	hold := l.hold
	l.mu.Unlock()
	if hold != nil {
		<-hold
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sendErr != nil {
		return l.sendErr
	}
	l.sent = append(l.sent, m)
	return nil
}

func (l *fakeLink) sentPayloads() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return payloads(l.sent)
}

func TestOutboxFlushSendsInOrder(t *testing.T) {
	log, _ := test.NewNullLogger()
	link := &fakeLink{connected: true}
	o := newOutbox(3, link.isConnected, link.send, log)

	o.deliver(msg(1))
	o.deliver(msg(2))
	assert.Empty(t, link.sentPayloads(), "deliver only queues")

	assert.Equal(t, 2, o.flush())
	assert.Equal(t, []byte{1, 2}, link.sentPayloads())
	assert.Equal(t, 0, o.pending())
}

func TestOutboxHoldsMessagesWhileDisconnected(t *testing.T) {
	log, _ := test.NewNullLogger()
	link := &fakeLink{}
	o := newOutbox(3, link.isConnected, link.send, log)

	for i := 0; i < 4; i++ {
		o.deliver(msg(i))
	}
	assert.Equal(t, 0, o.flush())
	assert.Equal(t, 3, o.pending())

	link.setConnected(true)
	assert.Equal(t, 3, o.flush())
	assert.Equal(t, []byte{1, 2, 3}, link.sentPayloads())
}

func TestOutboxFailedSendKeepsOrder(t *testing.T) {
	log, hook := test.NewNullLogger()
	link := &fakeLink{connected: true, sendErr: errors.New("timeout")}
	o := newOutbox(5, link.isConnected, link.send, log)

	o.deliver(msg(1))
	o.deliver(msg(2))
	o.deliver(msg(3))
	assert.Equal(t, 0, o.flush())
	assert.Equal(t, 3, o.pending())
	assert.NotEmpty(t, hook.AllEntries())

	link.setSendErr(nil)
	assert.Equal(t, 3, o.flush())
	assert.Equal(t, []byte{1, 2, 3}, link.sentPayloads())
}

func TestOutboxLogsOverflowOnce(t *testing.T) {
	log, hook := test.NewNullLogger()
	link := &fakeLink{}
	o := newOutbox(2, link.isConnected, link.send, log)

	for i := 0; i < 6; i++ {
		o.deliver(msg(i))
	}
	var overflow int
	for _, e := range hook.AllEntries() {
		if e.Message == "mqtt: buffer full (2 messages), dropping oldest" {
			overflow++
		}
	}
	assert.Equal(t, 1, overflow)
}

func TestOutboxDeliverDoesNotWaitForStalledSend(t *testing.T) {
	log, _ := test.NewNullLogger()
	hold := make(chan struct{})
	link := &fakeLink{connected: true, hold: hold}
	o := newOutbox(10, link.isConnected, link.send, log)
	o.start()

	o.deliver(msg(1))
	require.Eventually(t, func() bool { return o.pending() == 0 }, time.Second, time.Millisecond,
		"sender should have taken the first message")

	// The sender is stuck on message 1; later messages queue behind it.
	delivered := make(chan struct{})
	go func() {
		o.deliver(msg(2))
		o.deliver(msg(3))
		close(delivered)
	}()
	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("deliver blocked on a stalled send")
	}
	assert.Equal(t, 2, o.pending())

	close(hold)
	assert.Equal(t, 0, o.stop())
	assert.Equal(t, []byte{1, 2, 3}, link.sentPayloads())
}

func TestOutboxReplaysAfterReconnect(t *testing.T) {
	log, _ := test.NewNullLogger()
	link := &fakeLink{}
	o := newOutbox(10, link.isConnected, link.send, log)
	o.start()
	defer o.stop()

	o.deliver(msg(1))
	o.deliver(msg(2))

	link.setConnected(true)
	o.kick()
	o.deliver(msg(3))

	require.Eventually(t, func() bool { return len(link.sentPayloads()) == 3 }, time.Second, time.Millisecond)
	assert.Equal(t, []byte{1, 2, 3}, link.sentPayloads())
}

func TestOutboxStopReportsUndelivered(t *testing.T) {
	log, _ := test.NewNullLogger()
	link := &fakeLink{}
	o := newOutbox(10, link.isConnected, link.send, log)
	o.start()

	o.deliver(msg(1))
	o.deliver(msg(2))
	assert.Equal(t, 2, o.stop())
	assert.Equal(t, 0, o.stop(), "second stop is a no-op")
	assert.Empty(t, link.sentPayloads())
}
