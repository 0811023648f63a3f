package meross

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// stubSender hands every outgoing envelope to the test.
type stubSender struct {
	codec   *Codec
	timeout time.Duration
	ok      bool
	sent    chan *Envelope
}

func newStubSender(timeout time.Duration, ok bool) *stubSender {
	return &stubSender{
		codec:   NewCodec("key", "/app/42-test/subscribe"),
		timeout: timeout,
		ok:      ok,
		sent:    make(chan *Envelope, 16),
	}
}

func (s *stubSender) encode(method Method, namespace string, payload any) (*Envelope, error) {
	return s.codec.Encode(method, namespace, payload)
}

func (s *stubSender) sendMessage(_ context.Context, _ *Device, env *Envelope) bool {
	if s.ok {
		s.sent <- env
	}
	return s.ok
}

func (s *stubSender) requestTimeout() time.Duration { return s.timeout }

func replyTo(deviceUUID string, req *Envelope, payload string) *Envelope {
	return &Envelope{
		Header: Header{
			From:      "/appliance/" + deviceUUID + "/publish",
			MessageID: req.Header.MessageID,
			Method:    Method(string(req.Header.Method) + "ACK"),
			Namespace: req.Header.Namespace,
		},
		Payload: json.RawMessage(payload),
	}
}

// fakeBroker is a BrokerClient driven by the test.
type fakeBroker struct {
	hooks BrokerHooks

	mu           sync.Mutex
	connected    bool
	connects     int
	disconnects  int
	subscribed   map[string]func(string, []byte)
	published    map[string][][]byte
	publishError error
}

func (f *fakeBroker) Connect() {
	f.mu.Lock()
	f.connects++
	f.mu.Unlock()
}

func (f *fakeBroker) Subscribe(topic string, handler func(string, []byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed[topic] = handler
	return nil
}

func (f *fakeBroker) Publish(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishError != nil {
		return f.publishError
	}
	f.published[topic] = append(f.published[topic], payload)
	return nil
}

func (f *fakeBroker) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeBroker) Disconnect() {
	f.mu.Lock()
	f.connected = false
	f.disconnects++
	f.mu.Unlock()
}

// establish simulates a successful broker handshake.
func (f *fakeBroker) establish() {
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	f.hooks.OnConnect()
}

// deliver pushes a raw frame on topic.
func (f *fakeBroker) deliver(topic string, frame []byte) {
	f.mu.Lock()
	handler := f.subscribed[topic]
	f.mu.Unlock()
	if handler != nil {
		handler(topic, frame)
	}
}

func (f *fakeBroker) publishedTo(topic string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.published[topic]...)
}

type fakeDialer struct {
	mu      sync.Mutex
	brokers []*fakeBroker
	configs []BrokerConfig
}

func (d *fakeDialer) dial(cfg BrokerConfig, hooks BrokerHooks) BrokerClient {
	b := &fakeBroker{
		hooks:      hooks,
		subscribed: make(map[string]func(string, []byte)),
		published:  make(map[string][][]byte),
	}
	d.mu.Lock()
	d.brokers = append(d.brokers, b)
	d.configs = append(d.configs, cfg)
	d.mu.Unlock()
	return b
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.brokers)
}

func (d *fakeDialer) broker(i int) *fakeBroker {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.brokers[i]
}
