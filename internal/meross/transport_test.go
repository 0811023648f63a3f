package meross

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	device string
	kind   EventKind
}

// recordingOwner plays the session side of a TransportSession.
type recordingOwner struct {
	transport *TransportSession

	mu         sync.Mutex
	events     []recordedEvent
	dispatched []string
}

func (o *recordingOwner) dispatch(deviceUUID string, _ *Envelope) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dispatched = append(o.dispatched, deviceUUID)
}

func (o *recordingOwner) notify(deviceUUID string, kind EventKind, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, recordedEvent{deviceUUID, kind})
}

func (o *recordingOwner) reinitialize(deviceUUID string) {
	o.transport.Attach(deviceUUID)
}

func (o *recordingOwner) snapshot() []recordedEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]recordedEvent(nil), o.events...)
}

func (o *recordingOwner) kinds(kind EventKind) int {
	n := 0
	for _, ev := range o.snapshot() {
		if ev.kind == kind {
			n++
		}
	}
	return n
}

func newTestTransport(t *testing.T) (*TransportSession, *fakeDialer, *recordingOwner) {
	t.Helper()
	dialer := &fakeDialer{}
	owner := &recordingOwner{}
	cfg := BrokerConfig{Host: "eu-iot.meross.com", Port: DefaultBrokerPort, RetryInterval: 10 * time.Millisecond}
	ts := newTransportSession("eu-iot.meross.com", cfg, "42", "tag", dialer.dial, owner, testLogger())
	owner.transport = ts
	return ts, dialer, owner
}

func TestTransportConnectSubscribesAndNotifiesMembers(t *testing.T) {
	ts, dialer, owner := newTestTransport(t)

	ts.Attach("dev-1")
	ts.Attach("dev-2")
	require.Equal(t, 1, dialer.count(), "one connection per domain")
	assert.Equal(t, StateConnecting, ts.State())

	b := dialer.broker(0)
	b.establish()

	assert.Equal(t, StateConnected, ts.State())
	assert.Contains(t, b.subscribed, "/app/42/subscribe")
	assert.Contains(t, b.subscribed, "/app/42-tag/subscribe")
	assert.Equal(t, []recordedEvent{{"dev-1", EventConnected}, {"dev-2", EventConnected}}, owner.snapshot())

	// a late joiner gets its connected event without a new dial
	ts.Attach("dev-3")
	require.Eventually(t, func() bool { return owner.kinds(EventConnected) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, dialer.count())
	assert.Equal(t, []string{"dev-1", "dev-2", "dev-3"}, ts.Members())
}

func TestTransportSilentReconnect(t *testing.T) {
	ts, dialer, owner := newTestTransport(t)
	ts.Attach("dev-1")
	ts.Attach("dev-2")
	first := dialer.broker(0)
	first.establish()
	require.Equal(t, 2, owner.kinds(EventConnected))

	first.hooks.OnError(errors.New("Connection refused: Server Unavailable"))

	require.Eventually(t, func() bool { return dialer.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, first.disconnects)

	// the old client's teardown callbacks must not reach the devices
	first.hooks.OnConnectionLost(errors.New("EOF"))
	first.hooks.OnError(errors.New("connection reset"))

	second := dialer.broker(1)
	second.establish()

	assert.Zero(t, owner.kinds(EventClose))
	assert.Zero(t, owner.kinds(EventError))
	assert.Equal(t, 2, owner.kinds(EventConnected))
	assert.Equal(t, 2, owner.kinds(EventReconnect))
	assert.Equal(t, StateConnected, ts.State())
}

func TestTransportNonRecoverableErrors(t *testing.T) {
	ts, dialer, owner := newTestTransport(t)
	ts.Attach("dev-1")
	b := dialer.broker(0)
	b.establish()

	b.hooks.OnConnectionLost(errors.New("EOF"))
	assert.Equal(t, 1, owner.kinds(EventClose))
	assert.Equal(t, StateReconnecting, ts.State())

	b.hooks.OnError(errors.New("not authorized"))
	assert.Equal(t, 1, owner.kinds(EventError))
	assert.Equal(t, 1, dialer.count())
}

func TestTransportRoutesInboundFrames(t *testing.T) {
	ts, dialer, owner := newTestTransport(t)
	ts.Attach("dev-1")
	b := dialer.broker(0)
	b.establish()

	frame := func(from string) []byte {
		raw, err := json.Marshal(Envelope{
			Header:  Header{From: from, MessageID: "m", Method: MethodPush, Namespace: "Appliance.System.Online"},
			Payload: json.RawMessage(`{}`),
		})
		require.NoError(t, err)
		return raw
	}

	b.deliver("/app/42/subscribe", frame("/appliance/dev-1/publish"))
	b.deliver("/app/42/subscribe", frame("/appliance/stranger/publish"))
	b.deliver("/app/42-tag/subscribe", []byte("not json"))

	owner.mu.Lock()
	defer owner.mu.Unlock()
	assert.Equal(t, []string{"dev-1"}, owner.dispatched)
}

func TestTransportPublish(t *testing.T) {
	ts, dialer, _ := newTestTransport(t)
	env := &Envelope{Header: Header{MessageID: "m", Method: MethodGet, Namespace: "Appliance.System.All"}, Payload: json.RawMessage(`{}`)}

	assert.False(t, ts.Publish("dev-1", env), "no client yet")

	ts.Attach("dev-1")
	b := dialer.broker(0)
	assert.False(t, ts.Publish("dev-1", env), "not connected yet")

	b.establish()
	assert.True(t, ts.Publish("dev-1", env))
	require.Len(t, b.publishedTo("/appliance/dev-1/subscribe"), 1)

	b.mu.Lock()
	b.publishError = errors.New("broken pipe")
	b.mu.Unlock()
	assert.False(t, ts.Publish("dev-1", env))
}

func TestTransportClose(t *testing.T) {
	ts, dialer, owner := newTestTransport(t)
	ts.Attach("dev-1")
	b := dialer.broker(0)
	b.establish()

	ts.Close()
	assert.Equal(t, StateClosed, ts.State())
	assert.Equal(t, 1, b.disconnects)

	b.hooks.OnConnectionLost(errors.New("EOF"))
	assert.Zero(t, owner.kinds(EventClose))

	ts.Attach("dev-2")
	assert.Equal(t, 1, dialer.count(), "closed transports do not redial")
}

func TestIsServerUnavailable(t *testing.T) {
	assert.True(t, isServerUnavailable(errors.New("connection refused: Server Unavailable")))
	assert.True(t, isServerUnavailable(errors.New("server unavailable")))
	assert.False(t, isServerUnavailable(errors.New("bad user name or password")))
	assert.False(t, isServerUnavailable(nil))
}
