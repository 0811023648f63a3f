package meross

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// TransportState is the lifecycle state of one broker connection.
type TransportState int

const (
	StateDisconnected TransportState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s TransportState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "disconnected"
	}
}

// transportOwner is the session side of a TransportSession.
type transportOwner interface {
	dispatch(deviceUUID string, env *Envelope)
	notify(deviceUUID string, kind EventKind, err error)
	reinitialize(deviceUUID string)
}

func userTopic(userID string) string {
	return fmt.Sprintf("/app/%s/subscribe", userID)
}

func responseTopic(userID, appID string) string {
	return fmt.Sprintf("/app/%s-%s/subscribe", userID, appID)
}

func deviceTopic(deviceUUID string) string {
	return fmt.Sprintf("/appliance/%s/subscribe", deviceUUID)
}

// isServerUnavailable matches the broker refusal that triggers a silent
// reinitialization instead of an error event.
func isServerUnavailable(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "server unavailable")
}

// TransportSession multiplexes every device of one domain over a single
// broker connection.
type TransportSession struct {
	domain        string
	cfg           BrokerConfig
	userTopic     string
	responseTopic string
	dial          Dialer
	owner         transportOwner
	logger        logrus.FieldLogger

	mu             sync.Mutex
	client         BrokerClient
	generation     int
	state          TransportState
	members        []string
	silentReinit   bool
	silentFailures int
}

func newTransportSession(domain string, cfg BrokerConfig, userID, appID string, dial Dialer, owner transportOwner, logger logrus.FieldLogger) *TransportSession {
	return &TransportSession{
		domain:        domain,
		cfg:           cfg,
		userTopic:     userTopic(userID),
		responseTopic: responseTopic(userID, appID),
		dial:          dial,
		owner:         owner,
		logger:        logger.WithField("domain", domain),
		state:         StateDisconnected,
	}
}

// ResponseTopic is the topic devices answer requests on.
func (t *TransportSession) ResponseTopic() string {
	return t.responseTopic
}

func (t *TransportSession) State() TransportState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *TransportSession) Members() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.members...)
}

func (t *TransportSession) hasMember(deviceUUID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range t.members {
		if m == deviceUUID {
			return true
		}
	}
	return false
}

// Attach registers a device with the connection, dialing the broker when no
// live client exists. A device joining an already connected session gets its
// connected event right away.
func (t *TransportSession) Attach(deviceUUID string) {
	t.mu.Lock()
	if t.state == StateClosed {
		t.mu.Unlock()
		return
	}
	known := false
	for _, m := range t.members {
		if m == deviceUUID {
			known = true
			break
		}
	}
	if !known {
		t.members = append(t.members, deviceUUID)
	}

	if t.client != nil {
		connected := t.state == StateConnected
		t.mu.Unlock()
		if connected {
			go t.owner.notify(deviceUUID, EventConnected, nil)
		}
		return
	}

	t.generation++
	gen := t.generation
	t.state = StateConnecting
	client := t.dial(t.cfg, t.hooks(gen))
	t.client = client
	t.mu.Unlock()

	t.logger.WithField("device", deviceUUID).Debug("dialing broker")
	client.Connect()
}

func (t *TransportSession) hooks(gen int) BrokerHooks {
	return BrokerHooks{
		OnConnect:        func() { t.handleConnect(gen) },
		OnConnectionLost: func(err error) { t.handleConnectionLost(gen, err) },
		OnReconnecting:   func() { t.handleReconnecting(gen) },
		OnError:          func(err error) { t.handleError(gen, err) },
	}
}

// current returns the live client if gen still identifies it.
func (t *TransportSession) current(gen int) (BrokerClient, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.generation || t.client == nil {
		return nil, false
	}
	return t.client, true
}

func (t *TransportSession) handleConnect(gen int) {
	client, ok := t.current(gen)
	if !ok {
		return
	}

	for _, topic := range []string{t.userTopic, t.responseTopic} {
		if err := client.Subscribe(topic, func(_ string, payload []byte) {
			t.handleMessage(gen, payload)
		}); err != nil {
			t.logger.WithError(err).WithField("topic", topic).Error("subscribe failed")
			t.handleError(gen, err)
			return
		}
	}

	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return
	}
	kind := EventConnected
	if t.silentReinit {
		kind = EventReconnect
	}
	t.silentReinit = false
	t.silentFailures = 0
	t.state = StateConnected
	members := append([]string(nil), t.members...)
	t.mu.Unlock()

	t.logger.WithField("event", kind).Info("broker connected")
	for _, m := range members {
		t.owner.notify(m, kind, nil)
	}
}

func (t *TransportSession) handleMessage(gen int, payload []byte) {
	if _, ok := t.current(gen); !ok {
		return
	}
	env, err := Decode(payload)
	if err != nil {
		t.logger.WithError(err).Warn("dropping inbound frame")
		return
	}
	deviceUUID := env.DeviceUUID()
	if deviceUUID == "" || !t.hasMember(deviceUUID) {
		t.logger.WithField("from", env.Header.From).Debug("frame for unknown device")
		return
	}
	t.owner.dispatch(deviceUUID, env)
}

func (t *TransportSession) handleReconnecting(gen int) {
	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return
	}
	t.state = StateReconnecting
	silent := t.silentReinit
	members := append([]string(nil), t.members...)
	t.mu.Unlock()

	if silent {
		return
	}
	for _, m := range members {
		t.owner.notify(m, EventReconnect, nil)
	}
}

func (t *TransportSession) handleConnectionLost(gen int, err error) {
	if isServerUnavailable(err) {
		t.handleError(gen, err)
		return
	}

	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return
	}
	t.state = StateReconnecting
	silent := t.silentReinit
	members := append([]string(nil), t.members...)
	t.mu.Unlock()

	t.logger.WithError(err).Warn("broker connection lost")
	if silent {
		return
	}
	for _, m := range members {
		t.owner.notify(m, EventClose, err)
	}
}

func (t *TransportSession) handleError(gen int, err error) {
	if isServerUnavailable(err) {
		t.reinitialize(gen, err)
		return
	}

	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return
	}
	members := append([]string(nil), t.members...)
	t.mu.Unlock()

	t.logger.WithError(err).Error("broker error")
	for _, m := range members {
		t.owner.notify(m, EventError, err)
	}
}

// reinitialize drops the refused client and dials again through one of the
// member devices. No event reaches the devices.
func (t *TransportSession) reinitialize(gen int, cause error) {
	t.mu.Lock()
	if gen != t.generation || t.state == StateClosed {
		t.mu.Unlock()
		return
	}
	client := t.client
	t.client = nil
	t.generation++
	t.state = StateDisconnected
	t.silentReinit = true
	delay := time.Duration(0)
	if t.silentFailures > 0 {
		delay = t.cfg.RetryInterval
	}
	t.silentFailures++
	var first string
	if len(t.members) > 0 {
		first = t.members[0]
	}
	t.mu.Unlock()

	t.logger.WithError(cause).WithField("delay", delay).Warn("broker unavailable, reinitializing")
	if client != nil {
		client.Disconnect()
	}
	if first == "" {
		return
	}
	time.AfterFunc(delay, func() { t.owner.reinitialize(first) })
}

// Publish sends env to the device topic. It reports false when no live
// connection is available.
func (t *TransportSession) Publish(deviceUUID string, env *Envelope) bool {
	t.mu.Lock()
	client := t.client
	t.mu.Unlock()
	if client == nil || !client.IsConnected() {
		return false
	}

	payload, err := json.Marshal(env)
	if err != nil {
		t.logger.WithError(err).Error("marshal envelope")
		return false
	}
	if err := client.Publish(deviceTopic(deviceUUID), payload); err != nil {
		t.logger.WithError(err).WithField("device", deviceUUID).Warn("publish failed")
		return false
	}
	return true
}

// Close tears the connection down. Late callbacks from the old client are
// ignored.
func (t *TransportSession) Close() {
	t.mu.Lock()
	client := t.client
	t.client = nil
	t.generation++
	t.state = StateClosed
	t.mu.Unlock()

	if client != nil {
		client.Disconnect()
	}
}
