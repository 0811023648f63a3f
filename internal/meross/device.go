package meross

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DeviceDescriptor is the device list entry returned by the cloud API.
type DeviceDescriptor struct {
	UUID            string `json:"uuid"`
	Name            string `json:"devName"`
	DeviceType      string `json:"deviceType"`
	SubType         string `json:"subType"`
	OnlineStatus    int    `json:"onlineStatus"`
	Domain          string `json:"domain"`
	ReservedDomain  string `json:"reservedDomain"`
	Region          string `json:"region"`
	FirmwareVersion string `json:"fmwareVersion"`
	HardwareVersion string `json:"hdwareVersion"`
}

// IsHub reports whether the device controls sub-devices.
func (d DeviceDescriptor) IsHub() bool {
	return strings.HasPrefix(d.DeviceType, "msh300")
}

// messageSender is what a Device needs from its session.
type messageSender interface {
	encode(method Method, namespace string, payload any) (*Envelope, error)
	sendMessage(ctx context.Context, d *Device, env *Envelope) bool
	requestTimeout() time.Duration
}

type response struct {
	payload json.RawMessage
	err     error
}

type pendingRequest struct {
	messageID   string
	submittedAt time.Time
	result      chan response
	timer       *time.Timer
}

// Device correlates outgoing requests with inbound responses for one
// appliance.
type Device struct {
	desc    DeviceDescriptor
	sender  messageSender
	forward func(Event)
	events  chan Event
	metrics *Metrics
	logger  logrus.FieldLogger

	mu        sync.Mutex
	pending   map[string]*pendingRequest
	connected bool
	localIP   string
}

func newDevice(desc DeviceDescriptor, sender messageSender, forward func(Event), metrics *Metrics, logger logrus.FieldLogger) *Device {
	return &Device{
		desc:    desc,
		sender:  sender,
		forward: forward,
		events:  make(chan Event, deviceEventBuffer),
		metrics: metrics,
		logger:  logger.WithField("device", desc.UUID),
		pending: make(map[string]*pendingRequest),
	}
}

func (d *Device) UUID() string                 { return d.desc.UUID }
func (d *Device) Descriptor() DeviceDescriptor { return d.desc }

// Events is the device's bounded event stream.
func (d *Device) Events() <-chan Event { return d.events }

func (d *Device) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

func (d *Device) SetKnownLocalIP(ip string) {
	d.mu.Lock()
	d.localIP = ip
	d.mu.Unlock()
}

func (d *Device) RemoveKnownLocalIP() {
	d.SetKnownLocalIP("")
}

func (d *Device) KnownLocalIP() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.localIP
}

// PendingCount returns the number of requests awaiting a response.
func (d *Device) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Publish sends a request and waits for the matching response, the timeout
// window (twice the base timeout) or ctx, whichever comes first.
func (d *Device) Publish(ctx context.Context, method Method, namespace string, payload any) (json.RawMessage, error) {
	env, err := d.sender.encode(method, namespace, payload)
	if err != nil {
		return nil, err
	}
	id := env.Header.MessageID
	p := &pendingRequest{
		messageID:   id,
		submittedAt: time.Now(),
		result:      make(chan response, 1),
	}

	d.mu.Lock()
	d.pending[id] = p
	p.timer = time.AfterFunc(2*d.sender.requestTimeout(), func() {
		if d.take(id) != nil {
			p.result <- response{err: ErrTimeout}
		}
	})
	d.mu.Unlock()

	log := d.logger.WithFields(logrus.Fields{"namespace": namespace, "message_id": id})
	log.Debug("sending request")

	if !d.sender.sendMessage(ctx, d, env) {
		if d.take(id) != nil {
			d.metrics.observe(namespace, "no_connection")
			return nil, ErrNoDataConnection
		}
	}

	select {
	case r := <-p.result:
		d.metrics.observe(namespace, outcome(r.err))
		if r.err != nil {
			log.WithError(r.err).Warn("request failed")
		}
		return r.payload, r.err
	case <-ctx.Done():
		if d.take(id) == nil {
			r := <-p.result
			return r.payload, r.err
		}
		d.metrics.observe(namespace, "canceled")
		return nil, ctx.Err()
	}
}

// take removes and returns the pending entry for id. Exactly one caller
// observes a non-nil result per entry.
func (d *Device) take(id string) *pendingRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pending[id]
	if !ok {
		return nil
	}
	delete(d.pending, id)
	if p.timer != nil {
		p.timer.Stop()
	}
	return p
}

// handleMessage consumes an inbound envelope from either transport.
func (d *Device) handleMessage(env *Envelope) {
	if env.Header.From != "" && !strings.Contains(env.Header.From, d.desc.UUID) {
		return
	}
	if p := d.take(env.Header.MessageID); p != nil {
		p.result <- response{payload: env.Payload}
		return
	}
	if env.Header.Method == MethodPush {
		d.emit(Event{
			Kind:       EventData,
			DeviceUUID: d.desc.UUID,
			Namespace:  env.Header.Namespace,
			Payload:    env.Payload,
		})
		return
	}
	d.logger.WithField("message_id", env.Header.MessageID).Debug("dropping unmatched response")
}

// handleEvent applies a transport lifecycle event and passes it on.
func (d *Device) handleEvent(kind EventKind, err error) {
	d.mu.Lock()
	switch kind {
	case EventConnected, EventReconnect:
		d.connected = true
	case EventClose, EventError:
		d.connected = false
	}
	d.mu.Unlock()

	d.emit(Event{Kind: kind, DeviceUUID: d.desc.UUID, Err: err})
}

func (d *Device) emit(ev Event) {
	select {
	case d.events <- ev:
	default:
		d.logger.WithField("event", ev.Kind).Debug("event stream full, dropping")
	}
	if d.forward != nil {
		d.forward(ev)
	}
}

// failPending rejects every in-flight request. Used on session teardown.
func (d *Device) failPending(err error) {
	d.mu.Lock()
	pending := d.pending
	d.pending = make(map[string]*pendingRequest)
	d.mu.Unlock()

	for _, p := range pending {
		p.timer.Stop()
		p.result <- response{err: err}
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}
