package smarthome

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pb-coding/voltvector-be/internal/meross"
	"github.com/pb-coding/voltvector-be/internal/models"
	"github.com/pb-coding/voltvector-be/internal/session"
)

const validPassword = "hunter2"

// cloud fakes the appliance cloud HTTP API.
type cloud struct {
	mu     sync.Mutex
	logins int
}

func (c *cloud) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	raw, _ := base64.StdEncoding.DecodeString(r.PostForm.Get("params"))

	switch r.URL.Path {
	case "/v1/Auth/Login":
		c.mu.Lock()
		c.logins++
		c.mu.Unlock()
		var p struct {
			Password string `json:"password"`
		}
		_ = json.Unmarshal(raw, &p)
		if p.Password != validPassword {
			_, _ = w.Write([]byte(`{"apiStatus":1004,"info":"","data":null}`))
			return
		}
		_, _ = w.Write([]byte(`{"apiStatus":0,"data":{"userid":42,"email":"user@example.com","key":"key","token":"tok"}}`))
	case "/v1/Device/devList":
		_, _ = w.Write([]byte(`{"apiStatus":0,"data":[{"uuid":"plug-1","devName":"Desk plug","deviceType":"mss310","onlineStatus":1}]}`))
	case "/v1/Profile/logout":
		_, _ = w.Write([]byte(`{"apiStatus":0,"data":{}}`))
	default:
		http.NotFound(w, r)
	}
}

func (c *cloud) loginCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logins
}

// plug is a broker that answers every request like a smart plug would.
type plug struct {
	hooks meross.BrokerHooks

	mu        sync.Mutex
	handlers  map[string]func(string, []byte)
	failNext  map[string]int
	requests  []*meross.Envelope
	connected bool
}

func (p *plug) Connect() {
	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()
	go p.hooks.OnConnect()
}

func (p *plug) Subscribe(topic string, handler func(string, []byte)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[topic] = handler
	return nil
}

func (p *plug) Publish(_ string, payload []byte) error {
	req, err := meross.Decode(payload)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.requests = append(p.requests, req)
	if p.failNext[req.Header.Namespace] > 0 {
		p.failNext[req.Header.Namespace]--
		p.mu.Unlock()
		return nil // swallowed: the request times out
	}
	handler := p.handlers[req.Header.From]
	p.mu.Unlock()

	reply, _ := json.Marshal(meross.Envelope{
		Header: meross.Header{
			From:      "/appliance/plug-1/publish",
			MessageID: req.Header.MessageID,
			Method:    meross.Method(string(req.Header.Method) + "ACK"),
			Namespace: req.Header.Namespace,
		},
		Payload: json.RawMessage(`{"namespace":"` + req.Header.Namespace + `"}`),
	})
	if handler != nil {
		go handler(req.Header.From, reply)
	}
	return nil
}

func (p *plug) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *plug) Disconnect() {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
}

func (p *plug) sent() []*meross.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*meross.Envelope(nil), p.requests...)
}

type fixture struct {
	svc      *Service
	cloud    *cloud
	sessions *session.Manager
	store    *MemoryCredentials

	mu    sync.Mutex
	plugs []*plug
	fail  map[string]int
}

func (f *fixture) lastPlug() *plug {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plugs[len(f.plugs)-1]
}

func newFixture(t *testing.T, fail map[string]int) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	f := &fixture{cloud: &cloud{}, fail: fail}
	srv := httptest.NewServer(f.cloud)
	t.Cleanup(srv.Close)

	dial := func(_ meross.BrokerConfig, hooks meross.BrokerHooks) meross.BrokerClient {
		p := &plug{hooks: hooks, handlers: map[string]func(string, []byte){}, failNext: map[string]int{}}
		f.mu.Lock()
		for ns, n := range f.fail {
			p.failNext[ns] = n
		}
		f.plugs = append(f.plugs, p)
		f.mu.Unlock()
		return p
	}

	factory := func(_ int64, creds meross.Credentials, onEvent func(meross.Event)) session.Session {
		return meross.NewCloudSession(meross.Options{
			Credentials: creds,
			Secret:      "secret",
			BaseURL:     srv.URL,
			Timeout:     25 * time.Millisecond,
			Dialer:      dial,
			Logger:      logger,
			OnEvent:     onEvent,
		})
	}

	sessions, err := session.NewManager(factory, session.Config{}, logger, prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { sessions.Clear(context.Background()) })

	f.sessions = sessions
	f.store = NewMemoryCredentials(map[int64]meross.Credentials{
		1: {Email: "user@example.com", Password: validPassword},
	})
	f.svc = NewService(sessions, f.store, Options{RetryInterval: time.Millisecond}, logger)
	return f
}

func waitConnected(t *testing.T, f *fixture) {
	t.Helper()
	require.Eventually(t, func() bool {
		sess, err := f.sessions.GetOrCreate(context.Background(), 1, meross.Credentials{})
		if err != nil {
			return false
		}
		d, ok := sess.Device("plug-1")
		return ok && d.Connected()
	}, time.Second, 5*time.Millisecond)
}

func TestListDevices(t *testing.T) {
	f := newFixture(t, nil)

	devices, err := f.svc.ListDevices(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []models.DeviceSummary{{
		ID:           "plug-1",
		Name:         "Desk plug",
		Type:         "mss310",
		OnlineStatus: 1,
		Provider:     ProviderMeross,
	}}, devices)

	_, err = f.svc.ListDevices(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cloud.loginCount(), "session is cached")

	_, err = f.svc.ListDevices(context.Background(), 2)
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestDeviceCommands(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.ListDevices(context.Background(), 1)
	require.NoError(t, err)
	waitConnected(t, f)

	tests := []struct {
		name      string
		call      func() (json.RawMessage, error)
		namespace string
	}{
		{"info", func() (json.RawMessage, error) { return f.svc.DeviceInfo(context.Background(), 1, "plug-1") }, "Appliance.System.All"},
		{"power history", func() (json.RawMessage, error) { return f.svc.PowerHistory(context.Background(), 1, "plug-1") }, "Appliance.Control.ConsumptionX"},
		{"electricity", func() (json.RawMessage, error) { return f.svc.Electricity(context.Background(), 1, "plug-1") }, "Appliance.Control.Electricity"},
		{"toggle", func() (json.RawMessage, error) { return f.svc.Toggle(context.Background(), 1, "plug-1", true) }, "Appliance.Control.ToggleX"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := tt.call()
			require.NoError(t, err)
			assert.JSONEq(t, `{"namespace":"`+tt.namespace+`"}`, string(payload))
		})
	}

	sent := f.lastPlug().sent()
	toggle := sent[len(sent)-1]
	assert.Equal(t, meross.MethodSet, toggle.Header.Method)
	assert.JSONEq(t, `{"togglex":{"channel":0,"onoff":1}}`, string(toggle.Payload))

	_, err = f.svc.DeviceInfo(context.Background(), 1, "missing")
	assert.ErrorIs(t, err, meross.ErrUnknownDevice)
}

func TestDeviceCommandRetriesOnce(t *testing.T) {
	t.Run("second attempt succeeds", func(t *testing.T) {
		f := newFixture(t, map[string]int{"Appliance.Control.Electricity": 1})
		_, err := f.svc.ListDevices(context.Background(), 1)
		require.NoError(t, err)
		waitConnected(t, f)

		_, err = f.svc.Electricity(context.Background(), 1, "plug-1")
		require.NoError(t, err)
		assert.Len(t, f.lastPlug().sent(), 2)
	})

	t.Run("gives up after the retry", func(t *testing.T) {
		f := newFixture(t, map[string]int{"Appliance.Control.ToggleX": 5})
		_, err := f.svc.ListDevices(context.Background(), 1)
		require.NoError(t, err)
		waitConnected(t, f)

		_, err = f.svc.Toggle(context.Background(), 1, "plug-1", false)
		assert.ErrorIs(t, err, meross.ErrTimeout)
		assert.Len(t, f.lastPlug().sent(), 2)
	})
}

func TestVerifyCredentials(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	ok, err := f.svc.VerifyCurrent(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.VerifyCredentials(ctx, 1, ProviderMeross, meross.Credentials{Email: "user@example.com", Password: "wrong"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, f.sessions.Len(), "old session was dropped")

	stored, err := f.store.Credentials(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, validPassword, stored.Password, "rejected credentials are not stored")

	ok, err = f.svc.VerifyCredentials(ctx, 7, ProviderMeross, meross.Credentials{Email: "new@example.com", Password: validPassword})
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = f.store.Credentials(ctx, 7)
	assert.NoError(t, err)

	_, err = f.svc.VerifyCredentials(ctx, 1, "HUE", meross.Credentials{})
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = f.svc.VerifyCredentials(ctx, 1, ProviderMeross, meross.Credentials{Email: "user@example.com"})
	assert.ErrorIs(t, err, meross.ErrMissingCredentials)
}

func TestProviderOverview(t *testing.T) {
	f := newFixture(t, nil)

	overview, err := f.svc.ProviderOverview(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []ProviderStatus{{Provider: ProviderMeross, Saved: true, Authorized: true}}, overview)

	overview, err = f.svc.ProviderOverview(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []ProviderStatus{{Provider: ProviderMeross}}, overview)

	require.NoError(t, f.store.SaveCredentials(context.Background(), 3, meross.Credentials{Email: "x@example.com", Password: "nope"}))
	overview, err = f.svc.ProviderOverview(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []ProviderStatus{{Provider: ProviderMeross, Saved: true}}, overview)
}
