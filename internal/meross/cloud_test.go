package meross

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

// cloudAPI fakes the appliance cloud HTTP API.
type cloudAPI struct {
	t          *testing.T
	loginCode  int
	devices    string
	mu         sync.Mutex
	calls      map[string]int
	lastParams map[string]json.RawMessage
}

func newCloudAPI(t *testing.T, devices string) *cloudAPI {
	return &cloudAPI{t: t, devices: devices, calls: map[string]int{}, lastParams: map[string]json.RawMessage{}}
}

func (c *cloudAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	assert.NoError(c.t, r.ParseForm())
	params, ts, nonce := r.PostForm.Get("params"), r.PostForm.Get("timestamp"), r.PostForm.Get("nonce")
	sum := md5.Sum([]byte(testSecret + ts + nonce + params))
	assert.Equal(c.t, hex.EncodeToString(sum[:]), r.PostForm.Get("sign"))
	assert.Len(c.t, nonce, 16)
	assert.Equal(c.t, "meross", r.Header.Get("vender"))

	decoded, err := base64.StdEncoding.DecodeString(params)
	assert.NoError(c.t, err)

	c.mu.Lock()
	c.calls[r.URL.Path]++
	c.lastParams[r.URL.Path] = decoded
	c.mu.Unlock()

	write := func(status int, data string) {
		_, _ = w.Write([]byte(`{"apiStatus":` + jsonInt(status) + `,"info":"","data":` + data + `}`))
	}

	switch r.URL.Path {
	case "/v1/Auth/Login":
		assert.Equal(c.t, "Basic ", r.Header.Get("Authorization"))
		if c.loginCode != 0 {
			write(c.loginCode, "null")
			return
		}
		write(0, `{"userid":42,"email":"user@example.com","key":"key","token":"tok"}`)
	case "/v1/Device/devList":
		assert.Equal(c.t, "Basic tok", r.Header.Get("Authorization"))
		write(0, c.devices)
	case "/v1/Hub/getSubDevices":
		write(0, `[{"subDeviceId":"valve-1","subDeviceType":"mts100v3"}]`)
	case "/v1/Profile/logout":
		write(0, "{}")
	default:
		http.NotFound(w, r)
	}
}

func (c *cloudAPI) callCount(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[path]
}

func jsonInt(n int) string {
	raw, _ := json.Marshal(n)
	return string(raw)
}

const twoDevices = `[
	{"uuid":"plug-1","devName":"Plug","deviceType":"mss310","onlineStatus":1,"domain":""},
	{"uuid":"hub-1","devName":"Hub","deviceType":"msh300","onlineStatus":1,"domain":"us-iot.meross.com"}
]`

func newTestSession(t *testing.T, api http.Handler, mutate func(*Options)) (*CloudSession, *fakeDialer) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	dialer := &fakeDialer{}
	opts := Options{
		Credentials: Credentials{Email: "user@example.com", Password: "hunter2"},
		Secret:      testSecret,
		BaseURL:     srv.URL,
		Timeout:     200 * time.Millisecond,
		Dialer:      dialer.dial,
		Logger:      testLogger(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	s := NewCloudSession(opts)
	t.Cleanup(s.Close)
	return s, dialer
}

func TestCloudSessionConnect(t *testing.T) {
	api := newCloudAPI(t, twoDevices)
	s, dialer := newTestSession(t, api, nil)

	n, err := s.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, s.Authenticated())

	auth, ok := s.Auth()
	require.True(t, ok)
	assert.Equal(t, "42", auth.UserID)

	var login loginParams
	require.NoError(t, json.Unmarshal(api.lastParams["/v1/Auth/Login"], &login))
	assert.Equal(t, "user@example.com", login.Email)
	assert.Len(t, login.MobileInfo.UUID, 30+36)

	devices := s.Devices()
	require.Len(t, devices, 2)
	assert.Equal(t, "plug-1", devices[0].UUID())

	hub, ok := s.Hub("hub-1")
	require.True(t, ok)
	assert.Equal(t, []SubDevice{{ID: "valve-1", Type: "mts100v3"}}, hub.SubDevices())
	_, ok = s.Hub("plug-1")
	assert.False(t, ok)

	// one broker connection per distinct domain
	require.Equal(t, 2, dialer.count())
	hosts := []string{dialer.configs[0].Host, dialer.configs[1].Host}
	assert.ElementsMatch(t, []string{DefaultDomain, "us-iot.meross.com"}, hosts)
	cfg := dialer.configs[0]
	assert.Equal(t, DefaultBrokerPort, cfg.Port)
	assert.Equal(t, "42", cfg.Username)
	assert.Equal(t, "d8bae40669cb4432578f39d478b5d72d", cfg.Password)
	assert.True(t, strings.HasPrefix(cfg.ClientID, "app:"))
	assert.Equal(t, 30*time.Second, cfg.KeepAlive)
	assert.Equal(t, 5*time.Second, cfg.RetryInterval)
}

func TestCloudSessionConnectErrors(t *testing.T) {
	t.Run("missing credentials", func(t *testing.T) {
		api := newCloudAPI(t, "[]")
		s, _ := newTestSession(t, api, func(o *Options) { o.Credentials.Password = "" })

		_, err := s.Connect(context.Background())
		assert.ErrorIs(t, err, ErrMissingCredentials)
		assert.Zero(t, api.callCount("/v1/Auth/Login"), "no network I/O")
	})

	t.Run("login rejected", func(t *testing.T) {
		api := newCloudAPI(t, "[]")
		api.loginCode = 1004
		s, _ := newTestSession(t, api, nil)

		_, err := s.Connect(context.Background())
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, 1004, apiErr.Status)
		assert.False(t, s.Authenticated())
	})
}

func TestCloudSessionLogoutIdempotent(t *testing.T) {
	api := newCloudAPI(t, "[]")
	s, _ := newTestSession(t, api, nil)

	require.NoError(t, s.Logout(context.Background()), "logout before login is a no-op")

	_, err := s.Connect(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Logout(context.Background()))
	require.NoError(t, s.Logout(context.Background()))
	assert.False(t, s.Authenticated())
	assert.Equal(t, 1, api.callCount("/v1/Profile/logout"))

	_, err = s.encode(MethodGet, "Appliance.System.All", nil)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestCloudSessionRequestOverBroker(t *testing.T) {
	s, dialer := newTestSession(t, newCloudAPI(t, twoDevices), nil)
	_, err := s.Connect(context.Background())
	require.NoError(t, err)

	var b *fakeBroker
	for i, cfg := range dialer.configs {
		if cfg.Host == DefaultDomain {
			b = dialer.broker(i)
		}
	}
	require.NotNil(t, b)
	b.establish()

	plug, ok := s.Device("plug-1")
	require.True(t, ok)
	assert.True(t, plug.Connected())

	done := make(chan json.RawMessage, 1)
	go func() {
		payload, err := plug.SystemAll(context.Background())
		assert.NoError(t, err)
		done <- payload
	}()

	require.Eventually(t, func() bool { return len(b.publishedTo("/appliance/plug-1/subscribe")) == 1 }, time.Second, 5*time.Millisecond)
	req, err := Decode(b.publishedTo("/appliance/plug-1/subscribe")[0])
	require.NoError(t, err)

	auth, _ := s.Auth()
	assert.Equal(t, responseTopic(auth.UserID, s.appID), req.Header.From)

	reply, err := json.Marshal(replyTo("plug-1", req, `{"all":{"system":{}}}`))
	require.NoError(t, err)
	b.deliver(responseTopic(auth.UserID, s.appID), reply)

	select {
	case payload := <-done:
		assert.JSONEq(t, `{"all":{"system":{}}}`, string(payload))
	case <-time.After(time.Second):
		t.Fatal("no response")
	}
}

func TestCloudSessionLocalHTTPFirst(t *testing.T) {
	var localFails bool
	var mu sync.Mutex
	local := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/config", r.URL.Path)
		mu.Lock()
		fail := localFails
		mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req Envelope
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(replyTo("plug-1", &req, `{"local":true}`))
	}))
	defer local.Close()
	localIP := strings.TrimPrefix(local.URL, "http://")

	s, dialer := newTestSession(t, newCloudAPI(t, `[{"uuid":"plug-1","deviceType":"mss310"}]`), func(o *Options) {
		o.LocalHTTPFirst = true
		o.OnlyLocalForGet = true
	})
	_, err := s.Connect(context.Background())
	require.NoError(t, err)
	b := dialer.broker(0)
	b.establish()

	plug, _ := s.Device("plug-1")
	plug.SetKnownLocalIP(localIP)

	payload, err := plug.SystemAll(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"local":true}`, string(payload))
	assert.Empty(t, b.publishedTo("/appliance/plug-1/subscribe"))

	mu.Lock()
	localFails = true
	mu.Unlock()

	// GET stays local when OnlyLocalForGet is set
	_, err = plug.SystemAll(context.Background())
	assert.ErrorIs(t, err, ErrNoDataConnection)
	assert.Empty(t, b.publishedTo("/appliance/plug-1/subscribe"))

	// SET falls back to the broker and then times out waiting for an answer
	_, err = plug.Toggle(context.Background(), true)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Len(t, b.publishedTo("/appliance/plug-1/subscribe"), 1)
	assert.Zero(t, plug.PendingCount())
}

func TestCloudSessionCloseFailsPending(t *testing.T) {
	s, dialer := newTestSession(t, newCloudAPI(t, `[{"uuid":"plug-1","deviceType":"mss310"}]`), func(o *Options) {
		o.Timeout = time.Minute
	})
	_, err := s.Connect(context.Background())
	require.NoError(t, err)
	dialer.broker(0).establish()

	plug, _ := s.Device("plug-1")
	errCh := make(chan error, 1)
	go func() {
		_, err := plug.SystemAll(context.Background())
		errCh <- err
	}()
	require.Eventually(t, func() bool { return plug.PendingCount() == 1 }, time.Second, 5*time.Millisecond)

	s.Close()
	assert.ErrorIs(t, <-errCh, ErrNoDataConnection)
	assert.Equal(t, StateClosed, func() TransportState { ts, _ := s.Transport(DefaultDomain); return ts.State() }())
}

func TestCredentialsRedacted(t *testing.T) {
	c := Credentials{Email: "a@b.c", Password: "hunter2"}
	assert.NotContains(t, c.String(), "hunter2")
	assert.NotContains(t, c.GoString(), "hunter2")
}
