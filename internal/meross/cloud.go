package meross

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultDomain     = "eu-iot.meross.com"
	DefaultBrokerPort = 2001
	DefaultTimeout    = 10 * time.Second

	brokerKeepAlive     = 30 * time.Second
	brokerRetryInterval = 5 * time.Second
)

// Credentials are the account login of one end user.
type Credentials struct {
	Email    string
	Password string
}

// String never includes the password.
func (c Credentials) String() string {
	return fmt.Sprintf("{email:%s password:[redacted]}", c.Email)
}

func (c Credentials) GoString() string { return c.String() }

// AuthState is the token material returned by a successful login.
type AuthState struct {
	Token           string
	Key             string
	UserID          string
	Email           string
	AuthenticatedAt time.Time
}

// Options configures a CloudSession. Zero values fall back to the package
// defaults.
type Options struct {
	Credentials     Credentials
	Secret          string
	BaseURL         string
	DefaultDomain   string
	BrokerPort      int
	Timeout         time.Duration
	LocalHTTPFirst  bool
	OnlyLocalForGet bool

	HTTPClient *http.Client
	Dialer     Dialer
	Metrics    *Metrics
	Logger     logrus.FieldLogger

	// OnEvent receives every device event of the session. It is called from
	// transport goroutines and must not block.
	OnEvent func(Event)
}

func (o *Options) applyDefaults() {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.DefaultDomain == "" {
		o.DefaultDomain = DefaultDomain
	}
	if o.BrokerPort == 0 {
		o.BrokerPort = DefaultBrokerPort
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Dialer == nil {
		o.Dialer = DialPaho
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	// only meaningful when the local path is tried first
	if !o.LocalHTTPFirst {
		o.OnlyLocalForGet = false
	}
}

// CloudSession owns the login of one user, the device registry and one
// TransportSession per broker domain.
type CloudSession struct {
	opts   Options
	api    *apiClient
	local  *LocalTransport
	logger logrus.FieldLogger
	appID  string

	mu         sync.RWMutex
	auth       *AuthState
	codec      *Codec
	devices    map[string]*Device
	hubs       map[string]*HubDevice
	order      []string
	transports map[string]*TransportSession
	closed     bool
}

func NewCloudSession(opts Options) *CloudSession {
	opts.applyDefaults()
	return &CloudSession{
		opts:       opts,
		api:        newAPIClient(opts.BaseURL, opts.Secret, opts.HTTPClient, opts.Timeout),
		local:      NewLocalTransport(opts.HTTPClient, opts.Timeout),
		logger:     opts.Logger,
		appID:      md5Hex("API" + uuid.NewString()),
		devices:    make(map[string]*Device),
		hubs:       make(map[string]*HubDevice),
		transports: make(map[string]*TransportSession),
	}
}

// Connect logs in, loads the device list and attaches every device to its
// domain's broker connection. It returns the number of devices.
func (s *CloudSession) Connect(ctx context.Context) (int, error) {
	creds := s.opts.Credentials
	if creds.Email == "" || creds.Password == "" {
		return 0, ErrMissingCredentials
	}

	nonce, err := randomString(s.api.entropy, 30)
	if err != nil {
		return 0, err
	}
	var login loginResponse
	err = s.api.post(ctx, loginPath, "", loginParams{
		Email:    creds.Email,
		Password: creds.Password,
		MobileInfo: mobileInfo{
			MobileOS: runtime.GOOS,
			UUID:     nonce + uuid.NewString(),
		},
	}, &login)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return 0, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
		}
		return 0, err
	}
	if login.Token == "" || login.Key == "" || login.UserID == "" {
		return 0, fmt.Errorf("%w: no valid login response received", ErrAuthenticationFailed)
	}

	auth := &AuthState{
		Token:           login.Token,
		Key:             login.Key,
		UserID:          login.UserID.String(),
		Email:           login.Email,
		AuthenticatedAt: time.Now(),
	}
	s.mu.Lock()
	s.auth = auth
	s.codec = NewCodec(auth.Key, responseTopic(auth.UserID, s.appID))
	s.mu.Unlock()

	log := s.logger.WithField("user_id", auth.UserID)
	log.Info("logged in to appliance cloud")

	var descriptors []DeviceDescriptor
	if err := s.api.post(ctx, deviceListPath, auth.Token, nil, &descriptors); err != nil {
		return 0, fmt.Errorf("list devices: %w", err)
	}

	created := make([]*Device, 0, len(descriptors))
	for _, desc := range descriptors {
		d := newDevice(desc, s, s.forward, s.opts.Metrics, log)
		var hub *HubDevice
		if desc.IsHub() {
			var subDevices []SubDevice
			if err := s.api.post(ctx, subDevicesPath, auth.Token, map[string]string{"uuid": desc.UUID}, &subDevices); err != nil {
				log.WithError(err).WithField("device", desc.UUID).Warn("failed to load hub sub-devices")
			}
			hub = newHubDevice(d, subDevices)
		}

		s.mu.Lock()
		if _, known := s.devices[desc.UUID]; !known {
			s.order = append(s.order, desc.UUID)
		}
		s.devices[desc.UUID] = d
		if hub != nil {
			s.hubs[desc.UUID] = hub
		}
		s.mu.Unlock()
		created = append(created, d)
	}

	// every device is registered before any transport can deliver to it
	for _, d := range created {
		s.attach(d.desc)
	}

	log.WithField("devices", len(descriptors)).Info("device list loaded")
	return len(descriptors), nil
}

func (s *CloudSession) domainOf(desc DeviceDescriptor) string {
	if desc.Domain != "" {
		return desc.Domain
	}
	return s.opts.DefaultDomain
}

// attach joins the device to its domain's transport, creating it lazily.
func (s *CloudSession) attach(desc DeviceDescriptor) {
	domain := s.domainOf(desc)

	s.mu.Lock()
	if s.closed || s.auth == nil {
		s.mu.Unlock()
		return
	}
	t, ok := s.transports[domain]
	if !ok {
		cfg := BrokerConfig{
			Host:          domain,
			Port:          s.opts.BrokerPort,
			ClientID:      "app:" + s.appID,
			Username:      s.auth.UserID,
			Password:      md5Hex(s.auth.UserID + s.auth.Key),
			KeepAlive:     brokerKeepAlive,
			RetryInterval: brokerRetryInterval,
		}
		t = newTransportSession(domain, cfg, s.auth.UserID, s.appID, s.opts.Dialer, s, s.logger)
		s.transports[domain] = t
	}
	s.mu.Unlock()

	t.Attach(desc.UUID)
}

func (s *CloudSession) forward(ev Event) {
	if s.opts.OnEvent != nil {
		s.opts.OnEvent(ev)
	}
}

func (s *CloudSession) dispatch(deviceUUID string, env *Envelope) {
	if d, ok := s.Device(deviceUUID); ok {
		d.handleMessage(env)
	}
}

func (s *CloudSession) notify(deviceUUID string, kind EventKind, err error) {
	if d, ok := s.Device(deviceUUID); ok {
		d.handleEvent(kind, err)
	}
}

func (s *CloudSession) reinitialize(deviceUUID string) {
	d, ok := s.Device(deviceUUID)
	if !ok {
		return
	}
	s.attach(d.desc)
}

func (s *CloudSession) encode(method Method, namespace string, payload any) (*Envelope, error) {
	s.mu.RLock()
	codec := s.codec
	s.mu.RUnlock()
	if codec == nil {
		return nil, ErrNotAuthenticated
	}
	return codec.Encode(method, namespace, payload)
}

func (s *CloudSession) requestTimeout() time.Duration {
	return s.opts.Timeout
}

// sendMessage tries the local HTTP path first when enabled and a local IP is
// known, then the broker. GET requests stay local when OnlyLocalForGet is set.
func (s *CloudSession) sendMessage(ctx context.Context, d *Device, env *Envelope) bool {
	if ip := d.KnownLocalIP(); s.opts.LocalHTTPFirst && ip != "" {
		err := s.local.Send(ctx, ip, env, d.handleMessage)
		if err == nil {
			return true
		}
		s.logger.WithError(err).WithFields(logrus.Fields{
			"device":    d.UUID(),
			"namespace": env.Header.Namespace,
		}).Debug("local request failed")
		if env.Header.Method == MethodGet && s.opts.OnlyLocalForGet {
			return false
		}
	}

	s.mu.RLock()
	t := s.transports[s.domainOf(d.desc)]
	s.mu.RUnlock()
	if t == nil {
		return false
	}
	return t.Publish(d.UUID(), env)
}

// Logout ends the cloud login. The auth state is cleared whatever the
// upstream answers; logging out twice is a no-op.
func (s *CloudSession) Logout(ctx context.Context) error {
	s.mu.Lock()
	auth := s.auth
	s.auth = nil
	s.codec = nil
	s.mu.Unlock()

	if auth == nil {
		return nil
	}
	if err := s.api.post(ctx, logoutPath, auth.Token, nil, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Close tears down every broker connection and fails in-flight requests.
func (s *CloudSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	transports := make([]*TransportSession, 0, len(s.transports))
	for _, t := range s.transports {
		transports = append(transports, t)
	}
	devices := make([]*Device, 0, len(s.devices))
	for _, d := range s.devices {
		devices = append(devices, d)
	}
	s.mu.Unlock()

	for _, t := range transports {
		t.Close()
	}
	for _, d := range devices {
		d.failPending(ErrNoDataConnection)
	}
}

func (s *CloudSession) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth != nil
}

// Auth returns a copy of the current auth state.
func (s *CloudSession) Auth() (AuthState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.auth == nil {
		return AuthState{}, false
	}
	return *s.auth, true
}

// Devices returns the devices in device list order.
func (s *CloudSession) Devices() []*Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Device, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.devices[id])
	}
	return out
}

func (s *CloudSession) Device(deviceUUID string) (*Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[deviceUUID]
	return d, ok
}

func (s *CloudSession) Hub(deviceUUID string) (*HubDevice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hubs[deviceUUID]
	return h, ok
}

// Transport returns the broker connection serving domain, if any.
func (s *CloudSession) Transport(domain string) (*TransportSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transports[domain]
	return t, ok
}
