// Package smarthome is the device facing API of the backend. It resolves a
// user's appliance cloud session through the session cache and wraps the
// device commands the API exposes with a retry policy.
package smarthome

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/pb-coding/voltvector-be/internal/meross"
	"github.com/pb-coding/voltvector-be/internal/models"
	"github.com/pb-coding/voltvector-be/internal/session"
)

// ProviderMeross is the only supported provider.
const ProviderMeross = "MEROSS"

var (
	ErrNoCredentials   = errors.New("smarthome: no credentials stored")
	ErrUnknownProvider = errors.New("smarthome: unknown provider")
)

const (
	DefaultRetries       = 1
	DefaultRetryInterval = 500 * time.Millisecond
)

// CredentialStore holds the appliance cloud login of each user.
type CredentialStore interface {
	Credentials(ctx context.Context, userID int64) (meross.Credentials, error)
	SaveCredentials(ctx context.Context, userID int64, creds meross.Credentials) error
}

// MemoryCredentials is a CredentialStore seeded from configuration.
type MemoryCredentials struct {
	mu    sync.RWMutex
	creds map[int64]meross.Credentials
}

func NewMemoryCredentials(seed map[int64]meross.Credentials) *MemoryCredentials {
	m := &MemoryCredentials{creds: make(map[int64]meross.Credentials, len(seed))}
	for id, c := range seed {
		m.creds[id] = c
	}
	return m
}

func (m *MemoryCredentials) Credentials(_ context.Context, userID int64) (meross.Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.creds[userID]
	if !ok {
		return meross.Credentials{}, fmt.Errorf("%w for user %d", ErrNoCredentials, userID)
	}
	return c, nil
}

func (m *MemoryCredentials) SaveCredentials(_ context.Context, userID int64, creds meross.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[userID] = creds
	return nil
}

// Sessions is the part of *session.Manager the service uses.
type Sessions interface {
	GetOrCreate(ctx context.Context, userID int64, creds meross.Credentials) (session.Session, error)
	Evict(ctx context.Context, userID int64)
}

type Options struct {
	// Retries is the number of extra attempts of a failed device command.
	Retries       int
	RetryInterval time.Duration
}

type Service struct {
	sessions Sessions
	store    CredentialStore
	retries  int
	interval time.Duration
	logger   *logrus.Logger
}

func NewService(sessions Sessions, store CredentialStore, opts Options, logger *logrus.Logger) *Service {
	if opts.Retries <= 0 {
		opts.Retries = DefaultRetries
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	return &Service{
		sessions: sessions,
		store:    store,
		retries:  opts.Retries,
		interval: opts.RetryInterval,
		logger:   logger,
	}
}

func (s *Service) session(ctx context.Context, userID int64) (session.Session, error) {
	creds, err := s.store.Credentials(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.sessions.GetOrCreate(ctx, userID, creds)
}

// ListDevices returns every device of the user's cloud account.
func (s *Service) ListDevices(ctx context.Context, userID int64) ([]models.DeviceSummary, error) {
	sess, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}

	devices := sess.Devices()
	out := make([]models.DeviceSummary, 0, len(devices))
	for _, d := range devices {
		desc := d.Descriptor()
		out = append(out, models.DeviceSummary{
			ID:           desc.UUID,
			Name:         desc.Name,
			Type:         desc.DeviceType,
			OnlineStatus: desc.OnlineStatus,
			Provider:     ProviderMeross,
		})
	}
	return out, nil
}

func (s *Service) device(ctx context.Context, userID int64, deviceID string) (*meross.Device, error) {
	sess, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	d, ok := sess.Device(deviceID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", meross.ErrUnknownDevice, deviceID)
	}
	return d, nil
}

// withRetry runs a device command and repeats it s.retries times on failure.
func (s *Service) withRetry(ctx context.Context, userID int64, deviceID, op string, fn func(context.Context, *meross.Device) (json.RawMessage, error)) (json.RawMessage, error) {
	d, err := s.device(ctx, userID, deviceID)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithFields(logrus.Fields{"user_id": userID, "device": deviceID, "op": op})
	var out json.RawMessage
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.interval), uint64(s.retries)),
		ctx,
	)
	err = backoff.RetryNotify(func() error {
		var err error
		out, err = fn(ctx, d)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}, policy, func(err error, _ time.Duration) {
		log.WithError(err).Warn("device command failed, retrying")
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeviceInfo returns the full system state of a device.
func (s *Service) DeviceInfo(ctx context.Context, userID int64, deviceID string) (json.RawMessage, error) {
	return s.withRetry(ctx, userID, deviceID, "info", func(ctx context.Context, d *meross.Device) (json.RawMessage, error) {
		return d.SystemAll(ctx)
	})
}

// PowerHistory returns the daily consumption history of a device.
func (s *Service) PowerHistory(ctx context.Context, userID int64, deviceID string) (json.RawMessage, error) {
	return s.withRetry(ctx, userID, deviceID, "power_history", func(ctx context.Context, d *meross.Device) (json.RawMessage, error) {
		return d.ConsumptionX(ctx)
	})
}

// Electricity returns the instant voltage, current and power readings.
func (s *Service) Electricity(ctx context.Context, userID int64, deviceID string) (json.RawMessage, error) {
	return s.withRetry(ctx, userID, deviceID, "electricity", func(ctx context.Context, d *meross.Device) (json.RawMessage, error) {
		return d.Electricity(ctx)
	})
}

// Toggle switches channel 0 of a device.
func (s *Service) Toggle(ctx context.Context, userID int64, deviceID string, on bool) (json.RawMessage, error) {
	return s.withRetry(ctx, userID, deviceID, "toggle", func(ctx context.Context, d *meross.Device) (json.RawMessage, error) {
		return d.ToggleX(ctx, 0, on)
	})
}

// VerifyCurrent reports whether the user's cached or freshly created
// session is logged in. A rejected login is reported as false, not as an
// error.
func (s *Service) VerifyCurrent(ctx context.Context, userID int64) (bool, error) {
	sess, err := s.session(ctx, userID)
	switch {
	case errors.Is(err, ErrNoCredentials), errors.Is(err, meross.ErrAuthenticationFailed):
		return false, nil
	case err != nil:
		return false, err
	}
	return sess.Authenticated(), nil
}

// VerifyCredentials drops the user's session and logs in with creds. Valid
// credentials are stored and their session stays cached.
func (s *Service) VerifyCredentials(ctx context.Context, userID int64, provider string, creds meross.Credentials) (bool, error) {
	if provider != ProviderMeross {
		return false, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	s.sessions.Evict(ctx, userID)
	sess, err := s.sessions.GetOrCreate(ctx, userID, creds)
	switch {
	case errors.Is(err, meross.ErrAuthenticationFailed):
		s.logger.WithField("user_id", userID).Info("smart home credentials rejected")
		return false, nil
	case err != nil:
		return false, err
	}

	if err := s.store.SaveCredentials(ctx, userID, creds); err != nil {
		return false, err
	}
	return sess.Authenticated(), nil
}

// ProviderStatus tells whether the user stored credentials for a provider
// and whether they currently log in.
type ProviderStatus struct {
	Provider   string `json:"provider"`
	Saved      bool   `json:"saved"`
	Authorized bool   `json:"authorized"`
}

func (s *Service) ProviderOverview(ctx context.Context, userID int64) ([]ProviderStatus, error) {
	status := ProviderStatus{Provider: ProviderMeross}

	_, err := s.store.Credentials(ctx, userID)
	switch {
	case errors.Is(err, ErrNoCredentials):
	case err != nil:
		return nil, err
	default:
		status.Saved = true
		if status.Authorized, err = s.VerifyCurrent(ctx, userID); err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("provider verification failed")
		}
	}
	return []ProviderStatus{status}, nil
}
