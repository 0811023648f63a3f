// Package session keeps one authenticated appliance cloud session per user
// for the lifetime of the process.
//
// Sessions are created on first access, shared by every request of that
// user, and torn down (logout, then close) when any of the following happens:
//   - the session reports a terminal close or error event
//   - the credentials change and the caller evicts explicitly
//   - the TTL (one hour by default) expires
//   - the bounded cache needs room for another user
//
// Nothing is persisted: after a restart every user authenticates again on
// first access.
package session

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/pb-coding/voltvector-be/internal/meross"
)

var ErrSessionLost = errors.New("session: connection lost while connecting")

const (
	DefaultTTL         = time.Hour
	DefaultMaxSessions = 1000

	teardownTimeout = 10 * time.Second
)

// Session is the slice of a cloud session the manager and its callers use.
// *meross.CloudSession implements it.
type Session interface {
	Connect(ctx context.Context) (int, error)
	Logout(ctx context.Context) error
	Close()
	Authenticated() bool
	Devices() []*meross.Device
	Device(uuid string) (*meross.Device, bool)
	Hub(uuid string) (*meross.HubDevice, bool)
}

// Factory builds an unconnected session. onEvent must be wired as the
// session's event listener.
type Factory func(userID int64, creds meross.Credentials, onEvent func(meross.Event)) Session

type Config struct {
	TTL         time.Duration
	MaxSessions int
}

type entry struct {
	userID   int64
	session  Session
	timer    *time.Timer
	detached atomic.Bool
}

// detach marks the entry as leaving the cache. Only the first caller wins
// and is responsible for the teardown.
func (e *entry) detach() bool {
	return e.detached.CompareAndSwap(false, true)
}

// Manager is the process wide session cache.
type Manager struct {
	factory Factory
	ttl     time.Duration
	logger  *logrus.Logger
	gauge   prometheus.Gauge

	// mu makes lookup+insert and lookup+remove atomic with respect to each
	// other. The cache itself is already safe for concurrent use.
	mu    sync.Mutex
	cache *lru.Cache
	group singleflight.Group
}

func NewManager(factory Factory, cfg Config, logger *logrus.Logger, reg prometheus.Registerer) (*Manager, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}

	m := &Manager{
		factory: factory,
		ttl:     cfg.TTL,
		logger:  logger,
		gauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meross_cached_sessions",
			Help: "Number of cached appliance cloud sessions",
		}),
	}
	if reg != nil {
		if err := reg.Register(m.gauge); err != nil {
			return nil, err
		}
	}

	cache, err := lru.NewWithEvict(cfg.MaxSessions, m.onEvicted)
	if err != nil {
		return nil, err
	}
	m.cache = cache
	return m, nil
}

// onEvicted runs for capacity evictions and explicit removals alike. It is
// called with m.mu held and must not block.
func (m *Manager) onEvicted(_, value interface{}) {
	e := value.(*entry)
	if e.detach() {
		m.logger.WithField("user_id", e.userID).Info("session evicted from cache")
		go m.teardown(context.Background(), e)
	}
}

func (m *Manager) lookup(userID int64) (*entry, bool) {
	v, ok := m.cache.Get(userID)
	if !ok {
		return nil, false
	}
	e := v.(*entry)
	if e.detached.Load() {
		return nil, false
	}
	return e, true
}

// GetOrCreate returns the cached session of userID, logging in with creds
// when none exists. Concurrent callers for the same user share one login.
func (m *Manager) GetOrCreate(ctx context.Context, userID int64, creds meross.Credentials) (Session, error) {
	if e, ok := m.lookup(userID); ok {
		return e.session, nil
	}

	v, err, _ := m.group.Do(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		if e, ok := m.lookup(userID); ok {
			return e.session, nil
		}
		return m.create(ctx, userID, creds)
	})
	if err != nil {
		return nil, err
	}
	return v.(Session), nil
}

func (m *Manager) create(ctx context.Context, userID int64, creds meross.Credentials) (Session, error) {
	log := m.logger.WithField("user_id", userID)

	e := &entry{userID: userID}
	e.session = m.factory(userID, creds, func(ev meross.Event) {
		m.handleEvent(e, ev)
	})

	n, err := e.session.Connect(ctx)
	if err != nil {
		if e.detach() {
			m.teardown(ctx, e)
		}
		log.WithError(err).Warn("appliance cloud login failed")
		return nil, err
	}

	m.mu.Lock()
	if e.detached.Load() {
		m.mu.Unlock()
		return nil, ErrSessionLost
	}
	e.timer = time.AfterFunc(m.ttl, func() {
		log.Debug("session ttl expired")
		m.evictEntry(e)
	})
	m.cache.Add(userID, e)
	m.gauge.Set(float64(m.cache.Len()))
	m.mu.Unlock()

	log.WithField("devices", n).Info("appliance cloud session cached")
	return e.session, nil
}

func (m *Manager) handleEvent(e *entry, ev meross.Event) {
	if e.detached.Load() || !ev.Terminal() {
		return
	}
	m.logger.WithFields(logrus.Fields{
		"user_id": e.userID,
		"device":  ev.DeviceUUID,
		"event":   ev.Kind,
	}).WithError(ev.Err).Warn("device connection lost, evicting session")
	m.evictEntry(e)
}

// evictEntry removes e if it is still the cached session of its user and
// tears it down in the background. Used from timers and transport callbacks.
func (m *Manager) evictEntry(e *entry) {
	if !e.detach() {
		return
	}
	m.mu.Lock()
	if v, ok := m.cache.Peek(e.userID); ok && v.(*entry) == e {
		m.cache.Remove(e.userID)
	}
	m.gauge.Set(float64(m.cache.Len()))
	m.mu.Unlock()

	go m.teardown(context.Background(), e)
}

// Evict logs the user's session out and drops it. Evicting a user without a
// session, or evicting twice, is a no-op.
func (m *Manager) Evict(ctx context.Context, userID int64) {
	m.mu.Lock()
	v, ok := m.cache.Peek(userID)
	if !ok {
		m.mu.Unlock()
		return
	}
	e := v.(*entry)
	won := e.detach()
	m.cache.Remove(userID)
	m.gauge.Set(float64(m.cache.Len()))
	m.mu.Unlock()

	if won {
		m.teardown(ctx, e)
	}
}

// Clear evicts every cached session. Called on shutdown.
func (m *Manager) Clear(ctx context.Context) {
	for _, key := range m.cache.Keys() {
		m.Evict(ctx, key.(int64))
	}
}

func (m *Manager) Len() int {
	return m.cache.Len()
}

// teardown logs out best effort and closes the session.
func (m *Manager) teardown(ctx context.Context, e *entry) {
	if e.timer != nil {
		e.timer.Stop()
	}

	ctx, cancel := context.WithTimeout(ctx, teardownTimeout)
	defer cancel()

	log := m.logger.WithField("user_id", e.userID)
	if err := e.session.Logout(ctx); err != nil {
		log.WithError(err).Warn("logout failed during teardown")
	}
	e.session.Close()
	log.Debug("session torn down")
}
