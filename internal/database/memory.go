package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pb-coding/voltvector-be/internal/models"
)

type intervalKey struct {
	userID  int64
	endDate int64
}

// MemoryRepo is an in-process EnergyRepository with the same contracts as
// PostgresRepo. Used for local runs without a database and in tests.
type MemoryRepo struct {
	mu          sync.Mutex
	now         func() time.Time
	nextID      int64
	intervals   map[intervalKey]*models.EnergyInterval
	credentials map[int64]*models.AppCredential
	requests    []models.APIRequest
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		now:         time.Now,
		intervals:   make(map[intervalKey]*models.EnergyInterval),
		credentials: make(map[int64]*models.AppCredential),
	}
}

// WithClock replaces the clock used for created/updated timestamps.
func (r *MemoryRepo) WithClock(now func() time.Time) *MemoryRepo {
	r.now = now
	return r
}

func (r *MemoryRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *MemoryRepo) UpsertIntervals(ctx context.Context, userID, credentialID int64, systemID string, intervals []models.EnergyInterval) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for _, iv := range intervals {
		key := intervalKey{userID, iv.EndDate.Unix()}
		if existing, ok := r.intervals[key]; ok {
			existing.UpdatedAt = now
			continue
		}
		row := iv
		row.ID = r.id()
		row.UserID = userID
		row.CredentialID = credentialID
		row.SystemID = systemID
		row.EndDate = iv.EndDate.UTC()
		row.CreatedAt = now
		row.UpdatedAt = now
		r.intervals[key] = &row
	}
	return int64(len(intervals)), nil
}

func (r *MemoryRepo) QueryIntervals(ctx context.Context, userID int64, start, end time.Time) ([]models.EnergyInterval, error) {
	return r.collect(ctx, func(iv *models.EnergyInterval) bool {
		return iv.UserID == userID && !iv.EndDate.Before(start) && !iv.EndDate.After(end)
	})
}

func (r *MemoryRepo) QueryIntervalHistory(ctx context.Context, userID int64) ([]models.EnergyInterval, error) {
	return r.collect(ctx, func(iv *models.EnergyInterval) bool { return iv.UserID == userID })
}

func (r *MemoryRepo) collect(ctx context.Context, keep func(*models.EnergyInterval) bool) ([]models.EnergyInterval, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.EnergyInterval
	for _, iv := range r.intervals {
		if keep(iv) {
			out = append(out, *iv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndDate.Before(out[j].EndDate) })
	return out, nil
}

func (r *MemoryRepo) ListAppCredentials(ctx context.Context, userID int64) ([]models.AppCredential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.AppCredential
	for _, c := range r.credentials {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepo) GetAppCredential(ctx context.Context, id int64) (models.AppCredential, error) {
	if err := ctx.Err(); err != nil {
		return models.AppCredential{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.credentials[id]
	if !ok {
		return models.AppCredential{}, fmt.Errorf("%w: credential %d", ErrNotFound, id)
	}
	return *c, nil
}

func (r *MemoryRepo) SaveTokens(ctx context.Context, userID int64, appName, accessToken, refreshToken string) (models.AppCredential, error) {
	if err := ctx.Err(); err != nil {
		return models.AppCredential{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for _, c := range r.credentials {
		if c.UserID == userID && c.AppName == appName {
			c.AccessToken = accessToken
			c.RefreshToken = refreshToken
			c.LastRefreshedAt = now
			return *c, nil
		}
	}
	c := &models.AppCredential{
		ID:              r.id(),
		UserID:          userID,
		AppName:         appName,
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		AuthorizedAt:    now,
		LastRefreshedAt: now,
	}
	r.credentials[c.ID] = c
	return *c, nil
}

func (r *MemoryRepo) LogAPIRequest(ctx context.Context, req models.APIRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.credentials[req.CredentialID]; !ok {
		return fmt.Errorf("%w: credential %d", ErrNotFound, req.CredentialID)
	}
	req.ID = r.id()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = r.now()
	}
	r.requests = append(r.requests, req)
	return nil
}

func (r *MemoryRepo) LastRequestPerCredential(ctx context.Context, userID int64) (map[int64]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	last := make(map[int64]time.Time)
	for _, req := range r.requests {
		if req.UserID != userID {
			continue
		}
		if at, ok := last[req.CredentialID]; !ok || req.CreatedAt.After(at) {
			last[req.CredentialID] = req.CreatedAt
		}
	}
	return last, nil
}

func (r *MemoryRepo) Close() error { return nil }

var _ EnergyRepository = (*MemoryRepo)(nil)
