package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pb-coding/voltvector-be/internal/models"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time { return c.t }

func TestMemoryRepoUpsertIsIdempotent(t *testing.T) {
	clock := &stepClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	repo := NewMemoryRepo().WithClock(clock.now)
	ctx := context.Background()

	end := time.Date(2024, 5, 1, 11, 45, 0, 0, time.UTC)
	_, err := repo.UpsertIntervals(ctx, 1, 10, "sys", []models.EnergyInterval{{EndDate: end, Production: 100, Consumption: 50}})
	require.NoError(t, err)

	clock.t = clock.t.Add(15 * time.Minute)
	n, err := repo.UpsertIntervals(ctx, 1, 11, "sys", []models.EnergyInterval{{EndDate: end, Production: 999, Consumption: 999}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rows, err := repo.QueryIntervalHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(100), rows[0].Production, "conflict keeps stored values")
	assert.Equal(t, int64(10), rows[0].CredentialID)
	assert.Equal(t, clock.t, rows[0].UpdatedAt, "conflict touches updated_at")
	assert.True(t, rows[0].CreatedAt.Before(rows[0].UpdatedAt))
}

func TestMemoryRepoQueryIntervalsRangeAndOrder(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	var batch []models.EnergyInterval
	for _, i := range []int{3, 0, 2, 1} {
		batch = append(batch, models.EnergyInterval{EndDate: base.Add(time.Duration(i) * models.IntervalLength)})
	}
	_, err := repo.UpsertIntervals(ctx, 1, 1, "sys", batch)
	require.NoError(t, err)
	_, err = repo.UpsertIntervals(ctx, 2, 1, "sys", batch)
	require.NoError(t, err)

	rows, err := repo.QueryIntervals(ctx, 1, base.Add(models.IntervalLength), base.Add(2*models.IntervalLength))
	require.NoError(t, err)
	require.Len(t, rows, 2, "bounds are inclusive")
	assert.Equal(t, base.Add(models.IntervalLength), rows[0].EndDate)
	assert.Equal(t, base.Add(2*models.IntervalLength), rows[1].EndDate)

	history, err := repo.QueryIntervalHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 4)
	for i := 1; i < len(history); i++ {
		assert.True(t, history[i-1].EndDate.Before(history[i].EndDate))
	}
}

func TestMemoryRepoCredentials(t *testing.T) {
	clock := &stepClock{t: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	repo := NewMemoryRepo().WithClock(clock.now)
	ctx := context.Background()

	first, err := repo.SaveTokens(ctx, 1, "production-1", "a1", "r1")
	require.NoError(t, err)

	clock.t = clock.t.Add(time.Hour)
	updated, err := repo.SaveTokens(ctx, 1, "production-1", "a2", "r2")
	require.NoError(t, err)
	assert.Equal(t, first.ID, updated.ID)
	assert.Equal(t, "a2", updated.AccessToken)
	assert.Equal(t, first.AuthorizedAt, updated.AuthorizedAt)
	assert.Equal(t, clock.t, updated.LastRefreshedAt)

	other, err := repo.SaveTokens(ctx, 1, "production-2", "b", "rb")
	require.NoError(t, err)

	list, err := repo.ListAppCredentials(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = repo.GetAppCredential(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.LogAPIRequest(ctx, models.APIRequest{UserID: 1, CredentialID: first.ID, Endpoint: "rgm_stats", CreatedAt: clock.t}))
	require.NoError(t, repo.LogAPIRequest(ctx, models.APIRequest{UserID: 1, CredentialID: first.ID, Endpoint: "consumption_meter", CreatedAt: clock.t.Add(time.Minute)}))
	assert.ErrorIs(t, repo.LogAPIRequest(ctx, models.APIRequest{UserID: 1, CredentialID: 404}), ErrNotFound)

	last, err := repo.LastRequestPerCredential(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, map[int64]time.Time{first.ID: clock.t.Add(time.Minute)}, last)
	assert.NotContains(t, last, other.ID)
}

func TestTranslateError(t *testing.T) {
	conflict := translateError(&pq.Error{Code: "23505", Constraint: "app_credentials_user_app_key"})
	assert.ErrorIs(t, conflict, ErrPersistenceConflict)
	assert.Contains(t, conflict.Error(), "app_credentials_user_app_key")

	other := errors.New("connection refused")
	assert.Same(t, other, translateError(other))
	assert.NoError(t, translateError(nil))
}
