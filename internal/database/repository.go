package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/pb-coding/voltvector-be/internal/models"
)

var (
	// ErrPersistenceConflict wraps unique constraint violations. The API
	// boundary reports it as "already in use".
	ErrPersistenceConflict = errors.New("database: already in use")
	ErrNotFound            = errors.New("database: not found")
)

// EnergyRepository is the persistence boundary of the energy ingestion
// engine and the energy query API.
//
// Contracts:
//   - UpsertIntervals is idempotent on (user, end date). An existing row keeps
//     its values and only has its updated_at touched.
//   - QueryIntervals and QueryIntervalHistory return rows ordered by end date
//     ascending.
//   - SaveTokens creates or replaces the grant of (user, app name) and marks
//     it refreshed now.
//   - LastRequestPerCredential maps credential ids to the time of their most
//     recent logged upstream request for the user. Credentials never used are
//     absent from the map.
type EnergyRepository interface {
	// UpsertIntervals stores intervals for userID. Returns the number of
	// rows inserted or touched.
	UpsertIntervals(ctx context.Context, userID, credentialID int64, systemID string, intervals []models.EnergyInterval) (int64, error)

	// QueryIntervals returns the intervals of userID whose end date lies in
	// [start, end].
	QueryIntervals(ctx context.Context, userID int64, start, end time.Time) ([]models.EnergyInterval, error)

	// QueryIntervalHistory returns every stored interval of userID.
	QueryIntervalHistory(ctx context.Context, userID int64) ([]models.EnergyInterval, error)

	ListAppCredentials(ctx context.Context, userID int64) ([]models.AppCredential, error)
	GetAppCredential(ctx context.Context, id int64) (models.AppCredential, error)
	SaveTokens(ctx context.Context, userID int64, appName, accessToken, refreshToken string) (models.AppCredential, error)

	LogAPIRequest(ctx context.Context, req models.APIRequest) error
	LastRequestPerCredential(ctx context.Context, userID int64) (map[int64]time.Time, error)

	// Close releases any resources held by the repository.
	Close() error
}

// translateError maps driver errors onto the package sentinels.
func translateError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return fmt.Errorf("%w: %s", ErrPersistenceConflict, pqErr.Constraint)
	}
	return err
}
