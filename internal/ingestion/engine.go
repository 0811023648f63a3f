// Package ingestion pulls 15 minute production and consumption intervals
// from the Enphase cloud into the repository.
//
// A run for one user selects an app credential (rotating through the
// user's grants to spread the upstream rate limit), refreshes its tokens
// when stale, fetches production then consumption, merges both series and
// upserts the result. Verification walks the stored history and re-runs
// the ingestion for every day with missing intervals.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/pb-coding/voltvector-be/internal/database"
	"github.com/pb-coding/voltvector-be/internal/enphase"
	"github.com/pb-coding/voltvector-be/internal/models"
)

var (
	// ErrInsufficientCredentials means the user has no usable app grant.
	// The user is skipped, it is not a failure.
	ErrInsufficientCredentials = errors.New("ingestion: no authorized app credential")
	ErrFetchExhausted          = errors.New("ingestion: upstream fetch failed")
	ErrRunInProgress           = errors.New("ingestion: run already in progress")
	ErrUnknownUser             = errors.New("ingestion: no solar system configured for user")
)

const (
	// RefreshTokenLifetime is how long a grant stays usable without a
	// refresh.
	RefreshTokenLifetime = 7 * 24 * time.Hour
	// AccessTokenMaxAge triggers a token refresh before use.
	AccessTokenMaxAge = 24 * time.Hour

	DefaultMaxAttempts   = 3
	DefaultRetryInterval = 5 * time.Second

	endpointProduction  = "rgm_stats"
	endpointConsumption = "consumption_meter"
)

// Upstream is the subset of *enphase.Client the engine uses.
type Upstream interface {
	FetchProduction(ctx context.Context, app enphase.App, accessToken, systemID string, w enphase.Window) (*enphase.ProductionResponse, error)
	FetchConsumption(ctx context.Context, app enphase.App, accessToken, systemID string, w enphase.Window) (*enphase.ConsumptionResponse, error)
	RefreshTokens(ctx context.Context, app enphase.App, refreshToken string) (*enphase.Tokens, error)
	ExchangeCode(ctx context.Context, app enphase.App, userID int64, code string) (*enphase.Tokens, error)
}

// Credential is a stored grant joined with its configured app.
type Credential struct {
	models.AppCredential
	App enphase.App
}

// UserSystem binds a user to the solar system ingested for them.
type UserSystem struct {
	UserID   int64  `mapstructure:"user_id" yaml:"user_id"`
	SystemID string `mapstructure:"system_id" yaml:"system_id"`
}

type Options struct {
	Users         []UserSystem
	Locker        Locker
	Location      *time.Location
	MaxAttempts   int
	RetryInterval time.Duration
	Metrics       *Metrics
	Now           func() time.Time
}

type Engine struct {
	repo     database.EnergyRepository
	upstream Upstream
	catalog  enphase.Catalog
	systems  map[int64]string
	locker   Locker
	location *time.Location
	attempts int
	interval time.Duration
	metrics  *Metrics
	logger   *logrus.Logger
	now      func() time.Time
}

func NewEngine(repo database.EnergyRepository, upstream Upstream, catalog enphase.Catalog, opts Options, logger *logrus.Logger) *Engine {
	e := &Engine{
		repo:     repo,
		upstream: upstream,
		catalog:  catalog,
		systems:  make(map[int64]string, len(opts.Users)),
		locker:   opts.Locker,
		location: opts.Location,
		attempts: opts.MaxAttempts,
		interval: opts.RetryInterval,
		metrics:  opts.Metrics,
		logger:   logger,
		now:      opts.Now,
	}
	for _, u := range opts.Users {
		e.systems[u.UserID] = u.SystemID
	}
	if e.locker == nil {
		e.locker = NewMemoryLocker()
	}
	if e.location == nil {
		e.location = time.UTC
	}
	if e.attempts <= 0 {
		e.attempts = DefaultMaxAttempts
	}
	if e.interval <= 0 {
		e.interval = DefaultRetryInterval
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Users returns the ids of every configured user, ascending.
func (e *Engine) Users() []int64 {
	ids := make([]int64, 0, len(e.systems))
	for id := range e.systems {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (e *Engine) Location() *time.Location { return e.location }

// IdentifyCredentialToUse picks the grant for the next upstream call of
// userID: a grant never used for this user if there is one, otherwise the
// one whose last logged request is the oldest. Only grants with a refresh
// token, a configured app and a refresh within RefreshTokenLifetime count.
func (e *Engine) IdentifyCredentialToUse(ctx context.Context, userID int64) (Credential, error) {
	log := e.logger.WithField("user_id", userID)

	stored, err := e.repo.ListAppCredentials(ctx, userID)
	if err != nil {
		return Credential{}, fmt.Errorf("failed to list credentials: %w", err)
	}

	now := e.now()
	var active []Credential
	for _, c := range stored {
		app, ok := e.catalog.Lookup(c.AppName)
		if !ok || c.RefreshToken == "" || now.Sub(c.LastRefreshedAt) > RefreshTokenLifetime {
			continue
		}
		active = append(active, Credential{AppCredential: c, App: app})
	}
	if len(active) == 0 {
		log.WithField("authorized", len(stored)).Debug("no active app credential")
		return Credential{}, fmt.Errorf("%w: user %d", ErrInsufficientCredentials, userID)
	}

	lastUsed, err := e.repo.LastRequestPerCredential(ctx, userID)
	if err != nil {
		return Credential{}, fmt.Errorf("failed to read request log: %w", err)
	}

	pick := -1
	for i, c := range active {
		at, used := lastUsed[c.ID]
		if !used {
			pick = i
			break
		}
		if pick < 0 || at.Before(lastUsed[active[pick].ID]) {
			pick = i
		}
	}

	chosen := active[pick]
	log.WithFields(logrus.Fields{
		"credential": chosen.AppName,
		"active":     len(active),
	}).Debug("identified app credential")
	return chosen, nil
}

// RefreshIfStale exchanges the refresh token when the access token is older
// than AccessTokenMaxAge and persists the new pair.
func (e *Engine) RefreshIfStale(ctx context.Context, cred Credential) (Credential, error) {
	if e.now().Sub(cred.LastRefreshedAt) <= AccessTokenMaxAge {
		return cred, nil
	}

	tokens, err := e.upstream.RefreshTokens(ctx, cred.App, cred.RefreshToken)
	if err != nil {
		return cred, fmt.Errorf("failed to refresh tokens of %s: %w", cred.AppName, err)
	}
	saved, err := e.repo.SaveTokens(ctx, cred.UserID, cred.AppName, tokens.AccessToken, tokens.RefreshToken)
	if err != nil {
		return cred, fmt.Errorf("failed to save refreshed tokens: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"user_id":    cred.UserID,
		"credential": cred.AppName,
	}).Info("refreshed app tokens")
	return Credential{AppCredential: saved, App: cred.App}, nil
}

// FetchWithRetry runs fetch with cred up to the configured number of
// attempts. Every attempt reloads the credential and refreshes it if stale,
// so a refresh done by an earlier attempt is picked up. A successful fetch
// is appended to the request log.
func (e *Engine) FetchWithRetry(ctx context.Context, cred Credential, endpoint string, fetch func(context.Context, Credential) error) error {
	log := e.logger.WithFields(logrus.Fields{
		"user_id":    cred.UserID,
		"credential": cred.AppName,
		"endpoint":   endpoint,
	})

	attempt := 0
	op := func() error {
		attempt++
		stored, err := e.repo.GetAppCredential(ctx, cred.ID)
		if err != nil {
			return err
		}
		fresh, err := e.RefreshIfStale(ctx, Credential{AppCredential: stored, App: cred.App})
		if err != nil {
			return err
		}
		err = fetch(ctx, fresh)
		e.metrics.fetch(endpoint, err)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(e.interval), uint64(e.attempts-1)),
		ctx,
	)
	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		log.WithError(err).WithField("attempt", attempt).Warnf("upstream fetch failed, retrying in %s", wait)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s after %d attempts: %w", ErrFetchExhausted, endpoint, attempt, err)
	}

	if err := e.repo.LogAPIRequest(ctx, models.APIRequest{
		UserID:       cred.UserID,
		CredentialID: cred.ID,
		Endpoint:     endpoint,
	}); err != nil {
		log.WithError(err).Warn("failed to log upstream request")
	}
	return nil
}

// MergeSeries joins both series on end_at. Consumption is the base: the
// output has one row per consumption interval and production defaults to
// zero where no production interval ends at the same time.
func MergeSeries(production []enphase.ProductionInterval, consumption []enphase.ConsumptionInterval) []models.EnergyInterval {
	produced := make(map[int64]int64, len(production))
	for _, p := range production {
		produced[p.EndAt] = p.WhDel
	}

	merged := make([]models.EnergyInterval, 0, len(consumption))
	for _, c := range consumption {
		merged = append(merged, models.EnergyInterval{
			EndDate:     time.Unix(c.EndAt, 0).UTC(),
			Production:  produced[c.EndAt],
			Consumption: c.Enwh,
		})
	}
	return merged
}

// Persist upserts intervals for userID. Safe to repeat over overlapping
// windows.
func (e *Engine) Persist(ctx context.Context, userID, credentialID int64, systemID string, intervals []models.EnergyInterval) (int64, error) {
	n, err := e.repo.UpsertIntervals(ctx, userID, credentialID, systemID, intervals)
	if err != nil {
		return 0, fmt.Errorf("failed to persist intervals: %w", err)
	}
	e.metrics.upserted(n)
	return n, nil
}

// RunUser ingests one window for one user. Runs for the same user never
// overlap: a concurrent call fails with ErrRunInProgress.
func (e *Engine) RunUser(ctx context.Context, userID int64, w enphase.Window) (int64, error) {
	systemID, ok := e.systems[userID]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownUser, userID)
	}

	unlock, err := e.locker.TryLock(ctx, "ingestion:user:"+strconv.FormatInt(userID, 10))
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := unlock(context.Background()); err != nil {
			e.logger.WithError(err).WithField("user_id", userID).Warn("failed to release run lock")
		}
	}()

	cred, err := e.IdentifyCredentialToUse(ctx, userID)
	if err != nil {
		return 0, err
	}

	var production *enphase.ProductionResponse
	err = e.FetchWithRetry(ctx, cred, endpointProduction, func(ctx context.Context, c Credential) error {
		var err error
		production, err = e.upstream.FetchProduction(ctx, c.App, c.AccessToken, systemID, w)
		return err
	})
	if err != nil {
		return 0, err
	}

	var consumption *enphase.ConsumptionResponse
	err = e.FetchWithRetry(ctx, cred, endpointConsumption, func(ctx context.Context, c Credential) error {
		var err error
		consumption, err = e.upstream.FetchConsumption(ctx, c.App, c.AccessToken, systemID, w)
		return err
	})
	if err != nil {
		return 0, err
	}

	intervals := MergeSeries(production.Intervals, consumption.Intervals)
	return e.Persist(ctx, userID, cred.ID, systemID, intervals)
}

// RunReport summarizes one update job.
type RunReport struct {
	Users     int   `json:"users"`
	Succeeded int   `json:"succeeded"`
	Skipped   int   `json:"skipped"`
	Failed    int   `json:"failed"`
	Rows      int64 `json:"rows"`
}

// UpdateEnergyDataJob runs the ingestion for userIDs one after another, or
// for every configured user when userIDs is empty. A zero day fetches the
// upstream "latest" window. Failures are logged per user and never stop
// the job.
func (e *Engine) UpdateEnergyDataJob(ctx context.Context, userIDs []int64, day time.Time) RunReport {
	if len(userIDs) == 0 {
		userIDs = e.Users()
	}
	w := enphase.Window{}
	if !day.IsZero() {
		w.Day = startOfDay(day.In(e.location))
	}

	report := RunReport{Users: len(userIDs)}
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			break
		}
		log := e.logger.WithField("user_id", userID)

		n, err := e.RunUser(ctx, userID, w)
		switch {
		case err == nil:
			report.Succeeded++
			report.Rows += n
			e.metrics.run("ok")
			log.WithField("rows", n).Info("energy data updated")
		case errors.Is(err, ErrInsufficientCredentials), errors.Is(err, ErrRunInProgress):
			report.Skipped++
			e.metrics.run("skipped")
			log.WithError(err).Info("skipping user")
		default:
			report.Failed++
			e.metrics.run("failed")
			log.WithError(err).Error("energy data update failed")
		}
	}
	return report
}

// GapReport lists the days with missing intervals of one user.
type GapReport struct {
	UserID     int64       `json:"user_id"`
	Days       []time.Time `json:"days"`
	Backfilled int         `json:"backfilled"`
	Error      string      `json:"error,omitempty"`
}

// VerifyConsistency looks for missing intervals in the stored history of
// userIDs (all configured users when empty). Unless readOnly, every gap
// day is fetched again with a day scoped window.
func (e *Engine) VerifyConsistency(ctx context.Context, userIDs []int64, readOnly bool) []GapReport {
	if len(userIDs) == 0 {
		userIDs = e.Users()
	}

	reports := make([]GapReport, 0, len(userIDs))
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			break
		}
		log := e.logger.WithField("user_id", userID)
		report := GapReport{UserID: userID}

		history, err := e.repo.QueryIntervalHistory(ctx, userID)
		if err != nil {
			log.WithError(err).Error("failed to load interval history")
			report.Error = err.Error()
			reports = append(reports, report)
			continue
		}

		report.Days = DetectGaps(history, e.location)
		e.metrics.gapDays(len(report.Days))
		log.WithFields(logrus.Fields{
			"intervals": len(history),
			"gap_days":  len(report.Days),
		}).Info("verified energy data")

		if !readOnly {
			for _, day := range report.Days {
				if _, err := e.RunUser(ctx, userID, enphase.Window{Day: day}); err != nil {
					log.WithError(err).WithField("day", day.Format("2006-01-02")).Warn("backfill failed")
					continue
				}
				report.Backfilled++
			}
		}
		reports = append(reports, report)
	}
	return reports
}

// EnergyData returns the stored intervals of userID in [start, end].
func (e *Engine) EnergyData(ctx context.Context, userID int64, start, end time.Time) ([]models.EnergyInterval, error) {
	return e.repo.QueryIntervals(ctx, userID, start, end)
}

// AppStatus is one configured app and when the user last authorized or
// refreshed it. IssueDate is nil for apps the user never authorized.
type AppStatus struct {
	Name      string     `json:"name"`
	ClientID  string     `json:"client_id"`
	IssueDate *time.Time `json:"issue_date"`
}

// AppsOverview lists every configured app with the user's grant state.
func (e *Engine) AppsOverview(ctx context.Context, userID int64) ([]AppStatus, error) {
	stored, err := e.repo.ListAppCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]models.AppCredential, len(stored))
	for _, c := range stored {
		byName[c.AppName] = c
	}

	out := make([]AppStatus, 0, len(e.catalog))
	for _, app := range e.catalog {
		status := AppStatus{Name: app.Name, ClientID: app.ClientID}
		if c, ok := byName[app.Name]; ok {
			issued := c.LastRefreshedAt
			status.IssueDate = &issued
		}
		out = append(out, status)
	}
	return out, nil
}

// AuthorizeApp completes the OAuth flow of appName for userID and stores
// the grant.
func (e *Engine) AuthorizeApp(ctx context.Context, userID int64, appName, code string) (models.AppCredential, error) {
	app, ok := e.catalog.Lookup(appName)
	if !ok {
		return models.AppCredential{}, fmt.Errorf("%w: %s", enphase.ErrUnknownApp, appName)
	}
	tokens, err := e.upstream.ExchangeCode(ctx, app, userID, code)
	if err != nil {
		return models.AppCredential{}, err
	}
	saved, err := e.repo.SaveTokens(ctx, userID, app.Name, tokens.AccessToken, tokens.RefreshToken)
	if err != nil {
		return models.AppCredential{}, err
	}
	e.logger.WithFields(logrus.Fields{"user_id": userID, "credential": app.Name}).Info("app authorized")
	return saved, nil
}
