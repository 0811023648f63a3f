// Package enphase talks to the Enphase cloud: interval telemetry for a
// solar system and the OAuth token endpoint.
package enphase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL  = "https://api.enphaseenergy.com/api/v4"
	DefaultTokenURL = "https://api.enphaseenergy.com/oauth/token"

	defaultTimeout = 30 * time.Second
)

var (
	// ErrUpstreamRateLimitOrTransient covers 429, 5xx and network failures.
	// Callers may retry.
	ErrUpstreamRateLimitOrTransient = errors.New("enphase: rate limited or transient failure")
	ErrUpstreamStatus               = errors.New("enphase: unexpected response")
	ErrUnknownApp                   = errors.New("enphase: unknown app")
)

// App is one registered Enphase developer application. Several apps are
// rotated to stay under the per-app rate limit.
type App struct {
	Name         string `mapstructure:"name" yaml:"name"`
	ClientID     string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret"`
	APIKey       string `mapstructure:"api_key" yaml:"api_key"`
}

// Catalog is the set of configured apps, in configuration order.
type Catalog []App

func (c Catalog) Lookup(name string) (App, bool) {
	for _, app := range c {
		if app.Name == name {
			return app, true
		}
	}
	return App{}, false
}

type Config struct {
	BaseURL     string
	TokenURL    string
	RedirectURL string
	// RequestsPerMinute paces outbound requests across all apps. Zero
	// disables pacing.
	RequestsPerMinute int
	HTTPClient        *http.Client
}

type Client struct {
	baseURL     string
	tokenURL    string
	redirectURL string
	http        *http.Client
	limiter     *rate.Limiter
}

func NewClient(cfg Config) *Client {
	c := &Client{
		baseURL:     cfg.BaseURL,
		tokenURL:    cfg.TokenURL,
		redirectURL: cfg.RedirectURL,
		http:        cfg.HTTPClient,
		limiter:     rate.NewLimiter(rate.Inf, 0),
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.tokenURL == "" {
		c.tokenURL = DefaultTokenURL
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: defaultTimeout}
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return c
}

// Window selects the time range of a telemetry request. The zero Window asks
// for the upstream default ("latest").
type Window struct {
	Day time.Time
}

func (w Window) Latest() bool { return w.Day.IsZero() }

// ProductionInterval is one bucket of the rgm_stats endpoint.
type ProductionInterval struct {
	EndAt            int64 `json:"end_at"`
	DevicesReporting int   `json:"devices_reporting"`
	WhDel            int64 `json:"wh_del"`
}

type ProductionResponse struct {
	SystemID     int64                `json:"system_id"`
	TotalDevices int                  `json:"total_devices"`
	Intervals    []ProductionInterval `json:"intervals"`
}

// ConsumptionInterval is one bucket of the consumption meter endpoint.
type ConsumptionInterval struct {
	EndAt            int64 `json:"end_at"`
	DevicesReporting int   `json:"devices_reporting"`
	Enwh             int64 `json:"enwh"`
}

type ConsumptionResponse struct {
	SystemID    int64                 `json:"system_id"`
	Granularity string                `json:"granularity"`
	StartDate   string                `json:"start_date"`
	EndDate     string                `json:"end_date"`
	Intervals   []ConsumptionInterval `json:"intervals"`
}

// FetchProduction requests produced energy per interval.
func (c *Client) FetchProduction(ctx context.Context, app App, accessToken, systemID string, w Window) (*ProductionResponse, error) {
	q := url.Values{"key": {app.APIKey}}
	if !w.Latest() {
		start := startOfDay(w.Day)
		q.Set("start_at", strconv.FormatInt(start.Unix(), 10))
		q.Set("end_at", strconv.FormatInt(start.AddDate(0, 0, 1).Unix(), 10))
	}

	var resp ProductionResponse
	if err := c.get(ctx, "/systems/"+url.PathEscape(systemID)+"/rgm_stats", q, accessToken, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchConsumption requests consumed energy per interval.
func (c *Client) FetchConsumption(ctx context.Context, app App, accessToken, systemID string, w Window) (*ConsumptionResponse, error) {
	q := url.Values{"key": {app.APIKey}}
	if !w.Latest() {
		q.Set("granularity", "day")
		q.Set("start_date", w.Day.Format("2006-01-02"))
	}

	var resp ConsumptionResponse
	if err := c.get(ctx, "/systems/"+url.PathEscape(systemID)+"/telemetry/consumption_meter", q, accessToken, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamStatus, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	return c.do(req, out)
}

// Tokens is the token endpoint response.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
}

// ExchangeCode trades an authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, app App, userID int64, code string) (*Tokens, error) {
	redirect, err := url.Parse(c.redirectURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect url: %w", err)
	}
	rq := redirect.Query()
	rq.Set("userid", strconv.FormatInt(userID, 10))
	rq.Set("appname", app.Name)
	redirect.RawQuery = rq.Encode()

	return c.token(ctx, app, url.Values{
		"grant_type":   {"authorization_code"},
		"redirect_uri": {redirect.String()},
		"code":         {code},
	})
}

// RefreshTokens trades a refresh token for a new token pair.
func (c *Client) RefreshTokens(ctx context.Context, app App, refreshToken string) (*Tokens, error) {
	return c.token(ctx, app, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
}

func (c *Client) token(ctx context.Context, app App, q url.Values) (*Tokens, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamStatus, err)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(app.ClientID + ":" + app.ClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)

	var tokens Tokens
	if err := c.do(req, &tokens); err != nil {
		return nil, err
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return nil, fmt.Errorf("%w: token response without tokens", ErrUpstreamStatus)
	}
	return &tokens, nil
}

func (c *Client) do(req *http.Request, out any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrUpstreamRateLimitOrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: got %d", ErrUpstreamRateLimitOrTransient, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: got %d", ErrUpstreamStatus, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrUpstreamStatus, err)
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
