package meross

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://iot.meross.com"

	loginPath      = "/v1/Auth/Login"
	logoutPath     = "/v1/Profile/logout"
	deviceListPath = "/v1/Device/devList"
	subDevicesPath = "/v1/Hub/getSubDevices"

	appVersion = "0.4.4.4"
)

// apiResponse is the common wrapper of every cloud API answer.
type apiResponse struct {
	APIStatus int             `json:"apiStatus"`
	Info      string          `json:"info"`
	Data      json.RawMessage `json:"data"`
}

type loginResponse struct {
	UserID json.Number `json:"userid"`
	Email  string      `json:"email"`
	Key    string      `json:"key"`
	Token  string      `json:"token"`
}

type mobileInfo struct {
	DeviceModel     string `json:"deviceModel"`
	MobileOSVersion string `json:"mobileOsVersion"`
	MobileOS        string `json:"mobileOs"`
	UUID            string `json:"uuid"`
	Carrier         string `json:"carrier"`
}

type loginParams struct {
	Email      string     `json:"email"`
	Password   string     `json:"password"`
	MobileInfo mobileInfo `json:"mobileInfo"`
}

// apiClient performs signed form posts against the cloud API.
type apiClient struct {
	baseURL string
	secret  string
	client  *http.Client
	timeout time.Duration
	entropy io.Reader
	now     func() time.Time
}

func newAPIClient(baseURL, secret string, client *http.Client, timeout time.Duration) *apiClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		client:  client,
		timeout: timeout,
		entropy: rand.Reader,
		now:     time.Now,
	}
}

// signForm builds the form body: params is base64(json), sign is
// md5(secret + timestampMillis + nonce + params).
func (a *apiClient) signForm(params any) (url.Values, error) {
	if params == nil {
		params = struct{}{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	nonce, err := randomString(a.entropy, 16)
	if err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(raw)
	ts := strconv.FormatInt(a.now().UnixMilli(), 10)

	form := url.Values{}
	form.Set("params", encoded)
	form.Set("sign", md5Hex(a.secret+ts+nonce+encoded))
	form.Set("timestamp", ts)
	form.Set("nonce", nonce)
	return form, nil
}

// post sends params to path and decodes the data member into out. A non-zero
// apiStatus is returned as *APIError.
func (a *apiClient) post(ctx context.Context, path, token string, params, out any) error {
	form, err := a.signForm(params)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+token)
	req.Header.Set("vender", "meross")
	req.Header.Set("AppVersion", appVersion)
	req.Header.Set("AppType", "MerossIOT")
	req.Header.Set("AppLanguage", "EN")
	req.Header.Set("User-Agent", "MerossIOT/"+appVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("post %s: got %d", path, resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	if body.APIStatus != 0 {
		return &APIError{Status: body.APIStatus, Info: body.Info}
	}
	if out == nil || len(body.Data) == 0 || string(body.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(body.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", path, err)
	}
	return nil
}
