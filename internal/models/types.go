package models

import "time"

// IntervalLength is the width of one energy measurement bucket.
const IntervalLength = 15 * time.Minute

// EnergyInterval is one 15 minute bucket of produced and consumed energy
// for a user. (UserID, EndDate) is unique.
type EnergyInterval struct {
	ID           int64     `json:"id,omitempty"`
	UserID       int64     `json:"user_id,omitempty"`
	CredentialID int64     `json:"credential_id,omitempty"`
	SystemID     string    `json:"system_id"`
	EndDate      time.Time `json:"end_date"`
	Production   int64     `json:"production"`
	Consumption  int64     `json:"consumption"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// AppCredential is a user's OAuth grant for one of the configured upstream
// energy apps. Client id, secret and API key live in configuration and are
// looked up by AppName.
type AppCredential struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	AppName         string    `json:"app_name"`
	AccessToken     string    `json:"-"`
	RefreshToken    string    `json:"-"`
	AuthorizedAt    time.Time `json:"authorized_at"`
	LastRefreshedAt time.Time `json:"last_refreshed_at"`
}

// APIRequest records one upstream call made with a credential. Credential
// rotation reads this log.
type APIRequest struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	CredentialID int64     `json:"credential_id"`
	Endpoint     string    `json:"endpoint"`
	CreatedAt    time.Time `json:"created_at"`
}

// DeviceSummary is the provider neutral view of a smart home device.
type DeviceSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	OnlineStatus int    `json:"online_status"`
	Provider     string `json:"provider"`
}
