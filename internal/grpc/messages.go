package server

import (
	"encoding/json"
	"time"

	"github.com/pb-coding/voltvector-be/internal/ingestion"
	"github.com/pb-coding/voltvector-be/internal/models"
	"github.com/pb-coding/voltvector-be/internal/smarthome"
)

// Request and response messages of voltvector.v1.HomeAutomation.

type GetEnergyDataRequest struct {
	UserID int64     `json:"user_id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

type GetEnergyDataResponse struct {
	Intervals []models.EnergyInterval `json:"intervals"`
}

type RunEnergyUpdateRequest struct {
	// UserIDs defaults to every configured user.
	UserIDs []int64 `json:"user_ids,omitempty"`
	// Day is a YYYY-MM-DD date. Empty fetches the latest window.
	Day string `json:"day,omitempty"`
}

type RunEnergyUpdateResponse struct {
	Report ingestion.RunReport `json:"report"`
}

type VerifyEnergyConsistencyRequest struct {
	UserIDs  []int64 `json:"user_ids,omitempty"`
	ReadOnly bool    `json:"read_only"`
}

type VerifyEnergyConsistencyResponse struct {
	Reports []ingestion.GapReport `json:"reports"`
}

type GetEnphaseAppsRequest struct {
	UserID int64 `json:"user_id"`
}

type GetEnphaseAppsResponse struct {
	Apps []ingestion.AppStatus `json:"apps"`
}

type AuthorizeEnphaseAppRequest struct {
	UserID  int64  `json:"user_id"`
	AppName string `json:"app_name"`
	Code    string `json:"code"`
}

type AuthorizeEnphaseAppResponse struct {
	AppName      string    `json:"app_name"`
	AuthorizedAt time.Time `json:"authorized_at"`
}

type ListDevicesRequest struct {
	UserID int64 `json:"user_id"`
}

type ListDevicesResponse struct {
	Devices []models.DeviceSummary `json:"devices"`
}

// DeviceRequest addresses one device of a user.
type DeviceRequest struct {
	UserID   int64  `json:"user_id"`
	DeviceID string `json:"device_id"`
}

type ToggleDeviceRequest struct {
	UserID   int64  `json:"user_id"`
	DeviceID string `json:"device_id"`
	On       bool   `json:"on"`
}

// DeviceDataResponse carries the raw device payload.
type DeviceDataResponse struct {
	Data json.RawMessage `json:"data"`
}

type VerifySmartHomeCredentialsRequest struct {
	UserID   int64  `json:"user_id"`
	Provider string `json:"provider"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type VerifySmartHomeCredentialsResponse struct {
	Valid bool `json:"valid"`
}

type GetProviderOverviewRequest struct {
	UserID int64 `json:"user_id"`
}

type GetProviderOverviewResponse struct {
	Providers []smarthome.ProviderStatus `json:"providers"`
}
