package meross

import (
	"context"
	"encoding/json"
)

// SubDevice is a child of a hub, e.g. a radiator valve.
type SubDevice struct {
	ID     string `json:"subDeviceId"`
	Type   string `json:"subDeviceType"`
	Vendor string `json:"subDeviceVendor"`
	Name   string `json:"subDeviceName"`
	IconID string `json:"subDeviceIconId"`
}

// Mts100Temperature sets the setpoints of a valve. Values are in tenths of a
// degree.
type Mts100Temperature struct {
	ID      string `json:"id"`
	Custom  *int   `json:"custom,omitempty"`
	Comfort *int   `json:"comfort,omitempty"`
	Economy *int   `json:"economy,omitempty"`
	Away    *int   `json:"away,omitempty"`
}

// HubDevice adds hub scoped operations on top of a Device. Correlation,
// timeouts and transports all belong to the wrapped Device.
type HubDevice struct {
	*Device
	subDevices []SubDevice
}

func newHubDevice(base *Device, subDevices []SubDevice) *HubDevice {
	return &HubDevice{Device: base, subDevices: subDevices}
}

func (h *HubDevice) SubDevices() []SubDevice {
	return append([]SubDevice(nil), h.subDevices...)
}

func (h *HubDevice) Battery(ctx context.Context) (json.RawMessage, error) {
	return h.Invoke(ctx, CmdHubBattery, obj{"battery": []obj{}})
}

// Mts100All queries every listed valve in one request.
func (h *HubDevice) Mts100All(ctx context.Context, ids []string) (json.RawMessage, error) {
	all := make([]obj, 0, len(ids))
	for _, id := range ids {
		all = append(all, obj{"id": id})
	}
	return h.Invoke(ctx, CmdHubMts100All, obj{"all": all})
}

func (h *HubDevice) ToggleSubDevice(ctx context.Context, subID string, on bool) (json.RawMessage, error) {
	return h.Invoke(ctx, CmdHubToggleX, obj{"togglex": []obj{{"id": subID, "onoff": onOff(on)}}})
}

func (h *HubDevice) Mts100Mode(ctx context.Context, subID string, mode int) (json.RawMessage, error) {
	return h.Invoke(ctx, CmdHubMts100Mode, obj{"mode": []obj{{"id": subID, "state": mode}}})
}

func (h *HubDevice) Mts100Temperature(ctx context.Context, subID string, temp Mts100Temperature) (json.RawMessage, error) {
	temp.ID = subID
	return h.Invoke(ctx, CmdHubMts100Temperature, obj{"temperature": []Mts100Temperature{temp}})
}
