package meross

import (
	"context"
	"encoding/json"
	"fmt"
)

// Command names a fixed (method, namespace) pair understood by appliances.
type Command string

const (
	CmdSystemAll          Command = "system.all"
	CmdSystemDebug        Command = "system.debug"
	CmdSystemAbilities    Command = "system.abilities"
	CmdSystemReport       Command = "system.report"
	CmdSystemRuntime      Command = "system.runtime"
	CmdSystemDNDMode      Command = "system.dnd.get"
	CmdSetSystemDNDMode   Command = "system.dnd.set"
	CmdOnlineStatus       Command = "system.online"
	CmdConfigWifiList     Command = "config.wifi_list"
	CmdConfigTrace        Command = "config.trace"
	CmdConsumption        Command = "control.consumption"
	CmdConsumptionX       Command = "control.consumptionx"
	CmdElectricity        Command = "control.electricity"
	CmdToggle             Command = "control.toggle"
	CmdToggleX            Command = "control.togglex"
	CmdSpray              Command = "control.spray"
	CmdRollerShutterSet   Command = "roller_shutter.position.set"
	CmdRollerShutterGet   Command = "roller_shutter.position.get"
	CmdRollerShutterState Command = "roller_shutter.state"
	CmdFilterMaintenance  Command = "control.filter_maintenance"
	CmdPhysicalLock       Command = "control.physical_lock.get"
	CmdSetPhysicalLock    Command = "control.physical_lock.set"
	CmdFan                Command = "control.fan.get"
	CmdSetFan             Command = "control.fan.set"
	CmdGarageDoor         Command = "garage_door.set"
	CmdLight              Command = "control.light"
	CmdDiffuserSpray      Command = "diffuser.spray"
	CmdDiffuserLight      Command = "diffuser.light"
	CmdThermostatMode     Command = "thermostat.mode"

	CmdHubBattery           Command = "hub.battery"
	CmdHubMts100All         Command = "hub.mts100.all"
	CmdHubToggleX           Command = "hub.togglex"
	CmdHubMts100Mode        Command = "hub.mts100.mode"
	CmdHubMts100Temperature Command = "hub.mts100.temperature"
)

type command struct {
	method    Method
	namespace string
}

var commands = map[Command]command{
	CmdSystemAll:          {MethodGet, "Appliance.System.All"},
	CmdSystemDebug:        {MethodGet, "Appliance.System.Debug"},
	CmdSystemAbilities:    {MethodGet, "Appliance.System.Ability"},
	CmdSystemReport:       {MethodGet, "Appliance.System.Report"},
	CmdSystemRuntime:      {MethodGet, "Appliance.System.Runtime"},
	CmdSystemDNDMode:      {MethodGet, "Appliance.System.DNDMode"},
	CmdSetSystemDNDMode:   {MethodSet, "Appliance.System.DNDMode"},
	CmdOnlineStatus:       {MethodGet, "Appliance.System.Online"},
	CmdConfigWifiList:     {MethodGet, "Appliance.Config.WifiList"},
	CmdConfigTrace:        {MethodGet, "Appliance.Config.Trace"},
	CmdConsumption:        {MethodGet, "Appliance.Control.Consumption"},
	CmdConsumptionX:       {MethodGet, "Appliance.Control.ConsumptionX"},
	CmdElectricity:        {MethodGet, "Appliance.Control.Electricity"},
	CmdToggle:             {MethodSet, "Appliance.Control.Toggle"},
	CmdToggleX:            {MethodSet, "Appliance.Control.ToggleX"},
	CmdSpray:              {MethodSet, "Appliance.Control.Spray"},
	CmdRollerShutterSet:   {MethodSet, "Appliance.RollerShutter.Position"},
	CmdRollerShutterGet:   {MethodGet, "Appliance.RollerShutter.Position"},
	CmdRollerShutterState: {MethodGet, "Appliance.RollerShutter.State"},
	CmdFilterMaintenance:  {MethodGet, "Appliance.Control.FilterMaintenance"},
	CmdPhysicalLock:       {MethodGet, "Appliance.Control.PhysicalLock"},
	CmdSetPhysicalLock:    {MethodSet, "Appliance.Control.PhysicalLock"},
	CmdFan:                {MethodGet, "Appliance.Control.Fan"},
	CmdSetFan:             {MethodSet, "Appliance.Control.Fan"},
	CmdGarageDoor:         {MethodSet, "Appliance.GarageDoor.State"},
	CmdLight:              {MethodSet, "Appliance.Control.Light"},
	CmdDiffuserSpray:      {MethodSet, "Appliance.Control.Diffuser.Spray"},
	CmdDiffuserLight:      {MethodSet, "Appliance.Control.Diffuser.Light"},
	CmdThermostatMode:     {MethodSet, "Appliance.Control.Thermostat.Mode"},

	CmdHubBattery:           {MethodGet, "Appliance.Hub.Battery"},
	CmdHubMts100All:         {MethodGet, "Appliance.Hub.Mts100.All"},
	CmdHubToggleX:           {MethodSet, "Appliance.Hub.ToggleX"},
	CmdHubMts100Mode:        {MethodSet, "Appliance.Hub.Mts100.Mode"},
	CmdHubMts100Temperature: {MethodSet, "Appliance.Hub.Mts100.Temperature"},
}

// LookupCommand returns the method and namespace for name.
func LookupCommand(name Command) (Method, string, bool) {
	c, ok := commands[name]
	return c.method, c.namespace, ok
}

// Invoke publishes the named command with payload.
func (d *Device) Invoke(ctx context.Context, name Command, payload any) (json.RawMessage, error) {
	c, ok := commands[name]
	if !ok {
		return nil, fmt.Errorf("unknown command %q", name)
	}
	return d.Publish(ctx, c.method, c.namespace, payload)
}

// LightData configures a light channel. Optional fields are omitted when nil.
type LightData struct {
	UUID        string `json:"uuid,omitempty"`
	Channel     int    `json:"channel"`
	Capacity    int    `json:"capacity"`
	Gradual     int    `json:"gradual"`
	RGB         *int   `json:"rgb,omitempty"`
	Temperature *int   `json:"temperature,omitempty"`
	Luminance   *int   `json:"luminance,omitempty"`
}

// ThermostatMode configures a thermostat channel.
type ThermostatMode struct {
	Channel    int  `json:"channel"`
	HeatTemp   *int `json:"heatTemp,omitempty"`
	CoolTemp   *int `json:"coolTemp,omitempty"`
	ManualTemp *int `json:"manualTemp,omitempty"`
	EcoTemp    *int `json:"ecoTemp,omitempty"`
	TargetTemp *int `json:"targetTemp,omitempty"`
	Mode       *int `json:"mode,omitempty"`
	OnOff      *int `json:"onoff,omitempty"`
}

func onOff(on bool) int {
	if on {
		return 1
	}
	return 0
}

type obj = map[string]any

func (d *Device) SystemAll(ctx context.Context) (json.RawMessage, error) {
	return d.Invoke(ctx, CmdSystemAll, nil)
}

func (d *Device) SystemDebug(ctx context.Context) (json.RawMessage, error) {
	return d.Invoke(ctx, CmdSystemDebug, nil)
}

func (d *Device) SystemAbilities(ctx context.Context) (json.RawMessage, error) {
	return d.Invoke(ctx, CmdSystemAbilities, nil)
}

func (d *Device) SystemReport(ctx context.Context) (json.RawMessage, error) {
	return d.Invoke(ctx, CmdSystemReport, nil)
}

// SystemRuntime reports wifi signal strength.
func (d *Device) SystemRuntime(ctx context.Context) (json.RawMessage, error) {
	return d.Invoke(ctx, CmdSystemRuntime, nil)
}

// SystemDNDMode reads the LED do-not-disturb mode.
func (d *Device) SystemDNDMode(ctx context.Context) (json.RawMessage, error) {
	return d.Invoke(ctx, CmdSystemDNDMode, nil)
}

func (d *Device) SetSystemDNDMode(ctx context.Context, on bool) (json.RawMessage, error) {
	return d.Invoke(ctx, CmdSetSystemDNDMode, obj{"DNDMode": obj{"mode": onOff(on)}})
}

func (d *Device) OnlineStatus(ctx context.Context) (json.RawMessage, error) {
	return d.Invoke(ctx, CmdOnlineStatus, nil)
}

func (d *Device) ConfigWifiList(ctx context.Context) (json.RawMessage, error) {
	return d.Invoke(ctx, CmdConfigWifiList, nil)
}

func (d *Device) ConfigTrace(ctx context.Context) (json.RawMessage, error) {
	return d.Invoke(ctx, CmdConfigTrace, nil)
}

func (d *Device) Consumption(ctx context.Context) (json.RawMessage, error) {
	return d.Invoke(ctx, CmdConsumption, nil)
}

// ConsumptionX returns daily watt-hour totals.
func (d *Device) ConsumptionX(ctx context.Context) (json.RawMessage, error) {
	return d.Invoke(ctx, CmdConsumptionX, nil)
}

// Electricity returns the live current, voltage and power readings.
func (d *Device) Electricity(ctx context.Context) (json.RawMessage, error) {
	return d.Invoke(ctx, CmdElectricity, nil)
}

func (d *Device) Toggle(ctx context.Context, on bool) (json.RawMessage, error) {
	return d.Invoke(ctx, CmdToggle, obj{"toggle": obj{"onoff": onOff(on)}})
}

func (d *Device) ToggleX(ctx context.Context, channel int, on bool) (json.RawMessage, error) {
	return d.Invoke(ctx, CmdToggleX, obj{"togglex": obj{"channel": channel, "onoff": onOff(on)}})
}

func (d *Device) Spray(ctx context.Context, channel, mode int) (json.RawMessage, error) {
	return d.Invoke(ctx, CmdSpray, obj{"spray": obj{"channel": channel, "mode": mode}})
}

// RollerShutterPosition moves to position (0-100). -1 stops the motor.
func (d *Device) RollerShutterPosition(ctx context.Context, channel, position int) (json.RawMessage, error) {
	return d.Invoke(ctx, CmdRollerShutterSet, obj{"position": obj{"position": position, "channel": channel}})
}

func (d *Device) RollerShutterUp(ctx context.Context, channel int) (json.RawMessage, error) {
	return d.RollerShutterPosition(ctx, channel, 100)
}

func (d *Device) RollerShutterDown(ctx context.Context, channel int) (json.RawMessage, error) {
	return d.RollerShutterPosition(ctx, channel, 0)
}

func (d *Device) RollerShutterStop(ctx context.Context, channel int) (json.RawMessage, error) {
	return d.RollerShutterPosition(ctx, channel, -1)
}

func (d *Device) RollerShutterState(ctx context.Context) (json.RawMessage, error) {
	return d.Invoke(ctx, CmdRollerShutterState, nil)
}

func (d *Device) RollerShutterCurrentPosition(ctx context.Context) (json.RawMessage, error) {
	return d.Invoke(ctx, CmdRollerShutterGet, nil)
}

func (d *Device) FilterMaintenance(ctx context.Context) (json.RawMessage, error) {
	return d.Invoke(ctx, CmdFilterMaintenance, nil)
}

func (d *Device) PhysicalLock(ctx context.Context) (json.RawMessage, error) {
	return d.Invoke(ctx, CmdPhysicalLock, nil)
}

func (d *Device) SetPhysicalLock(ctx context.Context, channel int, locked bool) (json.RawMessage, error) {
	return d.Invoke(ctx, CmdSetPhysicalLock, obj{
		"lock": obj{"channel": channel, "onoff": onOff(locked), "uuid": d.desc.UUID},
	})
}

func (d *Device) Fan(ctx context.Context) (json.RawMessage, error) {
	return d.Invoke(ctx, CmdFan, nil)
}

func (d *Device) SetFan(ctx context.Context, channel, speed, maxSpeed int) (json.RawMessage, error) {
	return d.Invoke(ctx, CmdSetFan, obj{
		"fan": []obj{{"channel": channel, "speed": speed, "maxSpeed": maxSpeed, "uuid": d.desc.UUID}},
	})
}

func (d *Device) GarageDoor(ctx context.Context, channel int, open bool) (json.RawMessage, error) {
	return d.Invoke(ctx, CmdGarageDoor, obj{
		"state": obj{"channel": channel, "open": onOff(open), "uuid": d.desc.UUID},
	})
}

func (d *Device) Light(ctx context.Context, light LightData) (json.RawMessage, error) {
	return d.Invoke(ctx, CmdLight, obj{"light": light})
}

func (d *Device) DiffuserSpray(ctx context.Context, channel, mode int) (json.RawMessage, error) {
	return d.Invoke(ctx, CmdDiffuserSpray, obj{
		"spray": []obj{{"channel": channel, "mode": mode, "uuid": d.desc.UUID}},
	})
}

func (d *Device) DiffuserLight(ctx context.Context, light LightData) (json.RawMessage, error) {
	light.UUID = d.desc.UUID
	return d.Invoke(ctx, CmdDiffuserLight, obj{"light": []LightData{light}})
}

func (d *Device) ThermostatMode(ctx context.Context, channel int, mode ThermostatMode) (json.RawMessage, error) {
	mode.Channel = channel
	return d.Invoke(ctx, CmdThermostatMode, obj{"mode": []ThermostatMode{mode}})
}
