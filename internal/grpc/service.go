package server

//go:generate mockgen -source=service.go -destination=mocks/services.go -package=mocks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/pb-coding/voltvector-be/internal/ingestion"
	"github.com/pb-coding/voltvector-be/internal/meross"
	"github.com/pb-coding/voltvector-be/internal/models"
	"github.com/pb-coding/voltvector-be/internal/smarthome"
)

const ServiceName = "voltvector.v1.HomeAutomation"

// EnergyService is the ingestion side of the API.
type EnergyService interface {
	EnergyData(ctx context.Context, userID int64, start, end time.Time) ([]models.EnergyInterval, error)
	UpdateEnergyDataJob(ctx context.Context, userIDs []int64, day time.Time) ingestion.RunReport
	VerifyConsistency(ctx context.Context, userIDs []int64, readOnly bool) []ingestion.GapReport
	AppsOverview(ctx context.Context, userID int64) ([]ingestion.AppStatus, error)
	AuthorizeApp(ctx context.Context, userID int64, appName, code string) (models.AppCredential, error)
	Location() *time.Location
}

// SmartHomeService is the appliance side of the API.
type SmartHomeService interface {
	ListDevices(ctx context.Context, userID int64) ([]models.DeviceSummary, error)
	DeviceInfo(ctx context.Context, userID int64, deviceID string) (json.RawMessage, error)
	Electricity(ctx context.Context, userID int64, deviceID string) (json.RawMessage, error)
	PowerHistory(ctx context.Context, userID int64, deviceID string) (json.RawMessage, error)
	Toggle(ctx context.Context, userID int64, deviceID string, on bool) (json.RawMessage, error)
	VerifyCredentials(ctx context.Context, userID int64, provider string, creds meross.Credentials) (bool, error)
	ProviderOverview(ctx context.Context, userID int64) ([]smarthome.ProviderStatus, error)
}

// HomeAutomationServer is the server API of voltvector.v1.HomeAutomation.
type HomeAutomationServer interface {
	GetEnergyData(context.Context, *GetEnergyDataRequest) (*GetEnergyDataResponse, error)
	RunEnergyUpdate(context.Context, *RunEnergyUpdateRequest) (*RunEnergyUpdateResponse, error)
	VerifyEnergyConsistency(context.Context, *VerifyEnergyConsistencyRequest) (*VerifyEnergyConsistencyResponse, error)
	GetEnphaseApps(context.Context, *GetEnphaseAppsRequest) (*GetEnphaseAppsResponse, error)
	AuthorizeEnphaseApp(context.Context, *AuthorizeEnphaseAppRequest) (*AuthorizeEnphaseAppResponse, error)
	ListDevices(context.Context, *ListDevicesRequest) (*ListDevicesResponse, error)
	GetDeviceInfo(context.Context, *DeviceRequest) (*DeviceDataResponse, error)
	GetDeviceElectricity(context.Context, *DeviceRequest) (*DeviceDataResponse, error)
	GetDevicePowerHistory(context.Context, *DeviceRequest) (*DeviceDataResponse, error)
	ToggleDevice(context.Context, *ToggleDeviceRequest) (*DeviceDataResponse, error)
	VerifySmartHomeCredentials(context.Context, *VerifySmartHomeCredentialsRequest) (*VerifySmartHomeCredentialsResponse, error)
	GetProviderOverview(context.Context, *GetProviderOverviewRequest) (*GetProviderOverviewResponse, error)
}

// HomeAutomationService encapsulates the request handling
type HomeAutomationService struct {
	energy    EnergyService
	smarthome SmartHomeService
	validator *RequestValidator
	logger    *logrus.Logger
}

var _ HomeAutomationServer = (*HomeAutomationService)(nil)

func NewHomeAutomationService(energy EnergyService, sh SmartHomeService, logger *logrus.Logger) *HomeAutomationService {
	return &HomeAutomationService{
		energy:    energy,
		smarthome: sh,
		validator: NewRequestValidator(),
		logger:    logger,
	}
}

func (s *HomeAutomationService) GetEnergyData(ctx context.Context, req *GetEnergyDataRequest) (*GetEnergyDataResponse, error) {
	if err := s.validator.UserID(req.UserID); err != nil {
		return nil, toStatus(err)
	}
	if err := s.validator.Range(req.Start, req.End); err != nil {
		return nil, toStatus(err)
	}

	intervals, err := s.energy.EnergyData(ctx, req.UserID, req.Start, req.End)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetEnergyDataResponse{Intervals: intervals}, nil
}

func (s *HomeAutomationService) RunEnergyUpdate(ctx context.Context, req *RunEnergyUpdateRequest) (*RunEnergyUpdateResponse, error) {
	if err := s.validator.UserIDs(req.UserIDs); err != nil {
		return nil, toStatus(err)
	}
	day, err := s.validator.Day(req.Day, s.energy.Location())
	if err != nil {
		return nil, toStatus(err)
	}

	report := s.energy.UpdateEnergyDataJob(ctx, req.UserIDs, day)
	return &RunEnergyUpdateResponse{Report: report}, nil
}

func (s *HomeAutomationService) VerifyEnergyConsistency(ctx context.Context, req *VerifyEnergyConsistencyRequest) (*VerifyEnergyConsistencyResponse, error) {
	if err := s.validator.UserIDs(req.UserIDs); err != nil {
		return nil, toStatus(err)
	}
	return &VerifyEnergyConsistencyResponse{
		Reports: s.energy.VerifyConsistency(ctx, req.UserIDs, req.ReadOnly),
	}, nil
}

func (s *HomeAutomationService) GetEnphaseApps(ctx context.Context, req *GetEnphaseAppsRequest) (*GetEnphaseAppsResponse, error) {
	if err := s.validator.UserID(req.UserID); err != nil {
		return nil, toStatus(err)
	}
	apps, err := s.energy.AppsOverview(ctx, req.UserID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetEnphaseAppsResponse{Apps: apps}, nil
}

func (s *HomeAutomationService) AuthorizeEnphaseApp(ctx context.Context, req *AuthorizeEnphaseAppRequest) (*AuthorizeEnphaseAppResponse, error) {
	if err := s.validator.UserID(req.UserID); err != nil {
		return nil, toStatus(err)
	}
	if err := s.validator.Required("app_name", req.AppName, "code", req.Code); err != nil {
		return nil, toStatus(err)
	}

	cred, err := s.energy.AuthorizeApp(ctx, req.UserID, req.AppName, req.Code)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"user_id": req.UserID,
			"app":     req.AppName,
		}).Warn("app authorization failed")
		return nil, toStatus(err)
	}
	return &AuthorizeEnphaseAppResponse{AppName: cred.AppName, AuthorizedAt: cred.LastRefreshedAt}, nil
}

func (s *HomeAutomationService) ListDevices(ctx context.Context, req *ListDevicesRequest) (*ListDevicesResponse, error) {
	if err := s.validator.UserID(req.UserID); err != nil {
		return nil, toStatus(err)
	}
	devices, err := s.smarthome.ListDevices(ctx, req.UserID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ListDevicesResponse{Devices: devices}, nil
}

func (s *HomeAutomationService) deviceCall(ctx context.Context, userID int64, deviceID string, call func(context.Context, int64, string) (json.RawMessage, error)) (*DeviceDataResponse, error) {
	if err := s.validator.UserID(userID); err != nil {
		return nil, toStatus(err)
	}
	if err := s.validator.Required("device_id", deviceID); err != nil {
		return nil, toStatus(err)
	}
	data, err := call(ctx, userID, deviceID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &DeviceDataResponse{Data: data}, nil
}

func (s *HomeAutomationService) GetDeviceInfo(ctx context.Context, req *DeviceRequest) (*DeviceDataResponse, error) {
	return s.deviceCall(ctx, req.UserID, req.DeviceID, s.smarthome.DeviceInfo)
}

func (s *HomeAutomationService) GetDeviceElectricity(ctx context.Context, req *DeviceRequest) (*DeviceDataResponse, error) {
	return s.deviceCall(ctx, req.UserID, req.DeviceID, s.smarthome.Electricity)
}

func (s *HomeAutomationService) GetDevicePowerHistory(ctx context.Context, req *DeviceRequest) (*DeviceDataResponse, error) {
	return s.deviceCall(ctx, req.UserID, req.DeviceID, s.smarthome.PowerHistory)
}

func (s *HomeAutomationService) ToggleDevice(ctx context.Context, req *ToggleDeviceRequest) (*DeviceDataResponse, error) {
	return s.deviceCall(ctx, req.UserID, req.DeviceID, func(ctx context.Context, userID int64, deviceID string) (json.RawMessage, error) {
		return s.smarthome.Toggle(ctx, userID, deviceID, req.On)
	})
}

func (s *HomeAutomationService) VerifySmartHomeCredentials(ctx context.Context, req *VerifySmartHomeCredentialsRequest) (*VerifySmartHomeCredentialsResponse, error) {
	if err := s.validator.UserID(req.UserID); err != nil {
		return nil, toStatus(err)
	}
	if err := s.validator.Required("provider", req.Provider); err != nil {
		return nil, toStatus(err)
	}

	valid, err := s.smarthome.VerifyCredentials(ctx, req.UserID, req.Provider, meross.Credentials{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &VerifySmartHomeCredentialsResponse{Valid: valid}, nil
}

func (s *HomeAutomationService) GetProviderOverview(ctx context.Context, req *GetProviderOverviewRequest) (*GetProviderOverviewResponse, error) {
	if err := s.validator.UserID(req.UserID); err != nil {
		return nil, toStatus(err)
	}
	providers, err := s.smarthome.ProviderOverview(ctx, req.UserID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetProviderOverviewResponse{Providers: providers}, nil
}

// unaryMethod builds the method descriptor of one unary call.
func unaryMethod[Req, Resp any](name string, call func(HomeAutomationServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			impl := srv.(HomeAutomationServer)
			if interceptor == nil {
				return call(impl, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(impl, ctx, req.(*Req))
			})
		},
	}
}

// HomeAutomationServiceDesc describes voltvector.v1.HomeAutomation for
// grpc.Server.RegisterService.
var HomeAutomationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HomeAutomationServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("GetEnergyData", HomeAutomationServer.GetEnergyData),
		unaryMethod("RunEnergyUpdate", HomeAutomationServer.RunEnergyUpdate),
		unaryMethod("VerifyEnergyConsistency", HomeAutomationServer.VerifyEnergyConsistency),
		unaryMethod("GetEnphaseApps", HomeAutomationServer.GetEnphaseApps),
		unaryMethod("AuthorizeEnphaseApp", HomeAutomationServer.AuthorizeEnphaseApp),
		unaryMethod("ListDevices", HomeAutomationServer.ListDevices),
		unaryMethod("GetDeviceInfo", HomeAutomationServer.GetDeviceInfo),
		unaryMethod("GetDeviceElectricity", HomeAutomationServer.GetDeviceElectricity),
		unaryMethod("GetDevicePowerHistory", HomeAutomationServer.GetDevicePowerHistory),
		unaryMethod("ToggleDevice", HomeAutomationServer.ToggleDevice),
		unaryMethod("VerifySmartHomeCredentials", HomeAutomationServer.VerifySmartHomeCredentials),
		unaryMethod("GetProviderOverview", HomeAutomationServer.GetProviderOverview),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "voltvector/v1/home_automation",
}

func RegisterHomeAutomationServer(s grpc.ServiceRegistrar, srv HomeAutomationServer) {
	s.RegisterService(&HomeAutomationServiceDesc, srv)
}

// HomeAutomationClient calls voltvector.v1.HomeAutomation over the JSON codec.
type HomeAutomationClient struct {
	cc grpc.ClientConnInterface
}

func NewHomeAutomationClient(cc grpc.ClientConnInterface) *HomeAutomationClient {
	return &HomeAutomationClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, c *HomeAutomationClient, method string, in interface{}, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HomeAutomationClient) GetEnergyData(ctx context.Context, in *GetEnergyDataRequest, opts ...grpc.CallOption) (*GetEnergyDataResponse, error) {
	return invoke[GetEnergyDataResponse](ctx, c, "GetEnergyData", in, opts)
}

func (c *HomeAutomationClient) RunEnergyUpdate(ctx context.Context, in *RunEnergyUpdateRequest, opts ...grpc.CallOption) (*RunEnergyUpdateResponse, error) {
	return invoke[RunEnergyUpdateResponse](ctx, c, "RunEnergyUpdate", in, opts)
}

func (c *HomeAutomationClient) VerifyEnergyConsistency(ctx context.Context, in *VerifyEnergyConsistencyRequest, opts ...grpc.CallOption) (*VerifyEnergyConsistencyResponse, error) {
	return invoke[VerifyEnergyConsistencyResponse](ctx, c, "VerifyEnergyConsistency", in, opts)
}

func (c *HomeAutomationClient) GetEnphaseApps(ctx context.Context, in *GetEnphaseAppsRequest, opts ...grpc.CallOption) (*GetEnphaseAppsResponse, error) {
	return invoke[GetEnphaseAppsResponse](ctx, c, "GetEnphaseApps", in, opts)
}

func (c *HomeAutomationClient) AuthorizeEnphaseApp(ctx context.Context, in *AuthorizeEnphaseAppRequest, opts ...grpc.CallOption) (*AuthorizeEnphaseAppResponse, error) {
	return invoke[AuthorizeEnphaseAppResponse](ctx, c, "AuthorizeEnphaseApp", in, opts)
}

func (c *HomeAutomationClient) ListDevices(ctx context.Context, in *ListDevicesRequest, opts ...grpc.CallOption) (*ListDevicesResponse, error) {
	return invoke[ListDevicesResponse](ctx, c, "ListDevices", in, opts)
}

func (c *HomeAutomationClient) GetDeviceInfo(ctx context.Context, in *DeviceRequest, opts ...grpc.CallOption) (*DeviceDataResponse, error) {
	return invoke[DeviceDataResponse](ctx, c, "GetDeviceInfo", in, opts)
}

func (c *HomeAutomationClient) GetDeviceElectricity(ctx context.Context, in *DeviceRequest, opts ...grpc.CallOption) (*DeviceDataResponse, error) {
	return invoke[DeviceDataResponse](ctx, c, "GetDeviceElectricity", in, opts)
}

func (c *HomeAutomationClient) GetDevicePowerHistory(ctx context.Context, in *DeviceRequest, opts ...grpc.CallOption) (*DeviceDataResponse, error) {
	return invoke[DeviceDataResponse](ctx, c, "GetDevicePowerHistory", in, opts)
}

func (c *HomeAutomationClient) ToggleDevice(ctx context.Context, in *ToggleDeviceRequest, opts ...grpc.CallOption) (*DeviceDataResponse, error) {
	return invoke[DeviceDataResponse](ctx, c, "ToggleDevice", in, opts)
}

func (c *HomeAutomationClient) VerifySmartHomeCredentials(ctx context.Context, in *VerifySmartHomeCredentialsRequest, opts ...grpc.CallOption) (*VerifySmartHomeCredentialsResponse, error) {
	return invoke[VerifySmartHomeCredentialsResponse](ctx, c, "VerifySmartHomeCredentials", in, opts)
}

func (c *HomeAutomationClient) GetProviderOverview(ctx context.Context, in *GetProviderOverviewRequest, opts ...grpc.CallOption) (*GetProviderOverviewResponse, error) {
	return invoke[GetProviderOverviewResponse](ctx, c, "GetProviderOverview", in, opts)
}
