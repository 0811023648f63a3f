package server

import (
	"context"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// HealthChecker implements the gRPC health checking protocol. The empty
// service name reports the overall server state.
type HealthChecker struct {
	grpc_health_v1.UnimplementedHealthServer
	mu       sync.RWMutex
	status   map[string]grpc_health_v1.HealthCheckResponse_ServingStatus
	watchers map[string]map[chan grpc_health_v1.HealthCheckResponse_ServingStatus]struct{}
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		status:   make(map[string]grpc_health_v1.HealthCheckResponse_ServingStatus),
		watchers: make(map[string]map[chan grpc_health_v1.HealthCheckResponse_ServingStatus]struct{}),
	}
}

func (h *HealthChecker) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if status, ok := h.status[req.Service]; ok {
		return &grpc_health_v1.HealthCheckResponse{
			Status: status,
		}, nil
	}

	return nil, status.Error(codes.NotFound, "unknown service")
}

// Watch streams the status of a service, starting with the current one.
// Unknown services report SERVICE_UNKNOWN until they are registered.
func (h *HealthChecker) Watch(req *grpc_health_v1.HealthCheckRequest, stream grpc_health_v1.Health_WatchServer) error {
	updates := make(chan grpc_health_v1.HealthCheckResponse_ServingStatus, 1)

	h.mu.Lock()
	current, ok := h.status[req.Service]
	if !ok {
		current = grpc_health_v1.HealthCheckResponse_SERVICE_UNKNOWN
	}
	if h.watchers[req.Service] == nil {
		h.watchers[req.Service] = make(map[chan grpc_health_v1.HealthCheckResponse_ServingStatus]struct{})
	}
	h.watchers[req.Service][updates] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.watchers[req.Service], updates)
		h.mu.Unlock()
	}()

	last := current
	if err := stream.Send(&grpc_health_v1.HealthCheckResponse{Status: current}); err != nil {
		return err
	}
	for {
		select {
		case s := <-updates:
			if s == last {
				continue
			}
			last = s
			if err := stream.Send(&grpc_health_v1.HealthCheckResponse{Status: s}); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return status.Error(codes.Canceled, "stream has ended")
		}
	}
}

// SetServingStatus sets the serving status of a service
func (h *HealthChecker) SetServingStatus(service string, status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status[service] = status

	for w := range h.watchers[service] {
		// keep only the newest status for slow watchers
		select {
		case <-w:
		default:
		}
		w <- status
	}
}

// Shutdown marks every service NOT_SERVING.
func (h *HealthChecker) Shutdown() {
	h.mu.RLock()
	services := make([]string, 0, len(h.status))
	for s := range h.status {
		services = append(services, s)
	}
	h.mu.RUnlock()

	for _, s := range services {
		h.SetServingStatus(s, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	}
}
