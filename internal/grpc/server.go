package server

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"

	middleware "github.com/pb-coding/voltvector-be/internal/grpc/middlewares"
)

// ServerConfig holds configuration options for the gRPC server
type ServerConfig struct {
	CacheSize      int           // Size of the LRU cache
	CacheTTL       time.Duration // Lifetime of a cached response
	RateLimit      float64       // Requests per second
	RateLimitBurst int           // Maximum burst size for rate limiting
}

// DefaultServerConfig returns a ServerConfig with sensible defaults
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		CacheSize:      1000,
		CacheTTL:       5 * time.Minute,
		RateLimit:      10.0,
		RateLimitBurst: 20,
	}
}

// Only energy reads are cached; anything writing intervals drops the cache.
var (
	cachedMethods = []string{
		"/" + ServiceName + "/GetEnergyData",
	}
	invalidatingMethods = []string{
		"/" + ServiceName + "/RunEnergyUpdate",
		"/" + ServiceName + "/VerifyEnergyConsistency",
	}
)

// Server bundles the gRPC server with its health service.
type Server struct {
	*grpc.Server
	Health *HealthChecker
	Cache  *middleware.Cache
}

// SetupServer initializes and configures the gRPC server with all middleware
func SetupServer(energy EnergyService, sh SmartHomeService, config ServerConfig, logger *logrus.Logger, reg prometheus.Registerer) (*Server, error) {
	defaults := DefaultServerConfig()
	if config.CacheSize <= 0 {
		config.CacheSize = defaults.CacheSize
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaults.CacheTTL
	}
	if config.RateLimit <= 0 {
		config.RateLimit = defaults.RateLimit
	}
	if config.RateLimitBurst <= 0 {
		config.RateLimitBurst = defaults.RateLimitBurst
	}

	cache, err := middleware.NewCache(config.CacheSize, config.CacheTTL, cachedMethods, invalidatingMethods)
	if err != nil {
		return nil, err
	}

	metrics, err := middleware.NewMetrics(reg)
	if err != nil {
		return nil, err
	}

	limiter := middleware.NewRateLimitingInterceptor(config.RateLimit, config.RateLimitBurst)

	// Create server with chained interceptors
	srv := grpc.NewServer(
		grpc.UnaryInterceptor(
			chainUnaryInterceptors(
				middleware.ContextMiddleware,             // Add request ID first
				limiter,                                  // Rate limit early
				middleware.NewLoggingInterceptor(logger), // Log all requests (with request ID)
				metrics.Interceptor(),                    // Collect metrics
				cache.Interceptor(),                      // Cache last to avoid caching errors
			),
		),
	)

	RegisterHomeAutomationServer(srv, NewHomeAutomationService(energy, sh, logger))

	health := NewHealthChecker()
	grpc_health_v1.RegisterHealthServer(srv, health)
	health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	health.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	return &Server{Server: srv, Health: health, Cache: cache}, nil
}

// MarkServing reports the server and the service as SERVING.
func (s *Server) MarkServing() {
	s.Health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	s.Health.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
}

// Shutdown flips the health status and stops the server gracefully.
func (s *Server) Shutdown() {
	s.Health.Shutdown()
	s.GracefulStop()
}

// chainUnaryInterceptors creates a single interceptor from multiple interceptors
func chainUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		chain := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			interceptor := interceptors[i]
			chainedInterceptor := chain
			chain = func(currentCtx context.Context, currentReq interface{}) (interface{}, error) {
				return interceptor(currentCtx, currentReq, info, chainedInterceptor)
			}
		}
		return chain(ctx, req)
	}
}
