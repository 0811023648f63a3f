package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/pb-coding/voltvector-be/internal/config"
	"github.com/pb-coding/voltvector-be/internal/database"
	"github.com/pb-coding/voltvector-be/internal/enphase"
	server "github.com/pb-coding/voltvector-be/internal/grpc"
	"github.com/pb-coding/voltvector-be/internal/ingestion"
	"github.com/pb-coding/voltvector-be/internal/meross"
	"github.com/pb-coding/voltvector-be/internal/scheduler"
	"github.com/pb-coding/voltvector-be/internal/session"
	"github.com/pb-coding/voltvector-be/internal/smarthome"
)

// Command voltvector serves the home automation backend over gRPC.
//
// The service supports:
//   - Smart plug control through the appliance cloud (MQTT, local HTTP)
//   - Solar production and consumption ingestion every 15 minutes
//   - Nightly gap detection and backfill
//   - Postgres or in-memory storage
//   - Prometheus metrics
//
// Usage:
//
//	voltvector [flags]
//
// The flags are:
//
//	-config string
//	      path to config file (default "config.yaml")
//	-metrics-addr string
//	      address of the Prometheus endpoint (default ":9090")
func main() {
	// Parse command line flags
	flags := parseFlags()

	// Load configuration
	appConfig, err := config.Load(flags.ConfigPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logger
	logger := newLogger(appConfig.Logging)

	// Create a context that will be canceled on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	repo, err := createRepository(ctx, appConfig.Database)
	if err != nil {
		logger.Fatalf("Failed to create repository: %v", err)
	}

	location, err := appConfig.Enphase.LoadLocation()
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	// Run lock, shared through redis when several instances run
	var locker ingestion.Locker = ingestion.NewMemoryLocker()
	var redisClient *redis.Client
	if appConfig.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     appConfig.Redis.Addr,
			Password: appConfig.Redis.Password,
			DB:       appConfig.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatalf("Failed to reach redis: %v", err)
		}
		locker = ingestion.NewRedisLocker(redisClient, appConfig.Redis.LockTTL)
	}

	ingestionMetrics, err := ingestion.NewMetrics(reg)
	if err != nil {
		logger.Fatalf("Failed to register metrics: %v", err)
	}

	// Initialize components
	upstream := enphase.NewClient(enphase.Config{
		BaseURL:           appConfig.Enphase.BaseURL,
		TokenURL:          appConfig.Enphase.TokenURL,
		RedirectURL:       appConfig.Enphase.RedirectURL,
		RequestsPerMinute: appConfig.Enphase.RequestsPerMinute,
		HTTPClient:        &http.Client{Timeout: 30 * time.Second},
	})
	engine := ingestion.NewEngine(repo, upstream, appConfig.Enphase.Apps, ingestion.Options{
		Users:    appConfig.Enphase.Users,
		Locker:   locker,
		Location: location,
		Metrics:  ingestionMetrics,
	}, logger)

	sessions, err := session.NewManager(sessionFactory(appConfig.Meross, meross.NewMetrics(reg), logger),
		session.Config{TTL: appConfig.Meross.SessionTTL, MaxSessions: appConfig.Meross.MaxSessions}, logger, reg)
	if err != nil {
		logger.Fatalf("Failed to create session cache: %v", err)
	}
	smartHome := smarthome.NewService(sessions, smarthome.NewMemoryCredentials(appConfig.Meross.Credentials()), smarthome.Options{}, logger)

	jobs := scheduler.NewScheduler(ctx, engine, scheduler.Config{
		UpdateSpec: appConfig.Scheduler.UpdateSpec,
		VerifySpec: appConfig.Scheduler.VerifySpec,
		Location:   location,
	}, logger)

	// Create and setup gRPC server
	srv, err := server.SetupServer(engine, smartHome, server.ServerConfig{
		CacheSize:      appConfig.Server.CacheSize,
		RateLimit:      appConfig.Server.RateLimit,
		RateLimitBurst: appConfig.Server.RateLimitBurst,
	}, logger, reg)
	if err != nil {
		logger.Fatalf("Failed to setup server: %v", err)
	}

	// Start listening
	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", appConfig.Server.Host, appConfig.Server.Port))
	if err != nil {
		logger.Fatalf("Failed to listen: %v", err)
	}

	// Start background services
	errChan := make(chan error, 2)

	if err := jobs.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}

	metricsServer := &http.Server{
		Addr:              flags.MetricsAddr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	logger.WithFields(logrus.Fields{
		"port":    appConfig.Server.Port,
		"storage": appConfig.Database.Driver,
		"users":   len(appConfig.Enphase.Users),
	}).Info("Starting gRPC server")

	go func() {
		if err := srv.Serve(lis); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()
	srv.MarkServing()

	// Handle shutdown gracefully
	select {
	case err := <-errChan:
		logger.WithError(err).Error("Service error")
	case <-waitForSignal(logger):
	}

	cancel()
	shutdown(logger, srv, jobs, sessions, metricsServer, repo, redisClient)
}

type Flags struct {
	ConfigPath  string
	MetricsAddr string
}

func parseFlags() *Flags {
	f := &Flags{}

	flag.StringVar(&f.ConfigPath, "config", "config.yaml", "Path to the configuration file")
	flag.StringVar(&f.MetricsAddr, "metrics-addr", ":9090", "Address of the Prometheus metrics endpoint")

	flag.Parse()

	return f
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logger.WithField("level", cfg.Level).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// Create the configured repository; postgres is migrated on startup
func createRepository(ctx context.Context, cfg config.DatabaseConfig) (database.EnergyRepository, error) {
	if cfg.Driver == "memory" {
		return database.NewMemoryRepo(), nil
	}
	repo, err := database.NewPostgresRepo(cfg.ConnString(), cfg.MaxConnections)
	if err != nil {
		return nil, err
	}
	if err := repo.Migrate(ctx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return repo, nil
}

func sessionFactory(cfg config.MerossConfig, metrics *meross.Metrics, logger *logrus.Logger) session.Factory {
	return func(userID int64, creds meross.Credentials, onEvent func(meross.Event)) session.Session {
		return meross.NewCloudSession(meross.Options{
			Credentials:     creds,
			Secret:          cfg.Secret,
			BaseURL:         cfg.BaseURL,
			DefaultDomain:   cfg.DefaultDomain,
			BrokerPort:      cfg.BrokerPort,
			Timeout:         cfg.Timeout,
			LocalHTTPFirst:  cfg.LocalHTTPFirst,
			OnlyLocalForGet: cfg.OnlyLocalForGet,
			Metrics:         metrics,
			Logger:          logger.WithField("user_id", userID),
			OnEvent:         onEvent,
		})
	}
}

func waitForSignal(logger *logrus.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		sig := <-sigChan
		logger.Printf("Received signal %v, initiating shutdown", sig)
		close(done)
	}()
	return done
}

// Stop accepting requests first, then drain jobs and sessions
func shutdown(
	logger *logrus.Logger,
	srv *server.Server,
	jobs *scheduler.Scheduler,
	sessions *session.Manager,
	metricsServer *http.Server,
	repo database.EnergyRepository,
	redisClient *redis.Client,
) {
	logger.Println("Gracefully stopping server...")
	srv.Shutdown()
	logger.Println("Server stopped")

	<-jobs.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	sessions.Clear(ctx)
	_ = metricsServer.Shutdown(ctx)

	// Clean up the repository
	if err := repo.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close repository")
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
