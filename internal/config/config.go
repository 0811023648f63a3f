package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/pb-coding/voltvector-be/internal/enphase"
	"github.com/pb-coding/voltvector-be/internal/ingestion"
	"github.com/pb-coding/voltvector-be/internal/meross"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Meross    MerossConfig    `mapstructure:"meross"`
	Enphase   EnphaseConfig   `mapstructure:"enphase"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type ServerConfig struct {
	Port           int     `mapstructure:"port"`
	Host           string  `mapstructure:"host"`
	CacheSize      int     `mapstructure:"cache_size"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory".
	Driver            string `mapstructure:"driver"`
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	Name              string `mapstructure:"name"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	SSLMode           string `mapstructure:"ssl_mode"`
	MaxConnections    int    `mapstructure:"max_connections"`
	ConnectionTimeout int    `mapstructure:"connection_timeout"`
}

// ConnString returns the lib/pq keyword/value connection string.
func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode, d.ConnectionTimeout)
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

type MerossAccount struct {
	UserID   int64  `mapstructure:"user_id"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

type MerossConfig struct {
	Secret          string          `mapstructure:"secret"`
	BaseURL         string          `mapstructure:"base_url"`
	DefaultDomain   string          `mapstructure:"default_domain"`
	BrokerPort      int             `mapstructure:"broker_port"`
	Timeout         time.Duration   `mapstructure:"timeout"`
	LocalHTTPFirst  bool            `mapstructure:"local_http_first"`
	OnlyLocalForGet bool            `mapstructure:"only_local_for_get"`
	SessionTTL      time.Duration   `mapstructure:"session_ttl"`
	MaxSessions     int             `mapstructure:"max_sessions"`
	Accounts        []MerossAccount `mapstructure:"accounts"`
}

// Credentials indexes the configured accounts by user.
func (m MerossConfig) Credentials() map[int64]meross.Credentials {
	out := make(map[int64]meross.Credentials, len(m.Accounts))
	for _, a := range m.Accounts {
		out[a.UserID] = meross.Credentials{Email: a.Email, Password: a.Password}
	}
	return out
}

type EnphaseConfig struct {
	BaseURL           string                 `mapstructure:"base_url"`
	TokenURL          string                 `mapstructure:"token_url"`
	RedirectURL       string                 `mapstructure:"redirect_url"`
	RequestsPerMinute int                    `mapstructure:"requests_per_minute"`
	Apps              enphase.Catalog        `mapstructure:"apps"`
	Users             []ingestion.UserSystem `mapstructure:"users"`
	// Location is the IANA zone used to cut days, e.g. "Europe/Berlin".
	Location string `mapstructure:"location"`
}

// LoadLocation resolves Location, defaulting to UTC.
func (e EnphaseConfig) LoadLocation() (*time.Location, error) {
	if e.Location == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(e.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid enphase.location %q: %w", e.Location, err)
	}
	return loc, nil
}

type SchedulerConfig struct {
	UpdateSpec string `mapstructure:"update_spec"`
	VerifySpec string `mapstructure:"verify_spec"`
}

// Load reads configuration from file and environment variables. $VARS in
// the file are expanded first; APP_ prefixed variables (APP_DATABASE_HOST)
// override any key afterwards.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// First unmarshal into a map to handle type conversions
	var rawConfig map[string]interface{}
	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal raw config: %w", err)
	}

	// Convert the map to YAML again
	data, err = yaml.Marshal(rawConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal raw config: %w", err)
	}

	// Expand environment variables
	expandedData := os.ExpandEnv(string(data))

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadConfig(bytes.NewBufferString(expandedData)); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Database.Driver != "postgres" && config.Database.Driver != "memory" {
		return nil, fmt.Errorf("unknown database driver %q", config.Database.Driver)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 50051)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.cache_size", 1000)
	v.SetDefault("server.rate_limit", 10)
	v.SetDefault("server.rate_limit_burst", 20)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.connection_timeout", 5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", "10m")

	v.SetDefault("meross.base_url", meross.DefaultBaseURL)
	v.SetDefault("meross.default_domain", meross.DefaultDomain)
	v.SetDefault("meross.broker_port", meross.DefaultBrokerPort)
	v.SetDefault("meross.timeout", "10s")
	v.SetDefault("meross.session_ttl", "1h")
	v.SetDefault("meross.max_sessions", 1000)

	v.SetDefault("enphase.base_url", enphase.DefaultBaseURL)
	v.SetDefault("enphase.token_url", enphase.DefaultTokenURL)
	v.SetDefault("enphase.requests_per_minute", 10)
	v.SetDefault("enphase.location", "UTC")

	v.SetDefault("scheduler.update_spec", "5-59/15 * * * *")
	v.SetDefault("scheduler.verify_spec", "30 3 * * *")
}
