package config

import (
    "fmt"
    "os"
    "sync"
    "time"

    "gopkg.in/yaml.v3"
)

var (
    instance *Config
    once     sync.Once
)

// Config represents the complete proxy server configuration
// Aggregates all component configurations for centralized management
// Loaded from a YAML file, with built-in defaults for unset fields
type Config struct {
    Server   ServerConfig   `yaml:"server" json:"server"`
    Cache    CacheConfig    `yaml:"cache" json:"cache"`
    Upstream UpstreamConfig `yaml:"upstream" json:"upstream"`
    Tracing  TracingConfig  `yaml:"tracing" json:"tracing"`
}

// ServerConfig defines the client-facing listener configuration
// Controls accept behaviour, the worker pool, and connection admission
type ServerConfig struct {
    Port              int           `yaml:"port" json:"port" default:"8080"`
    AdminPort         int           `yaml:"adminPort" json:"adminPort" default:"9090"`
    WorkerPoolSize    int           `yaml:"workerPoolSize" json:"workerPoolSize" default:"50"`
    QueueSize         int           `yaml:"queueSize" json:"queueSize" default:"2000"`
    MaxClients        int           `yaml:"maxClients" json:"maxClients" default:"1200"`
    MaxRequestBytes   int           `yaml:"maxRequestBytes" json:"maxRequestBytes" default:"8192"`
    AcceptPollTimeout time.Duration `yaml:"acceptPollTimeout" json:"acceptPollTimeout" default:"1s"`
    StatsInterval     time.Duration `yaml:"statsInterval" json:"statsInterval" default:"60s"`
}

// CacheConfig defines the in-memory LRU response cache bounds
// MaxSizeBytes and MaxElementSizeBytes mirror the reference proxy's
// MAX_SIZE and MAX_ELEMENT_SIZE constants
type CacheConfig struct {
    Enabled             bool  `yaml:"enabled" json:"enabled" default:"true"`
    MaxSizeBytes        int64 `yaml:"maxSizeBytes" json:"maxSizeBytes" default:"209715200"`
    MaxElementSizeBytes int64 `yaml:"maxElementSizeBytes" json:"maxElementSizeBytes" default:"10485760"`
}

// UpstreamConfig defines the idle-connection pool and dial limiter
// PoolCapacity mirrors the reference's fixed 100-slot connection pool
type UpstreamConfig struct {
    PoolCapacity           int           `yaml:"poolCapacity" json:"poolCapacity" default:"100"`
    IdleTimeout            time.Duration `yaml:"idleTimeout" json:"idleTimeout" default:"60s"`
    ConnectTimeout         time.Duration `yaml:"connectTimeout" json:"connectTimeout" default:"30s"`
    PerHostBurst           int           `yaml:"perHostBurst" json:"perHostBurst" default:"20"`
    PerHostRefillPerSecond int           `yaml:"perHostRefillPerSecond" json:"perHostRefillPerSecond" default:"10"`
}

// TracingConfig defines OpenTelemetry tracing configuration
// Controls distributed tracing and observability
type TracingConfig struct {
    Enabled        bool    `yaml:"enabled" json:"enabled" default:"false"`
    ServiceName    string  `yaml:"serviceName" json:"serviceName" default:"cacheproxy"`
    ServiceVersion string  `yaml:"serviceVersion" json:"serviceVersion" default:"1.0.0"`
    Environment    string  `yaml:"environment" json:"environment" default:"development"`
    JaegerEndpoint string  `yaml:"jaegerEndpoint" json:"jaegerEndpoint"`
    OTLPEndpoint   string  `yaml:"otlpEndpoint" json:"otlpEndpoint"`
    SamplingRatio  float64 `yaml:"samplingRatio" json:"samplingRatio" default:"0.1"`
}

// DefaultConfig returns configuration with sensible defaults
// Provides baseline configuration matching the reference implementation's
// compiled-in constants
func DefaultConfig() *Config {
    return &Config{
        Server: ServerConfig{
            Port:              8080,
            AdminPort:         9090,
            WorkerPoolSize:    50,
            QueueSize:         2000,
            MaxClients:        1200,
            MaxRequestBytes:   8192,
            AcceptPollTimeout: time.Second,
            StatsInterval:     60 * time.Second,
        },
        Cache: CacheConfig{
            Enabled:             true,
            MaxSizeBytes:        200 * (1 << 20),
            MaxElementSizeBytes: 10 * (1 << 20),
        },
        Upstream: UpstreamConfig{
            PoolCapacity:           100,
            IdleTimeout:            60 * time.Second,
            ConnectTimeout:         30 * time.Second,
            PerHostBurst:           20,
            PerHostRefillPerSecond: 10,
        },
        Tracing: TracingConfig{
            Enabled:        false,
            ServiceName:    "cacheproxy",
            ServiceVersion: "1.0.0",
            Environment:    "development",
            SamplingRatio:  0.1,
        },
    }
}

// GetInstance returns the singleton config instance
// Uses sync.Once to ensure thread-safe lazy initialisation
// Time Complexity: O(1) - returns cached instance after first call
// Space Complexity: O(1) - stores single configuration instance
func GetInstance() *Config {
    once.Do(func() {
        instance = DefaultConfig()
    })
    return instance
}

// LoadConfig loads configuration from a YAML file and installs it as
// the singleton. Only the first initialisation counts: once
// GetInstance or LoadConfig has set the singleton, later calls leave
// it unchanged. A missing file is not an error: defaults apply. A
// present-but-malformed file is.
// Time Complexity: O(n) where n is config file size
// Space Complexity: O(n) for parsing configuration
func LoadConfig(path string) error {
    cfg, err := loadFromFile(path)
    if err != nil {
        return err
    }

    once.Do(func() {
        instance = cfg
    })
    return nil
}

// loadFromFile reads configuration from a YAML file, merging it onto
// DefaultConfig so unset fields keep their defaults
// Time Complexity: O(n) where n is file size
// Space Complexity: O(n) for file content
func loadFromFile(path string) (*Config, error) {
    cfg := DefaultConfig()

    data, err := os.ReadFile(path)
    if err != nil {
        if os.IsNotExist(err) {
            return cfg, nil
        }
        return nil, fmt.Errorf("reading config file: %w", err)
    }

    if err := yaml.Unmarshal(data, cfg); err != nil {
        return nil, fmt.Errorf("parsing config file %s: %w", path, err)
    }

    return cfg, nil
}
