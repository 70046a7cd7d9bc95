package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the telemetry engine.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Protocols  ProtocolsConfig  `yaml:"protocols"`
	Storage    StorageConfig    `yaml:"storage"`
	Evaluators EvaluatorsConfig `yaml:"evaluators"`
	Logging    LoggingConfig    `yaml:"logging"`
	Cache      CacheConfig      `yaml:"cache"`
}

// ServerConfig controls the metrics endpoint and shutdown behaviour.
type ServerConfig struct {
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// ProtocolsConfig selects which adapters run. The adapter set is a closed set
// of variants chosen here, not by registration.
type ProtocolsConfig struct {
	HTTP  HTTPConfig  `yaml:"http"`
	GRPC  GRPCConfig  `yaml:"grpc"`
	MQTT  MQTTConfig  `yaml:"mqtt"`
	Kafka KafkaConfig `yaml:"kafka"`
}

// HTTPConfig controls the HTTP ingestion listener.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// GRPCConfig controls the gRPC ingestion listener.
type GRPCConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// MQTTConfig controls the MQTT subscriber adapter.
type MQTTConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BrokerURL string `yaml:"brokerURL"`
	ClientID  string `yaml:"clientID"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	QoS       byte   `yaml:"qos"`
}

// KafkaConfig controls the Kafka consumer/producer adapter.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"groupID"`
}

// StorageConfig selects the active storage backend.
type StorageConfig struct {
	Backend string `yaml:"backend"`
}

// EvaluatorsConfig controls sweep intervals for the periodic engines.
type EvaluatorsConfig struct {
	AlertInterval   time.Duration `yaml:"alertInterval"`
	AnomalyInterval time.Duration `yaml:"anomalyInterval"`
	ThreatInterval  time.Duration `yaml:"threatInterval"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CacheConfig controls Valkey-backed caching of window queries.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	WindowTTL    time.Duration `yaml:"windowTTL"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("ARGUS_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Protocols: ProtocolsConfig{
			HTTP:  HTTPConfig{Enabled: true, Address: ":8080"},
			GRPC:  GRPCConfig{Enabled: true, Address: ":50051"},
			MQTT:  MQTTConfig{ClientID: "argus-engine", QoS: 1},
			Kafka: KafkaConfig{GroupID: "argus-engine"},
		},
		Storage: StorageConfig{Backend: "memory"},
		Evaluators: EvaluatorsConfig{
			AlertInterval:   time.Minute,
			AnomalyInterval: time.Minute,
			ThreatInterval:  time.Minute,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			WindowTTL:    30 * time.Second,
		},
	}
}

func validate(cfg *Config) error {
	switch cfg.Storage.Backend {
	case "memory":
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if !cfg.Protocols.HTTP.Enabled && !cfg.Protocols.GRPC.Enabled &&
		!cfg.Protocols.MQTT.Enabled && !cfg.Protocols.Kafka.Enabled {
		return fmt.Errorf("no protocol adapter enabled")
	}
	if cfg.Protocols.MQTT.Enabled && cfg.Protocols.MQTT.BrokerURL == "" {
		return fmt.Errorf("mqtt enabled without brokerURL")
	}
	if cfg.Protocols.Kafka.Enabled && len(cfg.Protocols.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka enabled without brokers")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ARGUS_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("ARGUS_HTTP_ADDRESS"); v != "" {
		cfg.Protocols.HTTP.Address = v
	}
	if v := os.Getenv("ARGUS_GRPC_ADDRESS"); v != "" {
		cfg.Protocols.GRPC.Address = v
	}
	if v := os.Getenv("ARGUS_MQTT_BROKER_URL"); v != "" {
		cfg.Protocols.MQTT.BrokerURL = v
		cfg.Protocols.MQTT.Enabled = true
	}
	if v := os.Getenv("ARGUS_MQTT_CLIENT_ID"); v != "" {
		cfg.Protocols.MQTT.ClientID = v
	}
	if v := os.Getenv("ARGUS_KAFKA_BROKERS"); v != "" {
		cfg.Protocols.Kafka.Brokers = strings.Split(v, ",")
		cfg.Protocols.Kafka.Enabled = true
	}
	if v := os.Getenv("ARGUS_KAFKA_GROUP_ID"); v != "" {
		cfg.Protocols.Kafka.GroupID = v
	}
	if v := os.Getenv("ARGUS_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("ARGUS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ARGUS_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("ARGUS_ALERT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Evaluators.AlertInterval = d
		}
	}
	if v := os.Getenv("ARGUS_ANOMALY_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Evaluators.AnomalyInterval = d
		}
	}
	if v := os.Getenv("ARGUS_THREAT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Evaluators.ThreatInterval = d
		}
	}
	if v := os.Getenv("ARGUS_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("ARGUS_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("ARGUS_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("ARGUS_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("ARGUS_CACHE_WINDOW_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.WindowTTL = d
		}
	}
}
