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

// Config captures the settings required to boot the correlation service.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Classifier  ClassifierConfig  `yaml:"classifier"`
	Redis       RedisConfig       `yaml:"redis"`
	Logging     LoggingConfig     `yaml:"logging"`
	Correlation CorrelationConfig `yaml:"correlation"`
	Scoring     ScoringConfig     `yaml:"scoring"`
}

// ServerConfig controls the HTTP listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// ClassifierConfig configures access to the optional secondary severity
// classifier service. An empty BaseURL disables the collaborator entirely.
type ClassifierConfig struct {
	BaseURL  string        `yaml:"baseURL"`
	TierPath string        `yaml:"tierPath"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RedisConfig controls the Redis-backed result store and run lock.
type RedisConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	RunLockTTL   time.Duration `yaml:"runLockTTL"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CorrelationConfig carries run defaults and edge-admission thresholds.
type CorrelationConfig struct {
	DefaultWindowHours    float64       `yaml:"defaultWindowHours"`
	DefaultMinClusterSize int           `yaml:"defaultMinClusterSize"`
	TightTemporal         time.Duration `yaml:"tightTemporal"`
}

// ScoringConfig holds every tunable scoring constant. Thresholds, decay
// shape, and confidence weights are configuration, not contract values.
type ScoringConfig struct {
	TierBoundaries TierBoundaries `yaml:"tierBoundaries"`

	GeneralScale        float64        `yaml:"generalScale"`
	RecencyHorizonHours float64        `yaml:"recencyHorizonHours"`
	RecencyFloor        float64        `yaml:"recencyFloor"`
	MaterialityCutoff   float64        `yaml:"materialityCutoff"`
	VendorFlagThreshold float64        `yaml:"vendorFlagThreshold"`
	HighConfidence      float64        `yaml:"highConfidence"`
	EscalateSourceTypes int            `yaml:"escalateSourceTypes"`
	InsiderWeights      InsiderWeights `yaml:"insiderWeights"`
	VendorWeights       VendorWeights  `yaml:"vendorWeights"`
}

// TierBoundaries are the lower bounds of each tier above LOW. A score equal
// to a boundary belongs to the higher tier.
type TierBoundaries struct {
	Guarded  float64 `yaml:"guarded"`
	Elevated float64 `yaml:"elevated"`
	High     float64 `yaml:"high"`
	Critical float64 `yaml:"critical"`
}

// InsiderWeights are per-indicator maximum contributions (points out of 100).
type InsiderWeights struct {
	OffHoursAccess     float64 `yaml:"offHoursAccess"`
	DataMovement       float64 `yaml:"dataMovement"`
	AccessMismatch     float64 `yaml:"accessMismatch"`
	CommunicationShift float64 `yaml:"communicationShift"`
}

// VendorWeights are per-factor maximum contributions (points out of 100).
type VendorWeights struct {
	GeographicExposure float64 `yaml:"geographicExposure"`
	Concentration      float64 `yaml:"concentration"`
	PrivilegeScope     float64 `yaml:"privilegeScope"`
	DataSensitivity    float64 `yaml:"dataSensitivity"`
	CompliancePosture  float64 `yaml:"compliancePosture"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("OTM_CONFIG")
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
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Classifier: ClassifierConfig{
			TierPath: "/api/v1/classify/tier",
			Timeout:  5 * time.Second,
		},
		Redis: RedisConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			RunLockTTL:   2 * time.Minute,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Correlation: CorrelationConfig{
			DefaultWindowHours:    72,
			DefaultMinClusterSize: 2,
			TightTemporal:         time.Hour,
		},
		Scoring: DefaultScoring(),
	}
}

// DefaultScoring returns the stock scoring profile.
func DefaultScoring() ScoringConfig {
	return ScoringConfig{
		TierBoundaries: TierBoundaries{
			Guarded:  30,
			Elevated: 55,
			High:     70,
			Critical: 85,
		},
		GeneralScale:        20.0,
		RecencyHorizonHours: 168.0,
		RecencyFloor:        0.1,
		MaterialityCutoff:   1.0,
		VendorFlagThreshold: 45.0,
		HighConfidence:      0.8,
		EscalateSourceTypes: 3,
		InsiderWeights: InsiderWeights{
			OffHoursAccess:     20,
			DataMovement:       30,
			AccessMismatch:     25,
			CommunicationShift: 25,
		},
		VendorWeights: VendorWeights{
			GeographicExposure: 20,
			Concentration:      20,
			PrivilegeScope:     25,
			DataSensitivity:    20,
			CompliancePosture:  15,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OTM_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("OTM_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("OTM_CLASSIFIER_BASE_URL"); v != "" {
		cfg.Classifier.BaseURL = v
	}
	if v := os.Getenv("OTM_CLASSIFIER_TIER_PATH"); v != "" {
		cfg.Classifier.TierPath = v
	}
	if v := os.Getenv("OTM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("OTM_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("OTM_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("OTM_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("OTM_REDIS_USERNAME"); v != "" {
		cfg.Redis.Username = v
	}
	if v := os.Getenv("OTM_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("OTM_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
	if v := os.Getenv("OTM_REDIS_RUN_LOCK_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Redis.RunLockTTL = d
		}
	}
	if v := os.Getenv("OTM_WINDOW_HOURS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Correlation.DefaultWindowHours = f
		}
	}
	if v := os.Getenv("OTM_MIN_CLUSTER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Correlation.DefaultMinClusterSize = n
		}
	}
	if v := os.Getenv("OTM_TIGHT_TEMPORAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Correlation.TightTemporal = d
		}
	}
	if v := os.Getenv("OTM_VENDOR_FLAG_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Scoring.VendorFlagThreshold = f
		}
	}
}
