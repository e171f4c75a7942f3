// Package config defines the configuration structures of the LoreKit
// annotation service.  No I/O or parsing logic lives here, only plain data
// types and validation.
package config

import (
	"fmt"
	"strings"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// HTTPConfig holds HTTP listener tunables.
type HTTPConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// Addr returns host:port.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// GRPCConfig holds the gRPC health listener.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// ServerConfig groups the network listeners.
type ServerConfig struct {
	HTTP HTTPConfig `mapstructure:"http"`
	GRPC GRPCConfig `mapstructure:"grpc"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level            string   `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format           string   `mapstructure:"format"` // "json" | "console"
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// RulesConfig says where rule documents come from and how parsers are cached.
type RulesConfig struct {
	Source       string        `mapstructure:"source"` // "dir" | "minio"
	Dir          string        `mapstructure:"dir"`
	EntitiesFile string        `mapstructure:"entities_file"`
	PatternsFile string        `mapstructure:"patterns_file"`
	Watch        bool          `mapstructure:"watch"`
	Debounce     time.Duration `mapstructure:"debounce"`
	SingleFlight bool          `mapstructure:"single_flight"`
	DefaultFuzzy bool          `mapstructure:"default_fuzzy"`
}

// LinkingConfig enables post-parse resolution against the entity directory.
type LinkingConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Backend    string        `mapstructure:"backend"`    // "postgres" | "neo4j"
	Strategies []string      `mapstructure:"strategies"` // "exact" | "slug" | "name"
	Timeout    time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters of the entity
// directory.  DSN, when set, wins over the discrete fields.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DSN             string        `mapstructure:"dsn"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// ConnString returns DSN or a keyword/value string built from the fields.
func (d DatabaseConfig) ConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	parts := []string{
		fmt.Sprintf("host=%s", d.Host),
		fmt.Sprintf("port=%d", d.Port),
		fmt.Sprintf("dbname=%s", d.DBName),
		fmt.Sprintf("sslmode=%s", d.SSLMode),
	}
	if d.User != "" {
		parts = append(parts, fmt.Sprintf("user=%s", d.User))
	}
	if d.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", d.Password))
	}
	return strings.Join(parts, " ")
}

// Neo4jConfig holds the graph entity directory parameters.
type Neo4jConfig struct {
	Enabled                      bool          `mapstructure:"enabled"`
	URI                          string        `mapstructure:"uri"`
	Username                     string        `mapstructure:"username"`
	Password                     string        `mapstructure:"password"`
	Database                     string        `mapstructure:"database"`
	MaxConnectionPoolSize        int           `mapstructure:"max_connection_pool_size"`
	MaxConnectionLifetime        time.Duration `mapstructure:"max_connection_lifetime"`
	ConnectionAcquisitionTimeout time.Duration `mapstructure:"connection_acquisition_timeout"`
}

// RedisConfig holds the directory-cache Redis parameters.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	TTL          time.Duration `mapstructure:"ttl"`
	NegativeTTL  time.Duration `mapstructure:"negative_ttl"`
}

// MinIOConfig holds the bucket rule source parameters.
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
}

// KafkaConfig holds the annotation event publisher and the rule-change
// consumer parameters.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RuleChanges  bool          `mapstructure:"rule_changes"`
	RulesTopic   string        `mapstructure:"rules_topic"`
	GroupID      string        `mapstructure:"group_id"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure.  Every component reads its
// settings from the relevant sub-struct.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Rules    RulesConfig    `mapstructure:"rules"`
	Linking  LinkingConfig  `mapstructure:"linking"`
	Database DatabaseConfig `mapstructure:"database"`
	Neo4j    Neo4jConfig    `mapstructure:"neo4j"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

func validPort(p int) bool { return p >= 1 && p <= 65535 }

// Validate performs semantic validation of a fully-populated Config and
// returns the first problem found.
func (c *Config) Validate() error {
	// Server
	if !validPort(c.Server.HTTP.Port) {
		return fmt.Errorf("config: server.http.port %d is out of range [1, 65535]", c.Server.HTTP.Port)
	}
	if c.Server.GRPC.Enabled {
		if !validPort(c.Server.GRPC.Port) {
			return fmt.Errorf("config: server.grpc.port %d is out of range [1, 65535]", c.Server.GRPC.Port)
		}
		if c.Server.GRPC.Port == c.Server.HTTP.Port {
			return fmt.Errorf("config: server.grpc.port %d collides with server.http.port", c.Server.GRPC.Port)
		}
	}
	if c.Server.HTTP.MaxBodyBytes < 0 {
		return fmt.Errorf("config: server.http.max_body_bytes must be ≥ 0, got %d", c.Server.HTTP.MaxBodyBytes)
	}

	// Log
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	// Rules
	switch c.Rules.Source {
	case "dir":
		if c.Rules.Dir == "" {
			return fmt.Errorf("config: rules.dir is required when rules.source is dir")
		}
	case "minio":
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" {
			return fmt.Errorf("config: minio.endpoint and minio.bucket are required when rules.source is minio")
		}
		if c.Rules.Watch {
			return fmt.Errorf("config: rules.watch is only supported for rules.source dir")
		}
	default:
		return fmt.Errorf("config: rules.source %q is invalid; expected dir|minio", c.Rules.Source)
	}

	// Linking
	if c.Linking.Enabled {
		switch c.Linking.Backend {
		case "postgres":
			if !c.Database.Enabled {
				return fmt.Errorf("config: linking.enabled requires database.enabled")
			}
		case "neo4j":
			if !c.Neo4j.Enabled {
				return fmt.Errorf("config: linking.backend neo4j requires neo4j.enabled")
			}
		default:
			return fmt.Errorf("config: linking.backend %q is invalid; expected postgres|neo4j", c.Linking.Backend)
		}
		if len(c.Linking.Strategies) == 0 {
			return fmt.Errorf("config: linking.strategies must name at least one strategy")
		}
		for _, s := range c.Linking.Strategies {
			switch s {
			case "exact", "slug", "name":
			default:
				return fmt.Errorf("config: linking.strategies entry %q is invalid; expected exact|slug|name", s)
			}
		}
	}

	// Database
	if c.Database.Enabled {
		if c.Database.DSN == "" && c.Database.Host == "" {
			return fmt.Errorf("config: database.dsn or database.host is required when database.enabled")
		}
		if c.Database.DSN == "" && !validPort(c.Database.Port) {
			return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
		}
		if c.Database.MaxConns < 1 {
			return fmt.Errorf("config: database.max_conns must be ≥ 1, got %d", c.Database.MaxConns)
		}
	}

	// Neo4j
	if c.Neo4j.Enabled && c.Neo4j.URI == "" {
		return fmt.Errorf("config: neo4j.uri is required when neo4j.enabled")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis.addr is required when redis.enabled")
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
		}
	}

	// Kafka
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("config: kafka.topic is required when kafka.enabled")
		}
		if c.Kafka.RuleChanges && (c.Kafka.RulesTopic == "" || c.Kafka.GroupID == "") {
			return fmt.Errorf("config: kafka.rules_topic and kafka.group_id are required when kafka.rule_changes")
		}
	}

	return nil
}
