package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultHTTPHost        = "0.0.0.0"
	DefaultHTTPPort        = 8080
	DefaultGRPCPort        = 9090
	DefaultMaxBodyBytes    = 1 << 20
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 10 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultRulesSource   = "dir"
	DefaultRulesDir      = "configs/rules"
	DefaultEntitiesFile  = "entities.yaml"
	DefaultPatternsFile  = "patterns.yaml"
	DefaultWatchDebounce = 250 * time.Millisecond

	DefaultLinkTimeout = 2 * time.Second
	DefaultLinkBackend = "postgres"

	DefaultDBPort     = 5432
	DefaultDBName     = "world_builder"
	DefaultDBSSLMode  = "disable"
	DefaultDBMaxConns = 10

	DefaultNeo4jDatabase    = "neo4j"
	DefaultNeo4jPoolSize    = 50
	DefaultNeo4jLifetime    = time.Hour
	DefaultNeo4jAcquisition = 60 * time.Second

	DefaultRedisAddr        = "localhost:6379"
	DefaultRedisKeyPrefix   = "lorekit:"
	DefaultRedisTTL         = 10 * time.Minute
	DefaultRedisNegativeTTL = time.Minute

	DefaultKafkaTopic        = "lore.annotations"
	DefaultKafkaRulesTopic   = "lore.rules.changed"
	DefaultKafkaGroupID      = "lorekit"
	DefaultKafkaBatchTimeout = 100 * time.Millisecond

	DefaultMetricsNamespace = "lorekit"
	DefaultMetricsPath      = "/metrics"
)

// ApplyDefaults fills every zero-value field in cfg with its default.  Fields
// already set are left unchanged so that explicit configuration always wins.
// Booleans cannot be told apart from "unset" and are not touched.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	h := &cfg.Server.HTTP
	if h.Host == "" {
		h.Host = DefaultHTTPHost
	}
	if h.Port == 0 {
		h.Port = DefaultHTTPPort
	}
	if h.ReadTimeout == 0 {
		h.ReadTimeout = DefaultReadTimeout
	}
	if h.WriteTimeout == 0 {
		h.WriteTimeout = DefaultWriteTimeout
	}
	if h.IdleTimeout == 0 {
		h.IdleTimeout = DefaultIdleTimeout
	}
	if h.ShutdownTimeout == 0 {
		h.ShutdownTimeout = DefaultShutdownTimeout
	}
	if h.MaxBodyBytes == 0 {
		h.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Server.GRPC.Port == 0 {
		cfg.Server.GRPC.Port = DefaultGRPCPort
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if len(cfg.Log.OutputPaths) == 0 {
		cfg.Log.OutputPaths = []string{"stdout"}
	}
	if len(cfg.Log.ErrorOutputPaths) == 0 {
		cfg.Log.ErrorOutputPaths = []string{"stderr"}
	}

	// ── Rules ─────────────────────────────────────────────────────────────────
	if cfg.Rules.Source == "" {
		cfg.Rules.Source = DefaultRulesSource
	}
	if cfg.Rules.Dir == "" {
		cfg.Rules.Dir = DefaultRulesDir
	}
	if cfg.Rules.EntitiesFile == "" {
		cfg.Rules.EntitiesFile = DefaultEntitiesFile
	}
	if cfg.Rules.PatternsFile == "" {
		cfg.Rules.PatternsFile = DefaultPatternsFile
	}
	if cfg.Rules.Debounce == 0 {
		cfg.Rules.Debounce = DefaultWatchDebounce
	}

	// ── Linking ───────────────────────────────────────────────────────────────
	if len(cfg.Linking.Strategies) == 0 {
		cfg.Linking.Strategies = []string{"exact", "slug"}
	}
	if cfg.Linking.Timeout == 0 {
		cfg.Linking.Timeout = DefaultLinkTimeout
	}
	if cfg.Linking.Backend == "" {
		cfg.Linking.Backend = DefaultLinkBackend
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = DefaultDBSSLMode
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}

	// ── Neo4j ─────────────────────────────────────────────────────────────────
	n := &cfg.Neo4j
	if n.Database == "" {
		n.Database = DefaultNeo4jDatabase
	}
	if n.MaxConnectionPoolSize == 0 {
		n.MaxConnectionPoolSize = DefaultNeo4jPoolSize
	}
	if n.MaxConnectionLifetime == 0 {
		n.MaxConnectionLifetime = DefaultNeo4jLifetime
	}
	if n.ConnectionAcquisitionTimeout == 0 {
		n.ConnectionAcquisitionTimeout = DefaultNeo4jAcquisition
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Redis.TTL == 0 {
		cfg.Redis.TTL = DefaultRedisTTL
	}
	if cfg.Redis.NegativeTTL == 0 {
		cfg.Redis.NegativeTTL = DefaultRedisNegativeTTL
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = DefaultKafkaTopic
	}
	if cfg.Kafka.RulesTopic == "" {
		cfg.Kafka.RulesTopic = DefaultKafkaRulesTopic
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = DefaultKafkaBatchTimeout
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
}

// Default returns a Config with every default applied.  rules.default_fuzzy
// and metrics.enabled are on.
func Default() *Config {
	cfg := &Config{}
	cfg.Rules.DefaultFuzzy = true
	cfg.Metrics.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}
