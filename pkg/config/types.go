package config

// ==================== 基础配置 (所有服务都需要) ====================

// AppConfig 应用基础配置
type AppConfig struct {
	Name   string `yaml:"name" mapstructure:"name"`
	Env    string `yaml:"env" mapstructure:"env"`
	Port   int    `yaml:"port" mapstructure:"port"`
	NodeID string `yaml:"node_id" mapstructure:"node_id"`
	// ShutdownTimeout 优雅退出等待时间
	ShutdownTimeout Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// LogConfig 日志配置
type LogConfig struct {
	Format       string        `yaml:"format" mapstructure:"format"`
	Level        string        `yaml:"level" mapstructure:"level"`
	ReportCaller bool          `yaml:"report_caller" mapstructure:"report_caller"`
	File         LogFileConfig `yaml:"file" mapstructure:"file"`
}

// LogFileConfig 日志文件配置
type LogFileConfig struct {
	Enabled      bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir          string `yaml:"dir" mapstructure:"dir"`
	Filename     string `yaml:"filename" mapstructure:"filename"`
	MaxAgeDays   int    `yaml:"max_age_days" mapstructure:"max_age_days"`
	RotationDays int    `yaml:"rotation_days" mapstructure:"rotation_days"`
}

// ==================== 基础设施配置 ====================

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Db       int    `yaml:"db" mapstructure:"db"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	// DSN 为空时使用内存存储（仅限开发环境）
	DSN                    string `yaml:"dsn" mapstructure:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `yaml:"conn_max_lifetime_seconds" mapstructure:"conn_max_lifetime_seconds"`
	Migrate                bool   `yaml:"migrate" mapstructure:"migrate"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Enabled       bool     `yaml:"enabled" mapstructure:"enabled"`
	Brokers       []string `yaml:"brokers" mapstructure:"brokers"`
	Topic         string   `yaml:"topic" mapstructure:"topic"`
	ConsumerGroup string   `yaml:"consumer_group" mapstructure:"consumer_group"`
	ClientID      string   `yaml:"client_id" mapstructure:"client_id"`
	Username      string   `yaml:"username" mapstructure:"username"`
	Password      string   `yaml:"password" mapstructure:"password"`
	SASLMechanism string   `yaml:"sasl_mechanism" mapstructure:"sasl_mechanism"`
	TLSEnabled    bool     `yaml:"tls_enabled" mapstructure:"tls_enabled"`
	RequiredAcks  string   `yaml:"required_acks" mapstructure:"required_acks"`
	MaxAttempts   int      `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// ==================== 认证配置 ====================

// TokenConfig JWT 认证配置
type TokenConfig struct {
	// SecretKey 支持 aws-sm://name#key 引用
	SecretKey          string   `yaml:"secret_key" mapstructure:"secret_key"`
	Issuer             string   `yaml:"issuer" mapstructure:"issuer"`
	AccessTokenTTL     Duration `yaml:"access_token_ttl" mapstructure:"access_token_ttl"`
	RefreshTokenTTL    Duration `yaml:"refresh_token_ttl" mapstructure:"refresh_token_ttl"`
	MaxSessionLifetime Duration `yaml:"max_session_lifetime" mapstructure:"max_session_lifetime"`
	ClockSkew          Duration `yaml:"clock_skew" mapstructure:"clock_skew"`
}

// ==================== 服务调用配置 ====================

// RPCClientConfig 下游 HTTP 服务调用配置
type RPCClientConfig struct {
	BaseURL        string   `yaml:"base_url" mapstructure:"base_url"`
	ConnectTimeout Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
	ReadTimeout    Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	// MaxAttempts 仅作用于幂等查询
	MaxAttempts         int `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryIntervalMillis int `yaml:"retry_interval_millis" mapstructure:"retry_interval_millis"`
}

// BreakerConfig 熔断配置
type BreakerConfig struct {
	ErrorThreshold   int      `yaml:"error_threshold" mapstructure:"error_threshold"`
	SuccessThreshold int      `yaml:"success_threshold" mapstructure:"success_threshold"`
	Timeout          Duration `yaml:"timeout" mapstructure:"timeout"`
}

// CacheConfig 权限缓存配置，TTL 为 0 表示不过期
type CacheConfig struct {
	Prefix  string   `yaml:"prefix" mapstructure:"prefix"`
	RoleTTL Duration `yaml:"role_ttl" mapstructure:"role_ttl"`
	UserTTL Duration `yaml:"user_ttl" mapstructure:"user_ttl"`
}

// SecretsConfig 外部密钥源配置
type SecretsConfig struct {
	AWSRegion string `yaml:"aws_region" mapstructure:"aws_region"`
}

// ==================== 可观测性配置 ====================

// TracingConfig 分布式追踪配置
type TracingConfig struct {
	Exporter     string            `yaml:"exporter" mapstructure:"exporter"`
	Endpoint     string            `yaml:"endpoint" mapstructure:"endpoint"`
	ServiceName  string            `yaml:"service_name" mapstructure:"service_name"`
	Insecure     bool              `yaml:"insecure" mapstructure:"insecure"`
	Headers      map[string]string `yaml:"headers" mapstructure:"headers"`
	SampleRatio  float64           `yaml:"sample_ratio" mapstructure:"sample_ratio"`
	ResourceTags map[string]string `yaml:"resource_tags" mapstructure:"resource_tags"`
}

// ==================== 服务配置 ====================

// IAMServiceConfig iam-service 完整配置
type IAMServiceConfig struct {
	App           AppConfig       `yaml:"app" mapstructure:"app"`
	Log           LogConfig       `yaml:"log" mapstructure:"log"`
	Redis         RedisConfig     `yaml:"redis" mapstructure:"redis"`
	Kafka         KafkaConfig     `yaml:"kafka" mapstructure:"kafka"`
	Tracing       TracingConfig   `yaml:"tracing" mapstructure:"tracing"`
	Token         TokenConfig     `yaml:"token" mapstructure:"token"`
	SystemService RPCClientConfig `yaml:"system_service" mapstructure:"system_service"`
	Breaker       BreakerConfig   `yaml:"breaker" mapstructure:"breaker"`
	Cache         CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Secrets       SecretsConfig   `yaml:"secrets" mapstructure:"secrets"`
}

// SystemServiceConfig system-service 完整配置
type SystemServiceConfig struct {
	App      AppConfig      `yaml:"app" mapstructure:"app"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka" mapstructure:"kafka"`
	Tracing  TracingConfig  `yaml:"tracing" mapstructure:"tracing"`
	Secrets  SecretsConfig  `yaml:"secrets" mapstructure:"secrets"`
}
