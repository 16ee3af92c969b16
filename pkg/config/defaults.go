package config

import "errors"

// ==================== AppConfig 默认值 ====================

// ApplyDefaults 应用基础配置默认值
func (a *AppConfig) ApplyDefaults(name string, port int) {
	if a.Name == "" {
		a.Name = name
	}
	if a.Env == "" {
		a.Env = GetEnv()
	}
	if a.Port <= 0 {
		a.Port = port
	}
	if a.ShutdownTimeout <= 0 {
		a.ShutdownTimeout = 10
	}
}

// ApplyDefaults 应用日志配置默认值
func (l *LogConfig) ApplyDefaults() {
	if l.Format == "" {
		l.Format = "json"
	}
	if l.Level == "" {
		l.Level = "info"
	}
	if l.File.Dir == "" {
		l.File.Dir = "./logs"
	}
	if l.File.MaxAgeDays <= 0 {
		l.File.MaxAgeDays = 7
	}
	if l.File.RotationDays <= 0 {
		l.File.RotationDays = 1
	}
}

// ==================== 调用与熔断默认值 ====================

// ApplyDefaults 连接超时 5s、读取超时 30s、查询最多 3 次
func (r *RPCClientConfig) ApplyDefaults() {
	if r.ConnectTimeout <= 0 {
		r.ConnectTimeout = 5
	}
	if r.ReadTimeout <= 0 {
		r.ReadTimeout = 30
	}
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = 3
	}
	if r.RetryIntervalMillis <= 0 {
		r.RetryIntervalMillis = 100
	}
}

// ApplyDefaults 应用熔断默认值
func (b *BreakerConfig) ApplyDefaults() {
	if b.ErrorThreshold <= 0 {
		b.ErrorThreshold = 5
	}
	if b.SuccessThreshold <= 0 {
		b.SuccessThreshold = 1
	}
	if b.Timeout <= 0 {
		b.Timeout = 10
	}
}

// ApplyDefaults 应用缓存默认值，用户聚合默认 30 分钟过期
func (c *CacheConfig) ApplyDefaults() {
	if c.Prefix == "" {
		c.Prefix = "iam:"
	}
	if c.UserTTL <= 0 {
		c.UserTTL = 1800
	}
}

// ApplyDefaults 应用 Token 默认值
func (t *TokenConfig) ApplyDefaults() {
	if t.AccessTokenTTL <= 0 {
		t.AccessTokenTTL = 7200
	}
	if t.RefreshTokenTTL <= 0 {
		t.RefreshTokenTTL = 7 * 24 * 3600
	}
}

// ==================== TracingConfig 默认值 ====================

// ApplyDefaults 应用 Tracing 配置默认值
func (t *TracingConfig) ApplyDefaults() {
	if t.Exporter == "" {
		t.Exporter = "stdout"
	}
	if t.SampleRatio <= 0 {
		t.SampleRatio = 1.0
	}
}

// ==================== PostgresConfig 默认值 ====================

// ApplyDefaults 应用 Postgres 配置默认值
func (p *PostgresConfig) ApplyDefaults() {
	if p.MaxOpenConns <= 0 {
		p.MaxOpenConns = 10
	}
	if p.MaxIdleConns <= 0 {
		p.MaxIdleConns = 5
	}
	if p.ConnMaxLifetimeSeconds <= 0 {
		p.ConnMaxLifetimeSeconds = 3600
	}
}

// ==================== 服务配置 ====================

// ApplyDefaults 应用 iam-service 全部默认值
func (c *IAMServiceConfig) ApplyDefaults() {
	c.App.ApplyDefaults("iam-service", 8081)
	c.Log.ApplyDefaults()
	c.Tracing.ApplyDefaults()
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = c.App.Name
	}
	c.Token.ApplyDefaults()
	c.SystemService.ApplyDefaults()
	c.Breaker.ApplyDefaults()
	c.Cache.ApplyDefaults()
	if c.Kafka.ConsumerGroup == "" {
		c.Kafka.ConsumerGroup = c.App.Name
	}
}

// Validate 检查必填项
func (c *IAMServiceConfig) Validate() error {
	var errs []error
	if c.Token.SecretKey == "" {
		errs = append(errs, errors.New("token.secret_key is required"))
	}
	if c.SystemService.BaseURL == "" {
		errs = append(errs, errors.New("system_service.base_url is required"))
	}
	if c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is required when kafka is enabled"))
	}
	return errors.Join(errs...)
}

// ApplyDefaults 应用 system-service 全部默认值
func (c *SystemServiceConfig) ApplyDefaults() {
	c.App.ApplyDefaults("system-service", 8082)
	c.Log.ApplyDefaults()
	c.Tracing.ApplyDefaults()
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = c.App.Name
	}
	c.Postgres.ApplyDefaults()
}

// Validate 检查必填项
func (c *SystemServiceConfig) Validate() error {
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required when kafka is enabled")
	}
	return nil
}
