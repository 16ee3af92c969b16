// Package bootstrap provides common initialization utilities for ez-admin services.
//
// This package consolidates repeated initialization logic across services including:
//   - Logger setup with file rotation
//   - Redis and PostgreSQL connection management
//   - Kafka manager creation
//   - OpenTelemetry tracing initialization
//   - HTTP serving with graceful shutdown
//
// Example usage:
//
//	func main() {
//	    cfg := &config.IAMServiceConfig{}
//	    if err := config.LoadConfig(cfg, config.LoadOptions{Service: "iam"}); err != nil {
//	        log.Fatal(err)
//	    }
//	    cfg.ApplyDefaults()
//
//	    if err := bootstrap.InitLoggerWithFile(cfg.Log, cfg.App.Name); err != nil {
//	        log.Fatal(err)
//	    }
//
//	    redisClient, err := bootstrap.InitRedis(ctx, cfg.Redis)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    shutdown, err := bootstrap.InitTracing(ctx, cfg.Tracing)
//	    if err != nil {
//	        log.Warn(err)
//	    }
//	    defer shutdown(ctx)
//
//	    _ = bootstrap.ServeHTTP(ctx, cfg.App.Port, router, cfg.App.ShutdownTimeout.Duration())
//	}
package bootstrap
