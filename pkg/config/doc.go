// Package config provides the configuration types and loaders shared by
// ez-admin services (iam-service, system-service).
//
// Usage:
//
//	cfg := &config.IAMServiceConfig{}
//	if err := config.LoadConfig(cfg, config.LoadOptions{Service: "iam", EnvPrefix: "IAM"}); err != nil {
//	    log.Fatal(err)
//	}
//	cfg.ApplyDefaults()
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// Secret values may come from Docker secrets ({NAME}_FILE), plain
// environment variables, or AWS Secrets Manager references of the form
// aws-sm://{secret-id}#{json-key}.
package config
