package bootstrap

import (
	"github.com/Goden-Gun/ezadmin/pkg/config"
	"github.com/Goden-Gun/ezadmin/pkg/kafka"
)

// KafkaSettings 将配置转换为 kafka.Config
func KafkaSettings(cfg config.KafkaConfig, clientID string) kafka.Config {
	if cfg.ClientID == "" {
		cfg.ClientID = clientID
	}
	return kafka.Config{
		Enabled:       cfg.Enabled,
		Brokers:       cfg.Brokers,
		Topic:         cfg.Topic,
		ConsumerGroup: cfg.ConsumerGroup,
		ClientID:      cfg.ClientID,
		Username:      cfg.Username,
		Password:      cfg.Password,
		SASLMechanism: cfg.SASLMechanism,
		TLSEnabled:    cfg.TLSEnabled,
		RequiredAcks:  cfg.RequiredAcks,
		MaxAttempts:   cfg.MaxAttempts,
	}
}

// InitKafka 初始化共享 Kafka manager，未启用时返回 nil
func InitKafka(cfg config.KafkaConfig, clientID string) (*kafka.Manager, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return kafka.NewManager(KafkaSettings(cfg, clientID))
}
