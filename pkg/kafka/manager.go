// Package kafka wraps the shared sarama producer and consumer-group config
// used to fan cache invalidation events out to every iam-service replica.
package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/xdg-go/scram"
	"go.opentelemetry.io/otel"

	log "github.com/Goden-Gun/ezadmin/pkg/logger"
)

// DefaultTopic carries authorization change events.
const DefaultTopic = "ezadmin.authz.changes"

// Config defines Kafka connection and producer defaults.
type Config struct {
	Enabled       bool     `yaml:"enabled" mapstructure:"enabled"`
	Brokers       []string `yaml:"brokers" mapstructure:"brokers"`
	Topic         string   `yaml:"topic" mapstructure:"topic"`
	ConsumerGroup string   `yaml:"consumer_group" mapstructure:"consumer_group"`
	ClientID      string   `yaml:"client_id" mapstructure:"client_id"`
	Username      string   `yaml:"username" mapstructure:"username"`
	Password      string   `yaml:"password" mapstructure:"password"`
	SASLMechanism string   `yaml:"sasl_mechanism" mapstructure:"sasl_mechanism"`
	TLSEnabled    bool     `yaml:"tls_enabled" mapstructure:"tls_enabled"`

	// RequiredAcks supports: "none" | "one" | "all" (default: all).
	RequiredAcks string `yaml:"required_acks" mapstructure:"required_acks"`
	// MaxAttempts controls producer retry max attempts (default: 3).
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
}

func (c *Config) ApplyDefaults() {
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
}

// Manager owns a shared sync producer and the base sarama config for consumers.
type Manager struct {
	cfg      Config
	producer sarama.SyncProducer
	baseConf *sarama.Config

	closeOnce sync.Once
}

// headersCarrier implements propagation.TextMapCarrier for produced headers.
type headersCarrier []sarama.RecordHeader

func (c *headersCarrier) Get(key string) string {
	for _, h := range *c {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headersCarrier) Set(key, value string) {
	*c = append(*c, sarama.RecordHeader{Key: []byte(key), Value: []byte(value)})
}

func (c *headersCarrier) Keys() []string {
	keys := make([]string, 0, len(*c))
	for _, h := range *c {
		keys = append(keys, string(h.Key))
	}
	return keys
}

// consumedCarrier reads trace context from consumed message headers.
type consumedCarrier []*sarama.RecordHeader

func (c consumedCarrier) Get(key string) string {
	for _, h := range c {
		if h != nil && strings.EqualFold(string(h.Key), key) {
			return string(h.Value)
		}
	}
	return ""
}

func (c consumedCarrier) Set(string, string) {}

func (c consumedCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for _, h := range c {
		if h != nil {
			keys = append(keys, string(h.Key))
		}
	}
	return keys
}

// ExtractHeaders restores the producer's trace context from msg headers.
func ExtractHeaders(ctx context.Context, headers []*sarama.RecordHeader) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, consumedCarrier(headers))
}

// SaramaConfig builds the shared client config: acks, retries, TLS and SASL.
func SaramaConfig(cfg Config) *sarama.Config {
	cfg.ApplyDefaults()
	base := sarama.NewConfig()
	base.Version = sarama.V2_1_0_0
	if cfg.ClientID != "" {
		base.ClientID = cfg.ClientID
	}

	base.Producer.Return.Successes = true
	base.Producer.Retry.Max = max(cfg.MaxAttempts, 3)
	base.Producer.RequiredAcks = parseRequiredAcks(cfg.RequiredAcks)
	base.Producer.Idempotent = false
	// 同一主体的事件按 key 落在同一分区，保证顺序
	base.Producer.Partitioner = sarama.NewHashPartitioner

	base.Consumer.Return.Errors = true
	base.Consumer.Offsets.Initial = sarama.OffsetNewest

	if cfg.TLSEnabled {
		base.Net.TLS.Enable = true
		base.Net.TLS.Config = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	if cfg.Username != "" {
		base.Net.SASL.Enable = true
		base.Net.SASL.User = cfg.Username
		base.Net.SASL.Password = cfg.Password
		switch strings.ToUpper(strings.TrimSpace(cfg.SASLMechanism)) {
		case "SCRAM-SHA-512":
			base.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
			base.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return newSCRAMClient(scram.SHA512)
			}
		case "SCRAM-SHA-256":
			base.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
			base.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return newSCRAMClient(scram.SHA256)
			}
		default:
			base.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		}
	}
	return base
}

// NewManager connects a sync producer to cfg.Brokers.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers empty")
	}
	base := SaramaConfig(cfg)
	producer, err := sarama.NewSyncProducer(cfg.Brokers, base)
	if err != nil {
		return nil, err
	}
	return NewManagerWithProducer(cfg, producer, base), nil
}

// NewManagerWithProducer wraps an existing producer, e.g. sarama/mocks.
// base may be nil, in which case it is derived from cfg.
func NewManagerWithProducer(cfg Config, producer sarama.SyncProducer, base *sarama.Config) *Manager {
	cfg.ApplyDefaults()
	if base == nil {
		base = SaramaConfig(cfg)
	}
	return &Manager{cfg: cfg, producer: producer, baseConf: base}
}

func (m *Manager) Topic() string { return m.cfg.Topic }

// Publish sends value keyed by key to topic (falls back to cfg.Topic) and
// injects the trace context into the message headers.
func (m *Manager) Publish(ctx context.Context, topic string, key, value []byte) error {
	if m == nil {
		return errors.New("kafka manager nil")
	}
	if topic == "" {
		topic = m.cfg.Topic
	}
	if topic == "" {
		return errors.New("kafka topic empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var headers headersCarrier
	otel.GetTextMapPropagator().Inject(ctx, &headers)

	msg := &sarama.ProducerMessage{Topic: topic, Headers: headers}
	if len(key) > 0 {
		msg.Key = sarama.ByteEncoder(key)
	}
	if len(value) > 0 {
		msg.Value = sarama.ByteEncoder(value)
	}

	start := time.Now()
	partition, offset, err := m.producer.SendMessage(msg)
	entry := log.WithTrace(ctx).WithFields(log.Fields{
		"topic":    topic,
		"duration": time.Since(start).String(),
	})
	if err != nil {
		entry.WithError(err).Error("kafka: publish failed")
		return err
	}
	entry.WithFields(log.Fields{"partition": partition, "offset": offset}).Debug("kafka: published")
	return nil
}

// NewConsumerGroup returns a consumer group using the shared base config.
func (m *Manager) NewConsumerGroup(group string) (sarama.ConsumerGroup, error) {
	if m == nil {
		return nil, errors.New("kafka manager nil")
	}
	if group == "" {
		group = m.cfg.ConsumerGroup
	}
	if group == "" {
		return nil, errors.New("kafka consumer group empty")
	}
	cfg := *m.baseConf
	return sarama.NewConsumerGroup(m.cfg.Brokers, group, &cfg)
}

// Close shuts down the producer.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	var err error
	m.closeOnce.Do(func() {
		if m.producer != nil {
			err = m.producer.Close()
		}
	})
	return err
}

func parseRequiredAcks(v string) sarama.RequiredAcks {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "none":
		return sarama.NoResponse
	case "one":
		return sarama.WaitForLocal
	default:
		return sarama.WaitForAll
	}
}

type scramClient struct {
	*scram.Client
	*scram.ClientConversation
	hash scram.HashGeneratorFcn
}

func newSCRAMClient(hash scram.HashGeneratorFcn) sarama.SCRAMClient {
	return &scramClient{hash: hash}
}

func (c *scramClient) Begin(userName, password, authzID string) error {
	client, err := c.hash.NewClient(userName, password, authzID)
	if err != nil {
		return err
	}
	c.Client = client
	c.ClientConversation = client.NewConversation()
	return nil
}

func (c *scramClient) Step(challenge string) (string, error) {
	return c.ClientConversation.Step(challenge)
}

func (c *scramClient) Done() bool {
	return c.ClientConversation.Done()
}
