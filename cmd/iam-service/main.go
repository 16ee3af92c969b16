package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Goden-Gun/ezadmin/pkg/bootstrap"
	"github.com/Goden-Gun/ezadmin/pkg/config"
	"github.com/Goden-Gun/ezadmin/pkg/events"
	"github.com/Goden-Gun/ezadmin/pkg/iam"
	log "github.com/Goden-Gun/ezadmin/pkg/logger"
)

func main() {
	cfg := &config.IAMServiceConfig{}
	if err := config.LoadConfig(cfg, config.LoadOptions{Service: "iam", EnvPrefix: "IAM"}); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg.ApplyDefaults()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := bootstrap.InitLoggerWithFile(cfg.Log, cfg.App.Name); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	var resolver *config.SecretResolver
	if cfg.Secrets.AWSRegion != "" {
		r, err := config.NewAWSSecretResolver(ctx, cfg.Secrets.AWSRegion)
		if err != nil {
			log.Fatalf("failed to init secret resolver: %v", err)
		}
		resolver = r
	}
	if err := config.ApplySecrets(ctx, resolver, []config.SecretDefinition{
		{Name: "JWT_SECRET", Target: &cfg.Token.SecretKey, Required: true},
		{Name: "REDIS_PASSWORD", Target: &cfg.Redis.Password},
		{Name: "KAFKA_PASSWORD", Target: &cfg.Kafka.Password},
	}); err != nil {
		log.Fatalf("failed to load secrets: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	shutdownTracing, err := bootstrap.InitTracing(ctx, cfg.Tracing)
	if err != nil {
		log.Warnf("tracing disabled: %v", err)
	} else {
		defer func() { _ = shutdownTracing(context.Background()) }()
	}

	rdb, err := bootstrap.InitRedis(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	svc, err := iam.NewService(cfg, rdb, iam.NewSystemClient(cfg.SystemService, cfg.Breaker))
	if err != nil {
		log.Fatalf("failed to build iam service: %v", err)
	}
	svc.Sync.Boot(ctx)

	var wg sync.WaitGroup
	kafkaManager, err := bootstrap.InitKafka(cfg.Kafka, cfg.App.Name)
	if err != nil {
		log.Fatalf("failed to init kafka: %v", err)
	}
	if kafkaManager != nil {
		defer kafkaManager.Close()
		group, err := kafkaManager.NewConsumerGroup(cfg.Kafka.ConsumerGroup)
		if err != nil {
			log.Fatalf("failed to create consumer group: %v", err)
		}
		defer group.Close()
		consumer := events.NewConsumer(svc.Dispatcher, cfg.Kafka.ConsumerGroup)
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Run(ctx, group, kafkaManager.Topic())
		}()
	} else {
		log.Info("kafka disabled, change events will not be consumed")
	}

	if err := bootstrap.ServeHTTP(ctx, cfg.App.Port, svc.Router(), cfg.App.ShutdownTimeout.Duration()); err != nil {
		log.Errorf("http server stopped: %v", err)
	}
	stop()
	wg.Wait()
}
