package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/Goden-Gun/ezadmin/pkg/auth"
	"github.com/Goden-Gun/ezadmin/pkg/bootstrap"
	"github.com/Goden-Gun/ezadmin/pkg/config"
	"github.com/Goden-Gun/ezadmin/pkg/events"
	log "github.com/Goden-Gun/ezadmin/pkg/logger"
	"github.com/Goden-Gun/ezadmin/pkg/system"
	"github.com/Goden-Gun/ezadmin/pkg/system/pgstore"
)

var adminPermissions = []string{
	"iam:cache:manage",
	"system:user:read",
	"system:user:write",
	"system:role:read",
	"system:role:write",
}

func main() {
	cfg := &config.SystemServiceConfig{}
	if err := config.LoadConfig(cfg, config.LoadOptions{Service: "system", EnvPrefix: "SYSTEM"}); err != nil {
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
		{Name: "DATABASE_URL", Target: &cfg.Postgres.DSN},
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

	store, closeStore := openStore(ctx, cfg.Postgres)
	defer closeStore()

	var publisher events.Publisher = events.NoopPublisher{}
	kafkaManager, err := bootstrap.InitKafka(cfg.Kafka, cfg.App.Name)
	if err != nil {
		log.Fatalf("failed to init kafka: %v", err)
	}
	if kafkaManager != nil {
		defer kafkaManager.Close()
		publisher = events.NewKafkaPublisher(kafkaManager, cfg.App.Name)
	}

	svc := system.NewService(store, publisher)
	if err := bootstrap.ServeHTTP(ctx, cfg.App.Port, system.NewRouter(svc), cfg.App.ShutdownTimeout.Duration()); err != nil {
		log.Errorf("http server stopped: %v", err)
	}
}

// openStore uses PostgreSQL when a DSN is configured and the seeded
// in-memory store otherwise.
func openStore(ctx context.Context, cfg config.PostgresConfig) (system.Store, func()) {
	if cfg.DSN == "" {
		log.Warn("postgres dsn empty, using in-memory store")
		store, err := system.NewSeededMemoryStore()
		if err != nil {
			log.Fatalf("failed to seed memory store: %v", err)
		}
		return store, func() {}
	}

	pool, err := bootstrap.InitPostgres(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	store := pgstore.New(pool)
	if cfg.Migrate {
		if err := store.Migrate(ctx); err != nil {
			log.Fatalf("failed to run database migrations: %v", err)
		}
		hash, err := auth.HashPassword(config.GetSecretOrEnv("ADMIN_PASSWORD", "admin123"))
		if err != nil {
			log.Fatalf("failed to hash admin password: %v", err)
		}
		if err := store.SeedAdmin(ctx, hash, adminPermissions); err != nil {
			log.Fatalf("failed to seed admin: %v", err)
		}
	}
	return store, pool.Close
}
