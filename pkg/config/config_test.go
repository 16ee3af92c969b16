package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const iamYAML = `
app:
  port: 9001
token:
  secret_key: from-file
  access_token_ttl: 2h
  max_session_lifetime: 86400
system_service:
  base_url: http://system:8082
  read_timeout: "15s"
redis:
  addr: localhost:6379
kafka:
  enabled: true
  brokers: a:9092,b:9092
`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	return dir
}

func TestLoadServiceConfig(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("IAM_TOKEN_SECRET_KEY", "from-env")
	dir := writeConfig(t, "config_iam_test.yaml", iamYAML)

	cfg := &IAMServiceConfig{}
	require.NoError(t, LoadConfig(cfg, LoadOptions{ConfigPath: dir, Service: "iam", EnvPrefix: "IAM"}))
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9001, cfg.App.Port)
	assert.Equal(t, "iam-service", cfg.App.Name)
	assert.Equal(t, "from-env", cfg.Token.SecretKey)
	assert.Equal(t, 2*time.Hour, cfg.Token.AccessTokenTTL.Duration())
	assert.Equal(t, 24*time.Hour, cfg.Token.MaxSessionLifetime.Duration())
	assert.Equal(t, Duration(7*24*3600), cfg.Token.RefreshTokenTTL)
	assert.Equal(t, Duration(15), cfg.SystemService.ReadTimeout)
	assert.Equal(t, Duration(5), cfg.SystemService.ConnectTimeout)
	assert.Equal(t, 3, cfg.SystemService.MaxAttempts)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "iam-service", cfg.Kafka.ConsumerGroup)
	assert.Equal(t, "iam:", cfg.Cache.Prefix)
}

func TestLoadMissingConfig(t *testing.T) {
	t.Setenv("APP_ENV", "nowhere")
	dir := t.TempDir()
	assert.Error(t, LoadConfig(&IAMServiceConfig{}, LoadOptions{ConfigPath: dir, Service: "iam"}))
	assert.NoError(t, LoadConfig(&IAMServiceConfig{}, LoadOptions{ConfigPath: dir, Service: "iam", AllowNoConfig: true}))
}

func TestConfigName(t *testing.T) {
	assert.Equal(t, "config_dev", LoadOptions{}.ConfigName("dev"))
	assert.Equal(t, "config_system_service_prod", LoadOptions{Service: "system-service"}.ConfigName("prod"))
}

func TestValidateReportsEveryMissingField(t *testing.T) {
	cfg := &IAMServiceConfig{Kafka: KafkaConfig{Enabled: true}}
	cfg.ApplyDefaults()
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"token.secret_key", "system_service.base_url", "redis.addr", "kafka.brokers"} {
		assert.Contains(t, err.Error(), want)
	}
	assert.NoError(t, (&SystemServiceConfig{}).Validate())
}

type fakeSecrets map[string]string

func (f fakeSecrets) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	v, ok := f[aws.ToString(in.SecretId)]
	if !ok {
		return nil, errors.New("ResourceNotFoundException")
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(v)}, nil
}

func TestSecretResolver(t *testing.T) {
	r := NewSecretResolver(fakeSecrets{
		"plain":  "s3cr3t",
		"bundle": `{"jwt":"signing-key","db":"pw"}`,
	})
	ctx := context.Background()

	v, err := r.Resolve(ctx, "literal")
	require.NoError(t, err)
	assert.Equal(t, "literal", v)

	v, err = r.Resolve(ctx, "aws-sm://plain")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", v)

	v, err = r.Resolve(ctx, "aws-sm://bundle#jwt")
	require.NoError(t, err)
	assert.Equal(t, "signing-key", v)

	_, err = r.Resolve(ctx, "aws-sm://bundle#missing")
	assert.Error(t, err)
	_, err = r.Resolve(ctx, "aws-sm://plain#key")
	assert.Error(t, err)
	_, err = r.Resolve(ctx, "aws-sm://absent")
	assert.Error(t, err)
}

func TestApplySecrets(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "jwt")
	require.NoError(t, os.WriteFile(file, []byte("from-docker-secret\n"), 0o600))
	t.Setenv("JWT_SECRET_FILE", file)
	t.Setenv("DB_PASSWORD", "aws-sm://bundle#db")

	jwt, db, missing := "", "", ""
	r := NewSecretResolver(fakeSecrets{"bundle": `{"db":"pw"}`})
	err := ApplySecrets(context.Background(), r, []SecretDefinition{
		{Name: "JWT_SECRET", Target: &jwt, Required: true},
		{Name: "DB_PASSWORD", Target: &db},
	})
	require.NoError(t, err)
	assert.Equal(t, "from-docker-secret", jwt)
	assert.Equal(t, "pw", db)

	err = ApplySecrets(context.Background(), r, []SecretDefinition{{Name: "ABSENT_SECRET", Target: &missing, Required: true}})
	var notFound *SecretNotFoundError
	assert.ErrorAs(t, err, &notFound)

	err = ApplySecrets(context.Background(), nil, []SecretDefinition{{Name: "DB_PASSWORD", Target: &missing}})
	assert.Error(t, err)
}
