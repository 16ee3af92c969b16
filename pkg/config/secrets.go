package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// AWSSecretScheme 标记一个从 AWS Secrets Manager 读取的配置值
// 格式: aws-sm://{secret-id}[#{json-key}]
const AWSSecretScheme = "aws-sm://"

// GetSecretOrEnv 从 Docker Secret 文件或环境变量读取敏感信息
// 优先级: {NAME}_FILE 指定的文件 > {NAME} 环境变量 > 默认值
//
// 示例:
//
//	secret := GetSecretOrEnv("JWT_SECRET", cfg.Token.SecretKey)
//	// 如果 JWT_SECRET_FILE=/run/secrets/jwt 存在，读取文件内容
//	// 否则读取 JWT_SECRET 环境变量
//	// 都不存在则返回默认值
func GetSecretOrEnv(name string, defaultValue string) string {
	if filePath := os.Getenv(name + "_FILE"); filePath != "" {
		if data, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	if value := os.Getenv(name); value != "" {
		return value
	}
	return defaultValue
}

// SecretDefinition Secret 定义
type SecretDefinition struct {
	Name     string  // Secret 名称 (如 JWT_SECRET)
	Target   *string // 目标字段指针，其当前值作为默认值
	Required bool    // 是否必需
}

// SecretNotFoundError Secret 未找到错误
type SecretNotFoundError struct {
	Name string
}

func (e *SecretNotFoundError) Error() string {
	return "required secret not found: " + e.Name
}

// ApplySecrets 依次注入 Docker Secret / 环境变量，再解析 aws-sm:// 引用
func ApplySecrets(ctx context.Context, resolver *SecretResolver, secrets []SecretDefinition) error {
	for _, s := range secrets {
		if s.Target == nil {
			continue
		}
		value := GetSecretOrEnv(s.Name, *s.Target)
		if IsSecretRef(value) {
			if resolver == nil {
				return fmt.Errorf("secret %s references %s but no resolver is configured", s.Name, AWSSecretScheme)
			}
			resolved, err := resolver.Resolve(ctx, value)
			if err != nil {
				return fmt.Errorf("resolve secret %s: %w", s.Name, err)
			}
			value = resolved
		}
		if s.Required && value == "" {
			return &SecretNotFoundError{Name: s.Name}
		}
		*s.Target = value
	}
	return nil
}

// ManagerAPI 是 SecretResolver 依赖的 Secrets Manager 子集
type ManagerAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretResolver 解析 aws-sm:// 引用
type SecretResolver struct {
	api ManagerAPI
}

func NewSecretResolver(api ManagerAPI) *SecretResolver {
	return &SecretResolver{api: api}
}

// NewAWSSecretResolver 使用默认凭证链创建解析器，region 为空时读取环境配置
func NewAWSSecretResolver(ctx context.Context, region string) (*SecretResolver, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSecretResolver(secretsmanager.NewFromConfig(cfg)), nil
}

// IsSecretRef 判断值是否为 aws-sm:// 引用
func IsSecretRef(v string) bool {
	return strings.HasPrefix(v, AWSSecretScheme)
}

// Resolve 返回引用对应的明文；非引用原样返回
func (r *SecretResolver) Resolve(ctx context.Context, ref string) (string, error) {
	if !IsSecretRef(ref) {
		return ref, nil
	}
	id, key, _ := strings.Cut(strings.TrimPrefix(ref, AWSSecretScheme), "#")
	if id == "" {
		return "", errors.New("empty secret id")
	}
	out, err := r.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(id)})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", id, err)
	}
	value := aws.ToString(out.SecretString)
	if value == "" {
		return "", fmt.Errorf("secret %s has no string value", id)
	}
	if key == "" {
		return value, nil
	}
	var fields map[string]string
	if err := json.Unmarshal([]byte(value), &fields); err != nil {
		return "", fmt.Errorf("secret %s is not a JSON object: %w", id, err)
	}
	v, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("secret %s has no key %q", id, key)
	}
	return v, nil
}
