package archive

import (
	"fmt"
	"os"
	"strings"
)

// Config S3 兼容存储的连接参数
type Config struct {
	Endpoint        string
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// NewConfigFromEnv 从环境变量创建配置
func NewConfigFromEnv() (*Config, error) {
	config := &Config{
		Endpoint:        getEnvDefault("ARCHIVE_S3_ENDPOINT", ""),
		Bucket:          getEnvDefault("ARCHIVE_S3_BUCKET", ""),
		Region:          getEnvDefault("ARCHIVE_S3_REGION", "us-east-1"),
		AccessKeyID:     getEnvDefault("ARCHIVE_S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnvDefault("ARCHIVE_S3_SECRET_ACCESS_KEY", ""),
		UsePathStyle:    getEnvBool("ARCHIVE_S3_USE_PATH_STYLE", false),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid archive config: %w", err)
	}

	return config, nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("bucket name is required")
	}

	if c.AccessKeyID == "" {
		return fmt.Errorf("access key ID is required")
	}

	if c.SecretAccessKey == "" {
		return fmt.Errorf("secret access key is required")
	}

	if c.Region == "" {
		return fmt.Errorf("region is required")
	}

	return nil
}

// getEnvDefault 获取环境变量，如果不存在则返回默认值
func getEnvDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool 获取布尔型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}
