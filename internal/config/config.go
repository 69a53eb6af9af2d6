package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	apperrors "node-monitor/internal/errors"
)

var (
	configCallbacks []func(*Config)
	callbackMutex   sync.RWMutex
)

type ConfigManager struct {
	config     atomic.Value
	configPath string
	mu         sync.Mutex
}

func NewConfigManager(configPath string) (*ConfigManager, error) {
	cm := &ConfigManager{
		configPath: configPath,
	}

	config, err := cm.loadConfig()
	if err != nil {
		return nil, err
	}

	cm.config.Store(config)
	log.Info().Int("servers", len(config.Servers)).Msg("[ConfigManager] 配置已加载")

	return cm, nil
}

// loadConfig 读取配置文件并叠加 NODEMON_* 环境变量，文件不存在时使用默认值
func (cm *ConfigManager) loadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("NODEMON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cm.configPath != "" {
		v.SetConfigFile(cm.configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, &apperrors.MetricsError{
					Code:    apperrors.ErrInvalidConfig,
					Message: fmt.Sprintf("读取配置文件 %s 失败", cm.configPath),
					Err:     err,
				}
			}
			log.Warn().Str("path", cm.configPath).Msg("[ConfigManager] 配置文件不存在，使用默认配置")
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, &apperrors.MetricsError{
			Code:    apperrors.ErrInvalidConfig,
			Message: "解析配置失败",
			Err:     err,
		}
	}

	return &config, nil
}

// GetConfig 获取当前配置
func (cm *ConfigManager) GetConfig() *Config {
	return cm.config.Load().(*Config)
}

// ReloadConfig 重新加载配置文件
func (cm *ConfigManager) ReloadConfig() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	config, err := cm.loadConfig()
	if err != nil {
		return err
	}

	cm.config.Store(config)

	TriggerCallbacks(config)

	log.Info().Int("servers", len(config.Servers)).Msg("[ConfigManager] 配置已重新加载")
	return nil
}

// RegisterUpdateCallback 注册配置更新回调函数
func RegisterUpdateCallback(callback func(*Config)) {
	callbackMutex.Lock()
	defer callbackMutex.Unlock()
	configCallbacks = append(configCallbacks, callback)
}

// TriggerCallbacks 触发所有回调
func TriggerCallbacks(cfg *Config) {
	callbackMutex.RLock()
	defer callbackMutex.RUnlock()
	for _, callback := range configCallbacks {
		callback(cfg)
	}

	log.Debug().Int("callbacks", len(configCallbacks)).Msg("[Config] 触发配置更新回调")
}

var globalConfigManager *ConfigManager

// SetGlobalConfigManager 设置全局配置管理器
func SetGlobalConfigManager(cm *ConfigManager) {
	globalConfigManager = cm
}

// ReloadConfig 重新加载配置（全局接口）
func ReloadConfig() error {
	if globalConfigManager == nil {
		return nil
	}
	return globalConfigManager.ReloadConfig()
}
