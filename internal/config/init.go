package config

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Init 加载 .env 后初始化配置管理器
func Init(configPath, envFile string) (*ConfigManager, error) {
	log.Info().Msg("[Config] 初始化配置管理器...")

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("file", envFile).Msg("[Config] 加载环境变量文件失败")
		}
	}

	configManager, err := NewConfigManager(configPath)
	if err != nil {
		log.Error().Err(err).Msg("[Config] 初始化配置管理器失败")
		return nil, err
	}

	SetGlobalConfigManager(configManager)
	log.Info().Msg("[Config] 配置管理器初始化成功")
	return configManager, nil
}
