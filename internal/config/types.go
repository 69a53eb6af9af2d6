package config

import "time"

type Config struct {
	Report  ReportConfig   `mapstructure:"report" json:"report"`
	Monitor MonitorConfig  `mapstructure:"monitor" json:"monitor"`
	Servers []ServerConfig `mapstructure:"servers" json:"servers"` // 被监控的示例服务
	Alert   AlertConfig    `mapstructure:"alert" json:"alert"`
	Archive ArchiveConfig  `mapstructure:"archive" json:"archive"`
	Log     LogConfig      `mapstructure:"log" json:"log"`
}

// ReportConfig 报告服务配置
type ReportConfig struct {
	Listen     string `mapstructure:"listen" json:"listen"`
	Path       string `mapstructure:"path" json:"path"`
	AccessCode string `mapstructure:"access_code" json:"access_code"`
	MaxConns   int    `mapstructure:"max_conns" json:"max_conns"` // 0 表示不限制
}

// MonitorConfig 汇总级别的监控参数
//
// Top 保持原始 map 形式，由 metrics 包做类型容错和取值钳制
type MonitorConfig struct {
	Top             map[string]interface{} `mapstructure:"top" json:"top"`
	SaturationRatio float64                `mapstructure:"saturation_ratio" json:"saturation_ratio"`
}

// ServerConfig 单个被监控监听器
type ServerConfig struct {
	Name    string                 `mapstructure:"name" json:"name"`
	Listen  string                 `mapstructure:"listen" json:"listen"`
	Message string                 `mapstructure:"message" json:"message"`
	Options map[string]interface{} `mapstructure:"options" json:"options"` // {collect_all, top:{view,limit,timelimit,sortby}}
}

type AlertConfig struct {
	FeishuWebhook  string        `mapstructure:"feishu_webhook" json:"feishu_webhook"`
	DedupeWindow   time.Duration `mapstructure:"dedupe_window" json:"dedupe_window"`
	NotifyInterval time.Duration `mapstructure:"notify_interval" json:"notify_interval"`
}

// ArchiveConfig 报告归档，S3 凭据走环境变量
type ArchiveConfig struct {
	Enabled bool          `mapstructure:"enabled" json:"enabled"`
	Prefix  string        `mapstructure:"prefix" json:"prefix"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Pretty bool   `mapstructure:"pretty" json:"pretty"`
}
