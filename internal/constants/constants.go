package constants

import (
	"node-monitor/internal/config"
	"time"
)

var (
	// 路径统计 / 慢请求相关
	TopView      = 3               // 报告中展示的路径条数
	TopLimit     = 100             // 最多跟踪的路径数
	TopTimeLimit = 1 * time.Second // 低于该耗时的请求不跟踪
	TopSortBy    = "max_time"      // 排序字段 max_time | rate | count | load

	// 状态判定
	SaturationRatio = 0.9 // 平均/最大延迟比超过该值判定为 NOK

	// 报告服务
	ReportListen     = "0.0.0.0:10010"
	ReportPath       = "/node_monitor"
	ReportAccessCode = "monitis"
	ReportMaxConns   = 64

	// 告警
	AlertDedupeWindow   = 15 * time.Minute // 告警去重时间窗口
	AlertNotifyInterval = time.Hour        // 同级别告警通知间隔
	AlertQueueSize      = 100

	// 归档
	ArchiveTimeout = 10 * time.Second
)

// UpdateFromConfig 从配置文件更新常量
func UpdateFromConfig(cfg *config.Config) {
	if cfg.Monitor.SaturationRatio > 0 {
		SaturationRatio = cfg.Monitor.SaturationRatio
	}

	if cfg.Report.Listen != "" {
		ReportListen = cfg.Report.Listen
	}
	if cfg.Report.Path != "" {
		ReportPath = cfg.Report.Path
	}
	if cfg.Report.AccessCode != "" {
		ReportAccessCode = cfg.Report.AccessCode
	}
	if cfg.Report.MaxConns >= 0 {
		ReportMaxConns = cfg.Report.MaxConns
	}

	if cfg.Alert.DedupeWindow > 0 {
		AlertDedupeWindow = cfg.Alert.DedupeWindow
	}
	if cfg.Alert.NotifyInterval > 0 {
		AlertNotifyInterval = cfg.Alert.NotifyInterval
	}

	if cfg.Archive.Timeout > 0 {
		ArchiveTimeout = cfg.Archive.Timeout
	}
}
