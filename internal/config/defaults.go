package config

import (
	"time"

	"github.com/spf13/viper"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("report.listen", "0.0.0.0:10010")
	v.SetDefault("report.path", "/node_monitor")
	v.SetDefault("report.access_code", "monitis")
	v.SetDefault("report.max_conns", 64)

	v.SetDefault("monitor.top", map[string]interface{}{
		"view":      3,
		"limit":     100,
		"timelimit": 1,
		"sortby":    "max_time",
	})
	v.SetDefault("monitor.saturation_ratio", 0.9)

	v.SetDefault("alert.dedupe_window", 15*time.Minute)
	v.SetDefault("alert.notify_interval", time.Hour)

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.prefix", "node-monitor/reports")
	v.SetDefault("archive.timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}
