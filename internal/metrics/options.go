package metrics

import (
	"strings"
	"time"

	"github.com/spf13/cast"

	"node-monitor/internal/constants"
)

// TopConfig 路径统计与慢请求窗口的参数
type TopConfig struct {
	View      int           // 报告中展示的条数，0 表示关闭
	Limit     int           // 路径索引容量，0 表示关闭
	TimeLimit time.Duration // 准入下限
	SortBy    SortKey
}

// DefaultTopConfig 取 constants 中的当前默认值
func DefaultTopConfig() TopConfig {
	sortBy, _ := ParseSortKey(constants.TopSortBy)
	return TopConfig{
		View:      constants.TopView,
		Limit:     constants.TopLimit,
		TimeLimit: constants.TopTimeLimit,
		SortBy:    sortBy,
	}
}

// FloorMs 准入下限，毫秒
func (c TopConfig) FloorMs() float64 {
	return float64(c.TimeLimit) / float64(time.Millisecond)
}

// Normalize 越界值回退到默认值
func (c TopConfig) Normalize() TopConfig {
	def := DefaultTopConfig()
	if c.View < 0 {
		c.View = def.View
	}
	if c.Limit < 0 {
		c.Limit = def.Limit
	}
	if c.TimeLimit < 0 {
		c.TimeLimit = def.TimeLimit
	}
	if k, ok := ParseSortKey(string(c.SortBy)); ok {
		c.SortBy = k
	} else {
		c.SortBy = def.SortBy
	}
	return c
}

// ParseTopConfig 从原始配置解析 {view, limit, timelimit, sortby}
// 类型错误或越界的值一律回退默认值，不返回错误
func ParseTopConfig(raw map[string]interface{}) TopConfig {
	c := DefaultTopConfig()
	if raw == nil {
		return c
	}

	if v, ok := lookup(raw, "view"); ok {
		if n, ok := toNonNegativeInt(v); ok {
			c.View = n
		}
	}
	if v, ok := lookup(raw, "limit"); ok {
		if n, ok := toNonNegativeInt(v); ok {
			c.Limit = n
		}
	}
	if v, ok := lookup(raw, "timelimit", "time_limit", "timelimitseconds"); ok {
		if f, ok := toNonNegativeFloat(v); ok {
			c.TimeLimit = time.Duration(f * float64(time.Second))
		}
	}
	if v, ok := lookup(raw, "sortby", "sort_by"); ok {
		if s, err := cast.ToStringE(v); err == nil {
			if k, ok := ParseSortKey(s); ok {
				c.SortBy = k
			}
		}
	}
	return c
}

// RegisterOptions 注册监听器时的选项
type RegisterOptions struct {
	CollectAll bool
	Top        TopConfig
}

// DefaultRegisterOptions 默认不收集扩展信息
func DefaultRegisterOptions() RegisterOptions {
	return RegisterOptions{Top: DefaultTopConfig()}
}

// ParseRegisterOptions 解析 {collect_all: yes|no|bool, top: {...}}
func ParseRegisterOptions(raw map[string]interface{}) RegisterOptions {
	opts := DefaultRegisterOptions()
	if raw == nil {
		return opts
	}
	if v, ok := lookup(raw, "collect_all", "collectall"); ok {
		switch t := v.(type) {
		case string:
			opts.CollectAll = strings.EqualFold(strings.TrimSpace(t), "yes") || strings.EqualFold(strings.TrimSpace(t), "true")
		case bool:
			opts.CollectAll = t
		}
	}
	if v, ok := lookup(raw, "top"); ok {
		if m, err := cast.ToStringMapE(v); err == nil {
			opts.Top = ParseTopConfig(m)
		}
	}
	return opts
}

func lookup(raw map[string]interface{}, keys ...string) (interface{}, bool) {
	for k, v := range raw {
		for _, want := range keys {
			if strings.EqualFold(k, want) && v != nil {
				return v, true
			}
		}
	}
	return nil, false
}

func toNonNegativeInt(v interface{}) (int, bool) {
	if _, isBool := v.(bool); isBool {
		return 0, false
	}
	n, err := cast.ToIntE(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func toNonNegativeFloat(v interface{}) (float64, bool) {
	if _, isBool := v.(bool); isBool {
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}
