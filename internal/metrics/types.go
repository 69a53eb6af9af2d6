package metrics

import (
	"net/http"
	"strings"
)

// ListenerID 注册后返回给调用方的监听器句柄
type ListenerID string

// Method 统计的请求方法
type Method int

const (
	MethodGet Method = iota
	MethodPost
	MethodHead
	MethodPut
	MethodDelete
	MethodOptions
	MethodTrace
	methodCount
)

var methodNames = [methodCount]string{"get", "post", "head", "put", "delete", "options", "trace"}

func (m Method) String() string {
	if m < 0 || m >= methodCount {
		return "unknown"
	}
	return methodNames[m]
}

// ParseMethod 未知方法返回 false，此时请求只计入总数
func ParseMethod(s string) (Method, bool) {
	switch strings.ToUpper(s) {
	case http.MethodGet:
		return MethodGet, true
	case http.MethodPost:
		return MethodPost, true
	case http.MethodHead:
		return MethodHead, true
	case http.MethodPut:
		return MethodPut, true
	case http.MethodDelete:
		return MethodDelete, true
	case http.MethodOptions:
		return MethodOptions, true
	case http.MethodTrace:
		return MethodTrace, true
	}
	return 0, false
}

// StatusClass 状态码分组，408 单独成组
type StatusClass int

const (
	Class1xx StatusClass = iota
	Class2xx
	Class3xx
	Class4xx
	Class5xx
	ClassTimeout
	classCount
)

var classNames = [classCount]string{"1xx", "2xx", "3xx", "4xx", "5xx", "408"}

func (c StatusClass) String() string {
	if c < 0 || c >= classCount {
		return "unknown"
	}
	return classNames[c]
}

// ClassOf 每个状态码恰好归入一个分组
func ClassOf(code int) StatusClass {
	switch {
	case code == http.StatusRequestTimeout:
		return ClassTimeout
	case code < 200:
		return Class1xx
	case code < 300:
		return Class2xx
	case code < 400:
		return Class3xx
	case code < 500:
		return Class4xx
	default:
		return Class5xx
	}
}

// SortKey 路径排序字段
type SortKey string

const (
	SortByMaxTime SortKey = "max_time"
	SortByRate    SortKey = "rate"
	SortByCount   SortKey = "count"
	SortByLoad    SortKey = "load"
)

func ParseSortKey(s string) (SortKey, bool) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortByMaxTime, SortByRate, SortByCount, SortByLoad:
		return k, true
	}
	return SortByMaxTime, false
}

// Status 汇总健康状态
type Status string

const (
	StatusOK   Status = "OK"
	StatusNOK  Status = "NOK"
	StatusDown Status = "DOWN"
	StatusIdle Status = "IDLE"
)

// Observation 一次已完成请求的观测记录，时间单位为毫秒
type Observation struct {
	Method       string
	TotalMs      float64
	NetworkMs    float64
	ProcessingMs float64
	BytesRead    int64
	BytesWritten int64
	StatusCode   int
	Path         string   // 为空时不计入路径统计
	Fragment     Fragment // 附带的指标片段，可为 nil
	Sample       any      // 慢请求样本负载，可为 nil
}
