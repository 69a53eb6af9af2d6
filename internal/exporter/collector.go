// Package exporter 将监控汇总以 Prometheus 格式暴露
package exporter

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"node-monitor/internal/metrics"
)

const namespace = "nodemon"

// SummarySource 汇总数据来源，*metrics.Registry 实现了该接口
type SummarySource interface {
	Summary(flush bool) *metrics.Summary
}

// Collector 每次采集时读取一次不清零的汇总
//
// 汇总是按窗口统计的，所有指标都以 gauge 形式导出
type Collector struct {
	source SummarySource
	now    func() time.Time

	listeners  *prometheus.Desc
	status     *prometheus.Desc
	requests   *prometheus.Desc
	methods    *prometheus.Desc
	responses  *prometheus.Desc
	latency    *prometheus.Desc
	bytes      *prometheus.Desc
	exceptions *prometheus.Desc
	window     *prometheus.Desc
	active     *prometheus.Desc
}

func NewCollector(source SummarySource) *Collector {
	return &Collector{
		source: source,
		now:    time.Now,
		listeners: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "listeners"),
			"Registered listeners", nil, nil),
		status: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "status"),
			"Current summary status, 1 for the active state", []string{"status"}, nil),
		requests: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "requests"),
			"Requests observed in the current window", nil, nil),
		methods: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "method_requests"),
			"Requests by method in the current window", []string{"method"}, nil),
		responses: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "responses"),
			"Responses by status class in the current window", []string{"class"}, nil),
		latency: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "latency_seconds"),
			"Request latency in the current window", []string{"phase", "stat"}, nil),
		bytes: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "bytes"),
			"Body bytes transferred in the current window", []string{"direction"}, nil),
		exceptions: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "exceptions"),
			"Handler exceptions in the current window", nil, nil),
		window: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "window_seconds"),
			"Length of the current monitoring window", nil, nil),
		active: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "active_seconds"),
			"Time spent serving requests in the current window", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.listeners
	ch <- c.status
	ch <- c.requests
	ch <- c.methods
	ch <- c.responses
	ch <- c.latency
	ch <- c.bytes
	ch <- c.exceptions
	ch <- c.window
	ch <- c.active
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Summary(false)
	gauge := func(desc *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v, labels...)
	}

	gauge(c.listeners, float64(s.Listeners))
	for _, st := range []metrics.Status{metrics.StatusOK, metrics.StatusNOK, metrics.StatusDown, metrics.StatusIdle} {
		v := 0.0
		if s.Status == st {
			v = 1
		}
		gauge(c.status, v, string(st))
	}

	gauge(c.requests, float64(s.Requests))
	for m := metrics.MethodGet; m <= metrics.MethodTrace; m++ {
		gauge(c.methods, float64(s.Methods[m]), m.String())
	}
	for cl := metrics.Class1xx; cl <= metrics.ClassTimeout; cl++ {
		gauge(c.responses, float64(s.Codes[cl]), cl.String())
	}

	for _, p := range []struct {
		name string
		t    metrics.Timing
	}{
		{"network", s.Network},
		{"processing", s.Processing},
		{"total", s.Total},
	} {
		gauge(c.latency, p.t.Avg()/1000, p.name, "avg")
		gauge(c.latency, p.t.MinOrZero()/1000, p.name, "min")
		gauge(c.latency, p.t.Max/1000, p.name, "max")
	}

	gauge(c.bytes, float64(s.BytesRead), "read")
	gauge(c.bytes, float64(s.BytesWritten), "written")
	gauge(c.exceptions, float64(s.Exceptions))
	gauge(c.window, s.WindowSeconds(c.now()))
	gauge(c.active, s.Active)
}
