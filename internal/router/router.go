package router

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"node-monitor/internal/handler"
	"node-monitor/internal/metrics"
)

// Options 报告服务的路由参数
type Options struct {
	ReportPath     string
	AccessCode     string
	AccessCodeFunc func() string       // 不为 nil 时优先于 AccessCode，每次请求读取
	Archiver       handler.Archiver    // 为 nil 时不归档
	Gatherer       prometheus.Gatherer // 为 nil 时不注册 /metrics
}

// Source 报告服务依赖的数据接口，*metrics.Registry 实现了该接口
type Source interface {
	handler.Reporter
	Summary(flush bool) *metrics.Summary
}

// New 创建报告服务路由
//
// 报告路径大小写不敏感，末尾的 "/" 可省略
func New(src Source, opts Options) *mux.Router {
	r := mux.NewRouter()

	reportPath := "/" + strings.Trim(opts.ReportPath, "/")
	report := handler.NewReportHandler(src, opts.AccessCode, opts.Archiver)
	if opts.AccessCodeFunc != nil {
		report = handler.NewDynamicReportHandler(src, opts.AccessCodeFunc, opts.Archiver)
	}
	r.MatcherFunc(func(req *http.Request, _ *mux.RouteMatch) bool {
		return strings.EqualFold(strings.TrimSuffix(req.URL.Path, "/"), reportPath)
	}).Methods(http.MethodGet).Handler(report)

	health := handler.NewHealthHandler(src)
	r.HandleFunc("/health", health.GetHealthStatus).Methods(http.MethodGet)

	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "Not found", http.StatusNotFound)
	})
	return r
}
