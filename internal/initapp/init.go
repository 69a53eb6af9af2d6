package initapp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/netutil"

	"node-monitor/internal/config"
	"node-monitor/internal/constants"
	"node-monitor/internal/exporter"
	"node-monitor/internal/handler"
	"node-monitor/internal/metrics"
	"node-monitor/internal/middleware"
	"node-monitor/internal/monitor"
	"node-monitor/internal/router"
	"node-monitor/pkg/archive"
)

// App 报告服务与被监控服务的组合
type App struct {
	cfg      *config.Config
	Registry *metrics.Registry
	Alerts   *monitor.Monitor

	accessCode atomic.Value // string

	report   *http.Server
	reportLn net.Listener
	servers  []*monitoredServer
	wg       sync.WaitGroup
}

type monitoredServer struct {
	name string
	id   metrics.ListenerID
	srv  *http.Server
	ln   net.Listener
}

// New 按配置组装各组件，尚未开始监听
func New(cfg *config.Config) (*App, error) {
	log.Info().Msg("[Init] 开始初始化应用程序...")

	alerts := monitor.NewMonitor()
	if cfg.Alert.FeishuWebhook != "" {
		alerts.AddHandler(monitor.NewFeishuHandler(cfg.Alert.FeishuWebhook))
		log.Info().Msg("[Init] 已启用飞书告警")
	}

	reg := metrics.NewRegistry(
		metrics.WithNotifier(alerts),
		metrics.WithTop(metrics.ParseTopConfig(cfg.Monitor.Top)),
		metrics.WithSaturationRatio(constants.SaturationRatio),
	)

	prom := prometheus.NewRegistry()
	if err := prom.Register(exporter.NewCollector(reg)); err != nil {
		alerts.Close()
		return nil, fmt.Errorf("register exporter: %w", err)
	}
	prom.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var archiver handler.Archiver
	if cfg.Archive.Enabled {
		if a, err := newArchiver(cfg.Archive); err != nil {
			log.Error().Err(err).Msg("[Init] 报告归档初始化失败，已禁用")
		} else {
			archiver = a
		}
	}

	app := &App{
		cfg:      cfg,
		Registry: reg,
		Alerts:   alerts,
	}
	app.accessCode.Store(constants.ReportAccessCode)

	routes := router.New(reg, router.Options{
		ReportPath:     constants.ReportPath,
		AccessCodeFunc: app.AccessCode,
		Archiver:       archiver,
		Gatherer:       prom,
	})
	app.report = &http.Server{
		Handler:           routes,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().Msg("[Init] 应用程序初始化完成")
	return app, nil
}

func newArchiver(cfg config.ArchiveConfig) (*archive.Archiver, error) {
	s3cfg, err := archive.NewConfigFromEnv()
	if err != nil {
		return nil, err
	}
	client, err := archive.NewS3Client(context.Background(), s3cfg)
	if err != nil {
		return nil, err
	}
	log.Info().Str("bucket", s3cfg.Bucket).Str("prefix", cfg.Prefix).Msg("[Init] 已启用报告归档")
	return archive.New(client, cfg.Prefix, constants.ArchiveTimeout), nil
}

// AccessCode 当前的报告访问码
func (a *App) AccessCode() string {
	return a.accessCode.Load().(string)
}

// ApplyConfig 配置重载回调：更新汇总参数和访问码
//
// 监听地址、报告路径和被监控服务需要重启才能生效
func (a *App) ApplyConfig(cfg *config.Config) {
	a.Registry.Configure(metrics.ParseTopConfig(cfg.Monitor.Top), cfg.Monitor.SaturationRatio)
	if cfg.Report.AccessCode != "" {
		a.accessCode.Store(cfg.Report.AccessCode)
	}
	log.Info().Msg("[Init] 配置已应用")
}

// Start 启动报告服务和所有被监控服务
func (a *App) Start() error {
	ln, err := net.Listen("tcp", constants.ReportListen)
	if err != nil {
		return fmt.Errorf("listen report %s: %w", constants.ReportListen, err)
	}
	if constants.ReportMaxConns > 0 {
		ln = netutil.LimitListener(ln, constants.ReportMaxConns)
	}
	a.reportLn = ln
	a.serve("report", a.report, ln)
	log.Info().Str("addr", ln.Addr().String()).Str("path", constants.ReportPath).Msg("[Report] 报告服务已启动")

	for _, sc := range a.cfg.Servers {
		if err := a.startServer(sc); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) startServer(sc config.ServerConfig) error {
	ln, err := net.Listen("tcp", sc.Listen)
	if err != nil {
		return fmt.Errorf("listen %s (%s): %w", sc.Name, sc.Listen, err)
	}

	opts := metrics.ParseRegisterOptions(sc.Options)
	id, err := a.Registry.Register(ln.Addr().String(), opts)
	if err != nil {
		ln.Close()
		return fmt.Errorf("register %s: %w", sc.Name, err)
	}

	srv := &http.Server{
		Handler:           middleware.Monitor(a.Registry, id, opts.CollectAll)(messageHandler(sc.Message)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.servers = append(a.servers, &monitoredServer{name: sc.Name, id: id, srv: srv, ln: ln})
	a.serve(sc.Name, srv, ln)

	log.Info().Str("name", sc.Name).Str("addr", ln.Addr().String()).Msg("[Init] 被监控服务已启动")
	return nil
}

func (a *App) serve(name string, srv *http.Server, ln net.Listener) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("server", name).Msg("[Init] 服务异常退出")
		}
	}()
}

// messageHandler 被监控服务的默认响应
func messageHandler(msg string) http.Handler {
	if msg == "" {
		msg = "ok"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(msg))
	})
}

// ReportAddr 报告服务的实际监听地址
func (a *App) ReportAddr() string {
	if a.reportLn == nil {
		return ""
	}
	return a.reportLn.Addr().String()
}

// ServerAddrs 被监控服务的实际监听地址，按配置顺序
func (a *App) ServerAddrs() []string {
	out := make([]string, 0, len(a.servers))
	for _, s := range a.servers {
		out = append(out, s.ln.Addr().String())
	}
	return out
}

// Shutdown 先停被监控服务并注销，再停报告服务
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	for _, s := range a.servers {
		if err := s.srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", s.name, err))
		}
		a.Registry.Deregister(s.id)
	}
	if err := a.report.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown report: %w", err))
	}
	a.wg.Wait()
	a.Alerts.Close()
	return errors.Join(errs...)
}
