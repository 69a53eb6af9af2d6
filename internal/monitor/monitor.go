package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"node-monitor/internal/constants"
)

type AlertLevel string

const (
	AlertLevelError AlertLevel = "ERROR"
	AlertLevelWarn  AlertLevel = "WARN"
	AlertLevelInfo  AlertLevel = "INFO"
)

type Alert struct {
	Level   AlertLevel
	Message string
	Time    time.Time
}

type AlertHandler interface {
	HandleAlert(alert Alert)
}

// 日志告警处理器
type LogAlertHandler struct {
	logger zerolog.Logger
}

func NewLogAlertHandler(logger zerolog.Logger) *LogAlertHandler {
	return &LogAlertHandler{logger: logger}
}

// Monitor 告警分发，实现 metrics.Notifier
//
// 相同内容在去重窗口内只发送一次，同级别告警之间至少间隔 NotifyInterval
type Monitor struct {
	alerts         chan Alert
	mu             sync.RWMutex
	handlers       []AlertHandler
	dedup          sync.Map
	lastNotify     sync.Map
	dedupeWindow   time.Duration
	notifyInterval time.Duration
	now            func() time.Time
	done           chan struct{}
	stopped        chan struct{}
	closeOnce      sync.Once
}

func NewMonitor() *Monitor {
	m := &Monitor{
		alerts:         make(chan Alert, constants.AlertQueueSize),
		handlers:       make([]AlertHandler, 0),
		dedupeWindow:   constants.AlertDedupeWindow,
		notifyInterval: constants.AlertNotifyInterval,
		now:            time.Now,
		done:           make(chan struct{}),
		stopped:        make(chan struct{}),
	}

	// 添加默认的日志处理器
	m.AddHandler(NewLogAlertHandler(log.With().Str("component", "alert").Logger()))

	// 启动告警处理
	go m.processAlerts()

	return m
}

func (m *Monitor) AddHandler(handler AlertHandler) {
	m.mu.Lock()
	m.handlers = append(m.handlers, handler)
	m.mu.Unlock()
}

// Warn 非阻塞，队列满时丢弃
func (m *Monitor) Warn(msg string) {
	m.Send(AlertLevelWarn, msg)
}

func (m *Monitor) Error(msg string) {
	m.Send(AlertLevelError, msg)
}

func (m *Monitor) Send(level AlertLevel, msg string) {
	alert := Alert{Level: level, Message: msg, Time: m.now()}
	select {
	case <-m.done:
	case m.alerts <- alert:
	default:
		log.Warn().Str("level", string(level)).Str("message", msg).Msg("[Monitor] alert queue full, alert dropped")
	}
}

// Close 停止处理，已入队的告警会处理完
func (m *Monitor) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
		<-m.stopped
	})
}

func (m *Monitor) processAlerts() {
	defer close(m.stopped)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case alert := <-m.alerts:
			m.dispatch(alert)
		case <-ticker.C:
			m.cleanup()
		case <-m.done:
			for {
				select {
				case alert := <-m.alerts:
					m.dispatch(alert)
				default:
					return
				}
			}
		}
	}
}

func (m *Monitor) dispatch(alert Alert) {
	now := m.now()

	// 检查是否在去重时间窗口内
	key := fmt.Sprintf("%s:%s", alert.Level, alert.Message)
	if last, ok := m.dedup.Load(key); ok && now.Sub(last.(time.Time)) < m.dedupeWindow {
		return
	}
	m.dedup.Store(key, now)

	// 检查是否在通知间隔内
	notifyKey := fmt.Sprintf("notify:%s", alert.Level)
	if lastTime, ok := m.lastNotify.Load(notifyKey); ok {
		if now.Sub(lastTime.(time.Time)) < m.notifyInterval {
			return
		}
	}
	m.lastNotify.Store(notifyKey, now)

	m.mu.RLock()
	handlers := m.handlers
	m.mu.RUnlock()
	for _, handler := range handlers {
		handler.HandleAlert(alert)
	}
}

// 清理过期的去重记录
func (m *Monitor) cleanup() {
	now := m.now()
	m.dedup.Range(func(key, value interface{}) bool {
		if timestamp, ok := value.(time.Time); ok {
			if now.Sub(timestamp) > m.dedupeWindow {
				m.dedup.Delete(key)
			}
		}
		return true
	})
}

// 日志处理器实现
func (h *LogAlertHandler) HandleAlert(alert Alert) {
	var ev *zerolog.Event
	switch alert.Level {
	case AlertLevelError:
		ev = h.logger.Error()
	case AlertLevelWarn:
		ev = h.logger.Warn()
	default:
		ev = h.logger.Info()
	}
	ev.Str("level", string(alert.Level)).Time("at", alert.Time).Msg("[ALERT] " + alert.Message)
}
