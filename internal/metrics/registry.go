package metrics

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "node-monitor/internal/errors"
)

// Notifier 接收路径索引溢出和状态变化告警，实现不能阻塞
type Notifier interface {
	Warn(msg string)
	Error(msg string)
}

type slot struct {
	mu  sync.Mutex
	acc *Accumulator
}

// Registry 管理所有监听器的 Accumulator
//
// 注册/注销持有写锁，观测和报告持有读锁，报告不会看到注册到一半的监听器。
// 每个监听器有独立的锁，清零通过在该锁内替换整个 Accumulator 完成。
type Registry struct {
	mu     sync.RWMutex
	slots  map[ListenerID]*slot
	order  []ListenerID
	listen map[string]ListenerID

	agg       *Aggregator
	formatter *Formatter
	now       func() time.Time
	notifier  Notifier

	statusMu   sync.Mutex
	lastStatus Status
}

type Option func(*Registry)

// WithClock 替换时钟，测试使用
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithNotifier(n Notifier) Option {
	return func(r *Registry) { r.notifier = n }
}

// WithTop 汇总结果使用的 top 参数
func WithTop(top TopConfig) Option {
	return func(r *Registry) { r.agg.Top = top.Normalize() }
}

func WithSaturationRatio(ratio float64) Option {
	return func(r *Registry) {
		if ratio > 0 {
			r.agg.SaturationRatio = ratio
		}
	}
}

// WithStartTime uptime 的起点，默认为创建时间
func WithStartTime(t time.Time) Option {
	return func(r *Registry) { r.formatter.Started = t }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		slots:      make(map[ListenerID]*slot),
		listen:     make(map[string]ListenerID),
		agg:        NewAggregator(DefaultTopConfig()),
		now:        time.Now,
		lastStatus: StatusDown,
	}
	r.formatter = NewFormatter(time.Time{})
	for _, opt := range opts {
		opt(r)
	}
	if r.formatter.Started.IsZero() {
		r.formatter.Started = r.now()
	}
	return r
}

// Register 同一监听地址只能注册一次
func (r *Registry) Register(listen string, opts RegisterOptions) (ListenerID, error) {
	listen = strings.TrimSpace(listen)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.listen[listen]; ok {
		return "", apperrors.New(apperrors.ErrDuplicateListener, "listener %s already registered", listen)
	}

	id := ListenerID(uuid.NewString())
	acc := NewAccumulator(id, listen, opts.Top, r.now())
	acc.CollectAll = opts.CollectAll
	acc.OnPathReject(r.pathRejected(listen))

	r.slots[id] = &slot{acc: acc}
	r.order = append(r.order, id)
	r.listen[listen] = id

	log.Info().
		Str("listener", string(id)).
		Str("listen", listen).
		Bool("collect_all", opts.CollectAll).
		Int("top_view", acc.Top.View).
		Int("top_limit", acc.Top.Limit).
		Msg("[Registry] listener registered")
	return id, nil
}

// Deregister 注销最后一个监听器后回到 DOWN 状态
func (r *Registry) Deregister(id ListenerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[id]
	if !ok {
		return false
	}
	delete(r.slots, id)
	delete(r.listen, s.acc.Listen)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	log.Info().Str("listener", string(id)).Int("remaining", len(r.order)).Msg("[Registry] listener deregistered")
	return true
}

// Observe 未注册的监听器返回 false
func (r *Registry) Observe(id ListenerID, o Observation) bool {
	return r.withSlot(id, func(s *slot, now time.Time) {
		s.acc.Observe(o, now)
	})
}

// RecordException 记录一次未处理的异常
func (r *Registry) RecordException(id ListenerID) bool {
	return r.withSlot(id, func(s *slot, _ time.Time) {
		s.acc.RecordException()
	})
}

// Reset 清零单个监听器
func (r *Registry) Reset(id ListenerID) bool {
	return r.withSlot(id, func(s *slot, now time.Time) {
		s.acc = s.acc.Reset(true, now)
	})
}

// CollectAll 监听器是否收集扩展信息
func (r *Registry) CollectAll(id ListenerID) bool {
	var collect bool
	r.withSlot(id, func(s *slot, _ time.Time) {
		collect = s.acc.CollectAll
	})
	return collect
}

func (r *Registry) withSlot(id ListenerID, fn func(s *slot, now time.Time)) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.slots[id]
	if !ok {
		return false
	}
	s.mu.Lock()
	fn(s, r.now())
	s.mu.Unlock()
	return true
}

// Configure 替换汇总使用的 top 参数和饱和比，已注册监听器的参数不变
func (r *Registry) Configure(top TopConfig, ratio float64) {
	agg := NewAggregator(top)
	if ratio > 0 {
		agg.SaturationRatio = ratio
	}

	r.mu.Lock()
	r.agg = agg
	r.mu.Unlock()

	log.Info().
		Int("top_view", agg.Top.View).
		Int("top_limit", agg.Top.Limit).
		Str("sort_by", string(agg.Top.SortBy)).
		Float64("saturation_ratio", agg.SaturationRatio).
		Msg("[Registry] summary config updated")
}

// aggregator Aggregator 创建后不再修改，只会被整体替换
func (r *Registry) aggregator() *Aggregator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.agg
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// snapshot 按注册顺序取快照；flush 时原子替换为清零后的实例
func (r *Registry) snapshot(flush bool, now time.Time) []*Accumulator {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Accumulator, 0, len(r.order))
	for _, id := range r.order {
		s := r.slots[id]
		s.mu.Lock()
		if flush {
			out = append(out, s.acc)
			s.acc = s.acc.Reset(true, now)
		} else {
			out = append(out, s.acc.Clone())
		}
		s.mu.Unlock()
	}
	return out
}

// Summary 合并所有监听器
func (r *Registry) Summary(flush bool) *Summary {
	return r.summaryAt(flush, r.now())
}

func (r *Registry) summaryAt(flush bool, now time.Time) *Summary {
	s := r.aggregator().Merge(r.snapshot(flush, now), now)
	// 只有清零的报告推进状态，/health 和 /metrics 的读取不影响告警
	if flush {
		r.checkStatus(s)
	}
	return s
}

// Report 汇总报告行
func (r *Registry) Report(flush bool) string {
	now := r.now()
	return r.formatter.Format(r.summaryAt(flush, now), now)
}

// ReportAll 每个监听器一行，状态按监听器各自计算
func (r *Registry) ReportAll(flush bool) string {
	now := r.now()
	ratio := r.aggregator().ratio()
	var b strings.Builder
	for _, acc := range r.snapshot(flush, now) {
		b.WriteString(r.formatter.Format(Summarize(acc, ratio), now))
		b.WriteByte('\n')
	}
	return b.String()
}

// ReportListener 单个监听器的报告行，不清零
func (r *Registry) ReportListener(id ListenerID) (string, bool) {
	var acc *Accumulator
	ok := r.withSlot(id, func(s *slot, _ time.Time) {
		acc = s.acc.Clone()
	})
	if !ok {
		return "", false
	}
	now := r.now()
	return r.formatter.Format(Summarize(acc, r.aggregator().ratio()), now), true
}

// checkStatus 相邻两次清零报告之间状态进入 NOK/DOWN 时告警
func (r *Registry) checkStatus(s *Summary) {
	r.statusMu.Lock()
	prev := r.lastStatus
	r.lastStatus = s.Status
	r.statusMu.Unlock()

	if prev == s.Status {
		return
	}
	log.Debug().Str("from", string(prev)).Str("to", string(s.Status)).Msg("[Registry] status changed")
	if r.notifier == nil {
		return
	}
	switch s.Status {
	case StatusNOK:
		r.notifier.Warn(fmt.Sprintf("服务延迟接近峰值 (listen: %s, avr_net: %.3fs, max_net: %.3fs, avr_resp: %.3fs, max_resp: %.3fs)",
			s.Listen, s.Network.Avg()/1000, s.Network.Max/1000, s.Processing.Avg()/1000, s.Processing.Max/1000))
	case StatusDown:
		r.notifier.Error("没有已注册的监听器")
	}
}

func (r *Registry) pathRejected(listen string) func(path string, limit int) {
	return func(path string, limit int) {
		log.Warn().
			Str("listen", listen).
			Str("path", path).
			Int("limit", limit).
			Msg("[Registry] path index full, path dropped")
		if r.notifier != nil {
			r.notifier.Warn(fmt.Sprintf("路径统计数量超过上限 %d (listen: %s)", limit, listen))
		}
	}
}
