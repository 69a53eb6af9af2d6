package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Accumulator 单个监听器的运行统计
//
// 本身不做同步，所有写入都经由 Registry 在监听器锁内完成
type Accumulator struct {
	ID         ListenerID
	Listen     string
	CollectAll bool
	Top        TopConfig

	Requests   int64
	Methods    [methodCount]int64
	Total      Timing
	Network    Timing
	Processing Timing
	Active     float64 // 网络+处理耗时之和，秒

	BytesRead    int64
	BytesWritten int64
	Codes        [classCount]int64
	Exceptions   int64

	Start time.Time
	End   time.Time

	Paths   *PathIndex
	Samples map[string]*SampleWindow
	Tree    MetricTree

	onReject func(path string, limit int)
}

// NewAccumulator top 会先做钳制
func NewAccumulator(id ListenerID, listen string, top TopConfig, now time.Time) *Accumulator {
	top = top.Normalize()
	return &Accumulator{
		ID:      id,
		Listen:  listen,
		Top:     top,
		Start:   now,
		End:     now,
		Paths:   NewPathIndex(top.Limit, top.FloorMs()),
		Samples: make(map[string]*SampleWindow),
		Tree:    make(MetricTree),
	}
}

// OnPathReject 路径索引溢出回调，Reset 后保留
func (a *Accumulator) OnPathReject(fn func(path string, limit int)) {
	a.onReject = fn
	a.Paths.OnReject(fn)
}

// SampleWindowName 观测样本写入的窗口名
func (a *Accumulator) SampleWindowName() string {
	return "top" + strconv.Itoa(a.Top.View)
}

// Observe 记录一次已完成的请求
func (a *Accumulator) Observe(o Observation, now time.Time) {
	if m, ok := ParseMethod(o.Method); ok {
		a.Methods[m]++
	}
	a.Requests++

	// 超时请求不计入最大值
	trackMax := o.StatusCode != http.StatusRequestTimeout
	a.Total.Add(o.TotalMs, trackMax)
	a.Network.Add(o.NetworkMs, trackMax)
	a.Processing.Add(o.ProcessingMs, trackMax)
	a.Active += (o.NetworkMs + o.ProcessingMs) / 1000

	a.BytesRead += o.BytesRead
	a.BytesWritten += o.BytesWritten
	a.Codes[ClassOf(o.StatusCode)]++
	if now.After(a.End) {
		a.End = now
	}

	if o.Fragment != nil {
		MergeFragment(a, o.Fragment)
	}
	if o.Sample != nil {
		a.routeSample(a.SampleWindowName(), Sample{Rank: o.TotalMs, Payload: o.Sample})
	}
	if o.Path != "" {
		a.routePath(PathRecord{Path: o.Path, MaxTime: o.TotalMs})
	}
}

// RecordException 处理请求时出现的异常
func (a *Accumulator) RecordException() {
	a.Exceptions++
}

func (a *Accumulator) routePath(r PathRecord) InsertResult {
	if a.Top.View <= 0 {
		return PathDisabled
	}
	return a.Paths.InsertRecord(r)
}

func (a *Accumulator) routeSample(name string, s Sample) bool {
	if name == "" || a.Top.View <= 0 {
		return false
	}
	w, ok := a.Samples[name]
	if !ok {
		w = NewSampleWindow(a.Top.View, a.Top.FloorMs())
		a.Samples[name] = w
	}
	return w.Insert(s)
}

// Reset 返回清零后的新实例；preserveIdentity 时保留身份并从 now 重新开始时间窗口
func (a *Accumulator) Reset(preserveIdentity bool, now time.Time) *Accumulator {
	if !preserveIdentity {
		return NewAccumulator("", "", a.Top, now)
	}
	n := NewAccumulator(a.ID, a.Listen, a.Top, now)
	n.CollectAll = a.CollectAll
	if a.onReject != nil {
		n.OnPathReject(a.onReject)
	}
	return n
}

// Clone 深拷贝，用于不清零的报告快照
func (a *Accumulator) Clone() *Accumulator {
	c := *a
	c.Paths = a.Paths.Clone()
	c.Samples = make(map[string]*SampleWindow, len(a.Samples))
	for name, w := range a.Samples {
		c.Samples[name] = w.Clone()
	}
	c.Tree = a.Tree.Clone()
	return &c
}

// WindowSeconds 统计窗口长度
func (a *Accumulator) WindowSeconds(now time.Time) float64 {
	d := now.Sub(a.Start).Seconds()
	if d < 0 {
		return 0
	}
	return d
}

// Fragment 将通用指标、路径索引和样本窗口导出为片段，供汇总时折叠
func (a *Accumulator) Fragment() Node {
	root := Node{}
	for name, bucket := range a.Tree {
		n := root.Child(name)
		for label, v := range bucket {
			n[label] = Scalar(v)
		}
	}

	if a.Paths.Len() > 0 {
		paths := root.Child("paths")
		// 键按插入序号补零，遍历顺序即插入顺序
		for i, e := range a.Paths.Entries() {
			paths[fmt.Sprintf("#%08d", i)] = PathRecord{
				Path:    e.Path,
				MaxTime: e.MaxTime,
				Rate:    Rate(e.Rate),
				Count:   Count(e.Count),
			}
		}
	}

	if len(a.Samples) > 0 {
		samples := root.Child("samples")
		for name, w := range a.Samples {
			samples[name] = SampleList(w.Items())
		}
	}
	return root
}
