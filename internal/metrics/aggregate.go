package metrics

import (
	"strings"
	"time"

	"node-monitor/internal/constants"
)

// Summary 多个监听器汇总后的结果
type Summary struct {
	*Accumulator
	Listeners int
	Status    Status
}

// Aggregator 合并多个 Accumulator
//
// Top 决定汇总结果的路径索引和样本窗口参数，SaturationRatio 用于 NOK 判定
type Aggregator struct {
	Top             TopConfig
	SaturationRatio float64
}

func NewAggregator(top TopConfig) *Aggregator {
	return &Aggregator{Top: top.Normalize(), SaturationRatio: constants.SaturationRatio}
}

// Merge 计数和累计值相加，最小/最大值只取有观测的输入，平均值始终由 Sum/Count 重新计算
func (g *Aggregator) Merge(accs []*Accumulator, now time.Time) *Summary {
	sum := NewAccumulator("", "", g.Top, now)
	listens := make([]string, 0, len(accs))
	n := 0

	for _, a := range accs {
		if a == nil {
			continue
		}
		n++
		if a.Listen != "" {
			listens = append(listens, a.Listen)
		}
		sum.Requests += a.Requests
		for m := range a.Methods {
			sum.Methods[m] += a.Methods[m]
		}
		sum.Total.Merge(a.Total)
		sum.Network.Merge(a.Network)
		sum.Processing.Merge(a.Processing)
		sum.Active += a.Active
		sum.BytesRead += a.BytesRead
		sum.BytesWritten += a.BytesWritten
		for c := range a.Codes {
			sum.Codes[c] += a.Codes[c]
		}
		sum.Exceptions += a.Exceptions

		if a.Start.Before(sum.Start) {
			sum.Start = a.Start
		}
		if n == 1 || a.End.After(sum.End) {
			sum.End = a.End
		}

		MergeFragment(sum, a.Fragment())
	}
	sum.Listen = strings.Join(listens, ",")

	return &Summary{
		Accumulator: sum,
		Listeners:   n,
		Status:      DeriveStatus(n, sum, g.ratio()),
	}
}

func (g *Aggregator) ratio() float64 {
	if g.SaturationRatio <= 0 {
		return constants.SaturationRatio
	}
	return g.SaturationRatio
}

// Summarize 单个监听器的结果，状态按该监听器自身计算
func Summarize(a *Accumulator, ratio float64) *Summary {
	return &Summary{Accumulator: a, Listeners: 1, Status: DeriveStatus(1, a, ratio)}
}

// DeriveStatus 每次报告时重新计算，不做持久化
func DeriveStatus(listeners int, a *Accumulator, ratio float64) Status {
	switch {
	case listeners == 0 || a == nil:
		return StatusDown
	case a.Requests == 0:
		return StatusIdle
	case saturated(a.Network, ratio) || saturated(a.Processing, ratio):
		return StatusNOK
	default:
		return StatusOK
	}
}

func saturated(t Timing, ratio float64) bool {
	return t.Max > 0 && t.Avg()/t.Max > ratio
}
