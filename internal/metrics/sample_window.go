package metrics

import "sort"

// Sample 带排序值的样本，Rank 单位毫秒
type Sample struct {
	Rank    float64
	Payload any
}

// SampleWindow 保留 Rank 最大的 N 个样本，始终降序
//
// N 很小，插入后整体重排即可
type SampleWindow struct {
	limit int
	floor float64
	items []Sample
}

func NewSampleWindow(limit int, floorMs float64) *SampleWindow {
	return &SampleWindow{limit: limit, floor: floorMs}
}

// Insert 低于下限或窗口关闭时返回 false
func (w *SampleWindow) Insert(s Sample) bool {
	if w.limit <= 0 || s.Rank < w.floor {
		return false
	}
	w.items = append(w.items, s)
	// 稳定排序，值相同时先到的排前面
	sort.SliceStable(w.items, func(i, j int) bool {
		return w.items[i].Rank > w.items[j].Rank
	})
	if len(w.items) > w.limit {
		w.items = w.items[:w.limit]
	}
	return true
}

func (w *SampleWindow) Len() int {
	return len(w.items)
}

// Items 返回副本
func (w *SampleWindow) Items() []Sample {
	out := make([]Sample, len(w.items))
	copy(out, w.items)
	return out
}

func (w *SampleWindow) Clone() *SampleWindow {
	return &SampleWindow{limit: w.limit, floor: w.floor, items: w.Items()}
}
