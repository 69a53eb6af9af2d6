package metrics

// Timing 一组耗时的累计值，单位毫秒
//
// Count 为 0 时 Min/Max 无意义，合并时不参与比较
type Timing struct {
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int64   `json:"count"`
}

// Add 记录一次耗时；trackMax 为 false 时不更新最大值（超时请求）
func (t *Timing) Add(v float64, trackMax bool) {
	if t.Count == 0 || v < t.Min {
		t.Min = v
	}
	if trackMax && v > t.Max {
		t.Max = v
	}
	t.Sum += v
	t.Count++
}

// Merge 合并另一组耗时，空组不影响最小/最大值
func (t *Timing) Merge(o Timing) {
	if o.Count == 0 {
		return
	}
	if t.Count == 0 {
		t.Min = o.Min
		t.Max = o.Max
	} else {
		if o.Min < t.Min {
			t.Min = o.Min
		}
		if o.Max > t.Max {
			t.Max = o.Max
		}
	}
	t.Sum += o.Sum
	t.Count += o.Count
}

// Avg 总是由 Sum/Count 计算，Count 为 0 时返回 0
func (t Timing) Avg() float64 {
	if t.Count == 0 {
		return 0
	}
	return t.Sum / float64(t.Count)
}

// MinOrZero 无观测时返回 0
func (t Timing) MinOrZero() float64 {
	if t.Count == 0 {
		return 0
	}
	return t.Min
}
