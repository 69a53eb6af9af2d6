package metrics

import "math"

// MetricTree 分类 -> 标签 -> 累计值
type MetricTree map[string]map[string]float64

// Add 首次使用时创建分类
func (t MetricTree) Add(category, label string, v float64) {
	bucket, ok := t[category]
	if !ok {
		bucket = make(map[string]float64)
		t[category] = bucket
	}
	bucket[label] += v
}

func (t MetricTree) Get(category, label string) float64 {
	return t[category][label]
}

func (t MetricTree) Clone() MetricTree {
	c := make(MetricTree, len(t))
	for name, bucket := range t {
		b := make(map[string]float64, len(bucket))
		for k, v := range bucket {
			b[k] = v
		}
		c[name] = b
	}
	return c
}

// treeMerger 将片段折叠进 Accumulator
//
// 标量按最近一层 Node 的字段名作为分类；根节点下的标量没有分类，被跳过。
// 标量累加满足交换律和结合律；路径记录在索引满后依赖到达顺序。
type treeMerger struct {
	acc      *Accumulator
	category string
}

func (m *treeMerger) VisitScalar(key string, s Scalar) {
	// 根节点下的标量和非有限值都跳过
	if m.category == "" || math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
		return
	}
	m.acc.Tree.Add(m.category, key, float64(s))
}

func (m *treeMerger) VisitPath(_ string, r PathRecord) {
	m.acc.routePath(r)
}

func (m *treeMerger) VisitSamples(key string, l SampleList) {
	for _, s := range l {
		m.acc.routeSample(key, s)
	}
}

func (m *treeMerger) VisitNode(key string, n Node) {
	inner := &treeMerger{acc: m.acc, category: key}
	for _, k := range n.Keys() {
		child := n[k]
		if child == nil {
			continue
		}
		child.Accept(inner, k)
	}
}

// MergeFragment 将片段折叠进 acc
func MergeFragment(acc *Accumulator, f Fragment) {
	if f == nil {
		return
	}
	f.Accept(&treeMerger{acc: acc}, "")
}
