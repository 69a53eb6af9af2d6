package metrics

import "sort"

// Fragment 附加在观测记录上的指标片段
//
// 四种形态：Scalar、PathRecord、SampleList、Node。
// 新增形态必须同时扩展 FragmentVisitor，遗漏会在编译期暴露。
type Fragment interface {
	Accept(v FragmentVisitor, key string)
}

// FragmentVisitor key 为片段在父节点中的字段名，根节点为空串
type FragmentVisitor interface {
	VisitScalar(key string, s Scalar)
	VisitPath(key string, r PathRecord)
	VisitSamples(key string, l SampleList)
	VisitNode(key string, n Node)
}

// Scalar 数值叶子，累加到 (分类, 标签)
type Scalar float64

// PathRecord 路径记录，路由到路径索引
type PathRecord struct {
	Path    string
	MaxTime float64 // 毫秒
	Rate    *float64
	Count   *int64
}

// SampleList 样本列表，路由到以字段名命名的样本窗口
type SampleList []Sample

// Node 嵌套映射，nil 子节点被跳过
type Node map[string]Fragment

func (s Scalar) Accept(v FragmentVisitor, key string)     { v.VisitScalar(key, s) }
func (r PathRecord) Accept(v FragmentVisitor, key string) { v.VisitPath(key, r) }
func (l SampleList) Accept(v FragmentVisitor, key string) { v.VisitSamples(key, l) }
func (n Node) Accept(v FragmentVisitor, key string)       { v.VisitNode(key, n) }

// Keys 子节点键的字典序，保证遍历顺序确定
func (n Node) Keys() []string {
	keys := make([]string, 0, len(n))
	for k := range n {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Child 取子节点，不存在时创建
func (n Node) Child(key string) Node {
	if c, ok := n[key].(Node); ok {
		return c
	}
	c := Node{}
	n[key] = c
	return c
}

// Count 包装计数，便于构造 PathRecord
func Count(n int64) *int64 { return &n }

// Rate 包装累计耗时，便于构造 PathRecord
func Rate(f float64) *float64 { return &f }
