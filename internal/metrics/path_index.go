package metrics

import (
	"sort"

	"node-monitor/internal/utils"
)

// PathEntry 单条路径的慢请求统计，时间单位毫秒
type PathEntry struct {
	Hash    int32
	Path    string
	Count   int64
	Rate    float64 // 累计耗时，展示时除以 Count
	MaxTime float64
	seq     uint64
}

// PathView 报告中的一条路径
type PathView struct {
	Path    string
	MaxTime float64 // 毫秒
	Rate    float64 // 平均耗时，毫秒
	Count   int64
	Load    float64 // 每秒请求数
}

// InsertResult 路径写入结果
type InsertResult int

const (
	PathInserted InsertResult = iota
	PathUpdated
	PathBelowFloor
	PathRejected  // 容量已满
	PathCollision // 哈希相同但路径不同，更新被丢弃
	PathDisabled
)

// PathIndex 以路径哈希为键的有界索引
//
// 不是并发安全的，由所属的 Accumulator 串行访问
type PathIndex struct {
	limit    int
	floor    float64
	entries  map[int32]*PathEntry
	seq      uint64
	onReject func(path string, limit int)
}

// NewPathIndex limit 为容量，floorMs 为准入下限
func NewPathIndex(limit int, floorMs float64) *PathIndex {
	return &PathIndex{
		limit:   limit,
		floor:   floorMs,
		entries: make(map[int32]*PathEntry),
	}
}

// OnReject 设置容量溢出时的回调
func (p *PathIndex) OnReject(fn func(path string, limit int)) {
	p.onReject = fn
}

// Insert 记录一次请求耗时
func (p *PathIndex) Insert(path string, durationMs float64) InsertResult {
	return p.InsertRecord(PathRecord{Path: path, MaxTime: durationMs})
}

// InsertRecord 写入一条路径记录；Rate/Count 为空时按单次请求处理
func (p *PathIndex) InsertRecord(r PathRecord) InsertResult {
	if p.limit <= 0 {
		return PathDisabled
	}
	if r.MaxTime < p.floor {
		return PathBelowFloor
	}

	rate := r.MaxTime
	if r.Rate != nil {
		rate = *r.Rate
	}
	count := int64(1)
	if r.Count != nil {
		count = *r.Count
	}

	h := utils.HashCode(r.Path)
	if e, ok := p.entries[h]; ok {
		// 碰撞时只做字符串比对，不另行存储
		if e.Path != r.Path {
			return PathCollision
		}
		e.Count += count
		e.Rate += rate
		if r.MaxTime > e.MaxTime {
			e.MaxTime = r.MaxTime
		}
		return PathUpdated
	}

	if len(p.entries) >= p.limit {
		if p.onReject != nil {
			p.onReject(r.Path, p.limit)
		}
		return PathRejected
	}

	p.seq++
	p.entries[h] = &PathEntry{
		Hash:    h,
		Path:    r.Path,
		Count:   count,
		Rate:    rate,
		MaxTime: r.MaxTime,
		seq:     p.seq,
	}
	return PathInserted
}

func (p *PathIndex) Len() int {
	return len(p.entries)
}

// Entries 按插入顺序返回副本
func (p *PathIndex) Entries() []PathEntry {
	out := make([]PathEntry, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Top 按排序字段降序取前 view 条，值相同时保持插入顺序
func (p *PathIndex) Top(view int, key SortKey, windowSeconds float64) []PathView {
	if view <= 0 || len(p.entries) == 0 {
		return nil
	}

	entries := p.Entries()
	views := make([]PathView, len(entries))
	for i, e := range entries {
		views[i] = PathView{
			Path:    e.Path,
			MaxTime: e.MaxTime,
			Rate:    utils.SafeDiv(e.Rate, float64(e.Count)),
			Count:   e.Count,
			Load:    utils.SafeDiv(float64(e.Count), windowSeconds),
		}
	}

	sort.SliceStable(views, func(i, j int) bool {
		return sortValue(views[i], key) > sortValue(views[j], key)
	})

	if len(views) > view {
		views = views[:view]
	}
	return views
}

func sortValue(v PathView, key SortKey) float64 {
	switch key {
	case SortByRate:
		return v.Rate
	case SortByCount:
		return float64(v.Count)
	case SortByLoad:
		return v.Load
	default:
		return v.MaxTime
	}
}

// Clone 深拷贝，回调一并保留
func (p *PathIndex) Clone() *PathIndex {
	c := &PathIndex{
		limit:    p.limit,
		floor:    p.floor,
		entries:  make(map[int32]*PathEntry, len(p.entries)),
		seq:      p.seq,
		onReject: p.onReject,
	}
	for h, e := range p.entries {
		cp := *e
		c.entries[h] = &cp
	}
	return c
}
