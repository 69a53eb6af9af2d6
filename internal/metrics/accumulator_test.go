package metrics

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func obs(method string, totalMs float64, code int) Observation {
	return Observation{
		Method:       method,
		TotalMs:      totalMs,
		NetworkMs:    totalMs / 2,
		ProcessingMs: totalMs / 2,
		StatusCode:   code,
	}
}

func TestAccumulatorTimeoutExcludedFromMax(t *testing.T) {
	acc := NewAccumulator("id", "127.0.0.1:8080", DefaultTopConfig(), t0)

	acc.Observe(obs("GET", 100, 200), t0.Add(time.Second))
	acc.Observe(obs("GET", 300, 500), t0.Add(2*time.Second))
	acc.Observe(obs("POST", 200, 408), t0.Add(3*time.Second))

	assert.Equal(t, int64(3), acc.Requests)
	assert.Equal(t, 600.0, acc.Total.Sum)
	assert.Equal(t, int64(3), acc.Total.Count)
	assert.Equal(t, 200.0, acc.Total.Avg())
	assert.Equal(t, 100.0, acc.Total.Min)
	assert.Equal(t, 300.0, acc.Total.Max)

	assert.Equal(t, int64(1), acc.Codes[Class2xx])
	assert.Equal(t, int64(1), acc.Codes[Class5xx])
	assert.Equal(t, int64(1), acc.Codes[ClassTimeout])
	assert.Equal(t, int64(0), acc.Codes[Class4xx])

	assert.Equal(t, int64(2), acc.Methods[MethodGet])
	assert.Equal(t, int64(1), acc.Methods[MethodPost])
	assert.Equal(t, t0.Add(3*time.Second), acc.End)
	assert.InDelta(t, 0.6, acc.Active, 1e-9)
}

func TestAccumulatorTimeoutStillCountsTowardMin(t *testing.T) {
	acc := NewAccumulator("id", "l", DefaultTopConfig(), t0)
	acc.Observe(obs("GET", 500, 200), t0)
	acc.Observe(obs("GET", 50, 408), t0)
	acc.Observe(obs("GET", 5000, 408), t0)

	assert.Equal(t, 50.0, acc.Total.Min)
	assert.Equal(t, 500.0, acc.Total.Max)
	assert.Equal(t, int64(3), acc.Total.Count)
}

func TestAccumulatorUnknownMethodCountsOnlyTotal(t *testing.T) {
	acc := NewAccumulator("id", "l", DefaultTopConfig(), t0)
	acc.Observe(obs("PATCH", 10, 200), t0)

	assert.Equal(t, int64(1), acc.Requests)
	var methods int64
	for _, n := range acc.Methods {
		methods += n
	}
	assert.Equal(t, int64(0), methods)
}

func TestAccumulatorMatchesReplay(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	methods := []string{"GET", "POST", "PUT", "DELETE", "HEAD", "OPTIONS", "TRACE"}
	codes := []int{100, 200, 204, 301, 404, 408, 500, 503}

	seq := make([]Observation, 500)
	for i := range seq {
		o := obs(methods[rng.Intn(len(methods))], float64(rng.Intn(3000)), codes[rng.Intn(len(codes))])
		o.BytesRead = int64(rng.Intn(1024))
		o.BytesWritten = int64(rng.Intn(4096))
		seq[i] = o
	}

	a := NewAccumulator("a", "l", DefaultTopConfig(), t0)
	b := NewAccumulator("b", "l", DefaultTopConfig(), t0)
	for _, o := range seq {
		a.Observe(o, t0)
		b.Observe(o, t0)
	}

	// 参考实现：逐条重放
	var (
		sum, max      float64
		min           = seq[0].TotalMs
		read, written int64
		classes       [classCount]int64
	)
	for _, o := range seq {
		sum += o.TotalMs
		if o.TotalMs < min {
			min = o.TotalMs
		}
		if o.StatusCode != 408 && o.TotalMs > max {
			max = o.TotalMs
		}
		read += o.BytesRead
		written += o.BytesWritten
		classes[ClassOf(o.StatusCode)]++
	}

	assert.Equal(t, int64(len(seq)), a.Requests)
	assert.Equal(t, sum, a.Total.Sum)
	assert.Equal(t, min, a.Total.Min)
	assert.Equal(t, max, a.Total.Max)
	assert.Equal(t, read, a.BytesRead)
	assert.Equal(t, written, a.BytesWritten)
	assert.Equal(t, classes, a.Codes)

	assert.Equal(t, a.Total, b.Total)
	assert.Equal(t, a.Network, b.Network)
	assert.Equal(t, a.Processing, b.Processing)
	assert.Equal(t, a.Methods, b.Methods)
}

func TestAccumulatorRoutesPathsAndSamples(t *testing.T) {
	acc := NewAccumulator("id", "l", DefaultTopConfig(), t0)

	o := obs("GET", 1500, 200)
	o.Path = "/api/orders/"
	o.Sample = map[string]string{"ip": "10.0.0.1"}
	acc.Observe(o, t0)

	fast := obs("GET", 20, 200)
	fast.Path = "/api/fast/"
	fast.Sample = map[string]string{"ip": "10.0.0.2"}
	acc.Observe(fast, t0)

	require.Equal(t, 1, acc.Paths.Len())
	assert.Equal(t, "/api/orders/", acc.Paths.Entries()[0].Path)

	w, ok := acc.Samples["top3"]
	require.True(t, ok)
	assert.Equal(t, 1, w.Len())
	assert.Equal(t, 1500.0, w.Items()[0].Rank)
}

func TestAccumulatorViewZeroDisablesTop(t *testing.T) {
	top := DefaultTopConfig()
	top.View = 0
	acc := NewAccumulator("id", "l", top, t0)

	o := obs("GET", 5000, 200)
	o.Path = "/slow/"
	o.Sample = "x"
	acc.Observe(o, t0)

	assert.Equal(t, 0, acc.Paths.Len())
	assert.Empty(t, acc.Samples)
}

func TestAccumulatorMergesFragment(t *testing.T) {
	acc := NewAccumulator("id", "l", DefaultTopConfig(), t0)

	o := obs("GET", 10, 200)
	o.Fragment = Node{
		"platform": Node{"ios": Scalar(1)},
		"version":  Node{"1.2": Scalar(1)},
	}
	acc.Observe(o, t0)
	acc.Observe(o, t0)

	assert.Equal(t, 2.0, acc.Tree.Get("platform", "ios"))
	assert.Equal(t, 2.0, acc.Tree.Get("version", "1.2"))
}

func TestAccumulatorReset(t *testing.T) {
	acc := NewAccumulator("id", "127.0.0.1:80", DefaultTopConfig(), t0)
	acc.CollectAll = true
	o := obs("GET", 2000, 200)
	o.Path = "/a/"
	acc.Observe(o, t0.Add(time.Second))
	acc.RecordException()

	later := t0.Add(time.Minute)
	fresh := acc.Reset(true, later)

	assert.Equal(t, ListenerID("id"), fresh.ID)
	assert.Equal(t, "127.0.0.1:80", fresh.Listen)
	assert.True(t, fresh.CollectAll)
	assert.Equal(t, later, fresh.Start)
	assert.Equal(t, int64(0), fresh.Requests)
	assert.Equal(t, int64(0), fresh.Exceptions)
	assert.Equal(t, 0, fresh.Paths.Len())

	// 原实例不受影响
	assert.Equal(t, int64(1), acc.Requests)

	anon := acc.Reset(false, later)
	assert.Empty(t, anon.ID)
	assert.Empty(t, anon.Listen)
}

func TestAccumulatorCloneIsIndependent(t *testing.T) {
	acc := NewAccumulator("id", "l", DefaultTopConfig(), t0)
	o := obs("GET", 2000, 200)
	o.Path = "/a/"
	o.Sample = "s"
	o.Fragment = Node{"platform": Node{"web": Scalar(1)}}
	acc.Observe(o, t0)

	c := acc.Clone()
	o.Path = "/b/"
	acc.Observe(o, t0)

	assert.Equal(t, int64(1), c.Requests)
	assert.Equal(t, 1, c.Paths.Len())
	assert.Equal(t, 1, c.Samples["top3"].Len())
	assert.Equal(t, 1.0, c.Tree.Get("platform", "web"))
	assert.Equal(t, 2, acc.Paths.Len())
}

func TestAccumulatorFragmentRoundTrip(t *testing.T) {
	src := NewAccumulator("id", "l", DefaultTopConfig(), t0)
	for _, p := range []string{"/a/", "/b/", "/a/"} {
		o := obs("GET", 1200, 200)
		o.Path = p
		o.Sample = p
		o.Fragment = Node{"platform": Node{"web": Scalar(1)}}
		src.Observe(o, t0)
	}

	dst := NewAccumulator("", "", DefaultTopConfig(), t0)
	MergeFragment(dst, src.Fragment())

	assert.Equal(t, src.Tree, dst.Tree)
	assert.Equal(t, src.Paths.Entries()[0].Path, dst.Paths.Entries()[0].Path)
	assert.Equal(t, src.Paths.Top(3, SortByCount, 1), dst.Paths.Top(3, SortByCount, 1))
	assert.Equal(t, src.Samples["top3"].Items(), dst.Samples["top3"].Items())
}
