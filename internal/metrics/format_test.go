package metrics

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func formattedScenario(t *testing.T) (*Accumulator, string) {
	t.Helper()
	acc := NewAccumulator("id", "127.0.0.1:8080", DefaultTopConfig(), t0)

	records := []struct {
		method string
		total  float64
		code   int
	}{
		{"GET", 100, 200},
		{"GET", 300, 500},
		{"POST", 200, 408},
	}
	for _, r := range records {
		o := obs(r.method, r.total, r.code)
		o.BytesRead = 2000
		o.BytesWritten = 8000
		o.Fragment = Node{"platform": Node{"ios": Scalar(1)}}
		acc.Observe(o, t0)
	}
	acc.RecordException()

	f := NewFormatter(t0.Add(-time.Hour))
	now := t0.Add(10 * time.Second)
	return acc, f.Format(Summarize(acc, 0.9), now)
}

func TestFormatLineLayout(t *testing.T) {
	_, line := formattedScenario(t)

	head, _, ok := strings.Cut(line, " | ")
	require.True(t, ok)
	assert.Equal(t,
		"status:OK;uptime:01.00.10;avr_net:0.100;max_net:0.150;avr_resp:0.100;max_resp:0.150;"+
			"avr_total:0.200;max_total:0.300;in_rate:0.600;out_rate:2.400;active:6.00;load:0.300",
		head)
}

func TestFormatRoundsHalfUp(t *testing.T) {
	acc := NewAccumulator("id", "l", DefaultTopConfig(), t0)
	for _, net := range []float64{62, 63} {
		acc.Observe(Observation{Method: "GET", NetworkMs: net, ProcessingMs: 10, TotalMs: net + 10, StatusCode: 200}, t0)
	}

	line := NewFormatter(t0).Format(Summarize(acc, 0.9), t0.Add(time.Second))
	r, err := ParseLine(line)
	require.NoError(t, err)

	assert.Contains(t, line, ";avr_net:0.063;")
	assert.Contains(t, line, ";max_net:0.063;")
	assert.Equal(t, 0.063, r.Values["avr_net"])
}

func TestFormatSkipsNonFiniteScalars(t *testing.T) {
	acc := NewAccumulator("id", "127.0.0.1:8080", DefaultTopConfig(), t0)
	o := obs("GET", 100, 200)
	o.Fragment = Node{
		"cpu":      Node{"load": Scalar(math.Inf(1)), "idle": Scalar(math.NaN())},
		"platform": Node{"ios": Scalar(1)},
	}
	acc.Observe(o, t0)

	line := NewFormatter(t0).Format(Summarize(acc, 0.9), t0.Add(time.Second))
	r, err := ParseLine(line)
	require.NoError(t, err)

	assert.False(t, gjson.Get(r.Payload, "cpu").Exists())
	assert.Equal(t, int64(1), gjson.Get(r.Payload, "platform.ios").Int())
	assert.Equal(t, int64(1), gjson.Get(r.Payload, "codes.2xx").Int())
	assert.Equal(t, "1.000", gjson.Get(r.Payload, "mon_time").String())
	assert.Equal(t, "{127.0.0.1:8080}", gjson.Get(r.Payload, "listen").String())
}

func TestFormatKeepsLineOnPayloadError(t *testing.T) {
	acc := NewAccumulator("id", "l", DefaultTopConfig(), t0)
	o := obs("GET", 1500, 200)
	o.Sample = make(chan int)
	acc.Observe(o, t0)

	line := NewFormatter(t0).Format(Summarize(acc, 0.9), t0.Add(time.Second))
	r, err := ParseLine(line)
	require.NoError(t, err)
	assert.Equal(t, StatusNOK, r.Status)
	assert.Equal(t, "{}", r.Payload)
}

func TestFormatRoundTrip(t *testing.T) {
	acc, line := formattedScenario(t)

	r, err := ParseLine(line)
	require.NoError(t, err)

	window := 10.0
	want := map[string]float64{
		"avr_net":   acc.Network.Avg() / 1000,
		"max_net":   acc.Network.Max / 1000,
		"avr_resp":  acc.Processing.Avg() / 1000,
		"max_resp":  acc.Processing.Max / 1000,
		"avr_total": acc.Total.Avg() / 1000,
		"max_total": acc.Total.Max / 1000,
		"in_rate":   float64(acc.BytesRead) / window / 1000,
		"out_rate":  float64(acc.BytesWritten) / window / 1000,
		"active":    acc.Active / window * 100,
		"load":      float64(acc.Requests) / window,
	}
	for k, v := range want {
		prec := 0.0005
		if k == "active" {
			prec = 0.005
		}
		assert.InDelta(t, v, r.Values[k], prec, k)
	}
	assert.Equal(t, StatusOK, r.Status)
	assert.Equal(t, "01.00.10", r.Uptime)
}

func TestFormatPayload(t *testing.T) {
	_, line := formattedScenario(t)
	r, err := ParseLine(line)
	require.NoError(t, err)
	p := r.Payload

	assert.Equal(t, int64(3), gjson.Get(p, "platform.total").Int())
	assert.Equal(t, int64(3), gjson.Get(p, "platform.ios").Int())
	assert.Equal(t, int64(1), gjson.Get(p, "codes.2xx").Int())
	assert.Equal(t, int64(1), gjson.Get(p, "codes.5xx").Int())
	assert.Equal(t, int64(1), gjson.Get(p, "codes.408").Int())
	assert.Equal(t, int64(0), gjson.Get(p, "codes.4xx").Int())
	assert.Equal(t, "66.7", gjson.Get(p, "get").String())
	assert.Equal(t, "33.3", gjson.Get(p, "post").String())
	assert.Equal(t, "0.0", gjson.Get(p, "trace").String())
	assert.Equal(t, "33.3", gjson.Get(p, "2xx").String())
	assert.Equal(t, int64(1), gjson.Get(p, "exc").Int())
	assert.Equal(t, "10.000", gjson.Get(p, "mon_time").String())
	assert.Equal(t, "{127.0.0.1:8080}", gjson.Get(p, "listen").String())
}

func TestFormatTopPaths(t *testing.T) {
	acc := NewAccumulator("id", "l", DefaultTopConfig(), t0)
	for _, r := range []struct {
		path  string
		total float64
	}{
		{"/a/", 1500}, {"/b/", 4000}, {"/c/", 2500}, {"/d/", 1200}, {"/a/", 2500},
	} {
		o := obs("GET", r.total, 200)
		o.Path = r.path
		acc.Observe(o, t0)
	}

	line := NewFormatter(t0).Format(Summarize(acc, 0.9), t0.Add(2*time.Second))
	r, err := ParseLine(line)
	require.NoError(t, err)

	top := gjson.Parse(r.Payload).Map()["sorted by 'max_time' (top 3)"]
	require.True(t, top.IsArray())
	list := top.Array()
	require.Len(t, list, 3)

	assert.Equal(t, "/b/", list[0].Get("path").String())
	assert.Equal(t, "4.000", list[0].Get("max_time").String())
	assert.Equal(t, "/a/", list[1].Get("path").String())
	assert.Equal(t, "2.500", list[1].Get("max_time").String())
	assert.Equal(t, "2.000", list[1].Get("rate").String())
	assert.Equal(t, "1.000", list[1].Get("load").String())
	assert.Equal(t, int64(2), list[1].Get("count").Int())
	assert.Equal(t, "/c/", list[2].Get("path").String())

	// 渲染不修改原数据
	assert.Equal(t, 4, acc.Paths.Len())
	assert.Equal(t, line, NewFormatter(t0).Format(Summarize(acc, 0.9), t0.Add(2*time.Second)))
}

func TestFormatSamples(t *testing.T) {
	acc := NewAccumulator("id", "l", DefaultTopConfig(), t0)
	o := obs("GET", 1500, 200)
	o.Sample = map[string]string{"ip": "10.0.0.1", "host": "example.com"}
	acc.Observe(o, t0)

	line := NewFormatter(t0).Format(Summarize(acc, 0.9), t0.Add(time.Second))
	r, err := ParseLine(line)
	require.NoError(t, err)

	assert.Equal(t, 1.5, gjson.Get(r.Payload, "top3.0.t").Float())
	assert.Equal(t, "10.0.0.1", gjson.Get(r.Payload, "top3.0.data.ip").String())
}

func TestFormatIdleWithoutWindow(t *testing.T) {
	acc := NewAccumulator("id", "l", DefaultTopConfig(), t0)

	line := NewFormatter(t0).Format(Summarize(acc, 0.9), t0)
	r, err := ParseLine(line)
	require.NoError(t, err)

	assert.Equal(t, StatusIdle, r.Status)
	assert.Equal(t, "00.00.00", r.Uptime)
	for k, v := range r.Values {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), k)
		assert.Equal(t, 0.0, v, k)
	}
	assert.False(t, gjson.Get(r.Payload, "platform").Exists())
	assert.False(t, gjson.Get(r.Payload, "exc").Exists())
	assert.Equal(t, "0.000", gjson.Get(r.Payload, "mon_time").String())
	assert.Equal(t, "{l}", gjson.Get(r.Payload, "listen").String())
}

func TestFormatDown(t *testing.T) {
	g := NewAggregator(DefaultTopConfig())
	now := t0.Add(25 * time.Hour)
	line := NewFormatter(t0).Format(g.Merge(nil, now), now)

	assert.True(t, strings.HasPrefix(line, "status:DOWN;uptime:1-01.00.00;"))
	assert.True(t, strings.HasSuffix(line, `"listen":"{}","mon_time":"0.000"}`))
}

func TestParseLineErrors(t *testing.T) {
	_, err := ParseLine("status:OK;uptime:00.00.01")
	assert.Error(t, err)

	_, err = ParseLine("status:OK;avr_net:abc | {}")
	assert.Error(t, err)

	_, err = ParseLine("status:OK;avr_net:0.100 | {")
	assert.Error(t, err)
}
