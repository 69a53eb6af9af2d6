package metrics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"

	"node-monitor/internal/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// lineFields 报告行固定部分的字段顺序
var lineFields = []string{
	"avr_net", "max_net", "avr_resp", "max_resp", "avr_total", "max_total",
	"in_rate", "out_rate", "active", "load",
}

// Formatter 将 Summary 渲染为报告行，只读取数据，不修改
type Formatter struct {
	Started time.Time // 进程启动时间，用于 uptime
}

func NewFormatter(started time.Time) *Formatter {
	return &Formatter{Started: started}
}

// Format 渲染一行报告:
//
//	status:OK;uptime:00.01.02;avr_net:0.010;...;load:1.500 | {...}
func (f *Formatter) Format(s *Summary, now time.Time) string {
	a := s.Accumulator
	window := a.WindowSeconds(now)

	var b strings.Builder
	b.WriteString("status:")
	b.WriteString(string(s.Status))
	b.WriteString(";uptime:")
	b.WriteString(utils.FormatUptime(now.Sub(f.Started)))

	values := []float64{
		a.Network.Avg() / 1000, a.Network.Max / 1000,
		a.Processing.Avg() / 1000, a.Processing.Max / 1000,
		a.Total.Avg() / 1000, a.Total.Max / 1000,
		utils.SafeDiv(float64(a.BytesRead), window) / 1000,
		utils.SafeDiv(float64(a.BytesWritten), window) / 1000,
		utils.SafeDiv(a.Active, window) * 100,
		utils.SafeDiv(float64(a.Requests), window),
	}
	for i, name := range lineFields {
		prec := 3
		if name == "active" {
			prec = 2
		}
		b.WriteByte(';')
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(utils.Fixed(values[i], prec))
	}

	payload, err := json.Marshal(f.payload(a, window))
	if err != nil {
		log.Error().Err(err).Str("listen", a.Listen).Msg("[Report] failed to encode report payload")
		payload = []byte("{}")
	}
	b.WriteString(" | ")
	b.Write(payload)
	return b.String()
}

// payload 报告行的 JSON 部分，在副本上组装
func (f *Formatter) payload(a *Accumulator, window float64) map[string]interface{} {
	tree := a.Tree.Clone()
	out := make(map[string]interface{}, len(tree)+len(a.Samples)+16)

	for name, w := range a.Samples {
		items := w.Items()
		list := make([]map[string]interface{}, 0, len(items))
		for _, it := range items {
			list = append(list, map[string]interface{}{
				"t":    it.Rank / 1000,
				"data": it.Payload,
			})
		}
		out[name] = list
	}

	if a.Requests > 0 {
		if views := a.Paths.Top(a.Top.View, a.Top.SortBy, window); len(views) > 0 {
			list := make([]map[string]interface{}, 0, len(views))
			for _, v := range views {
				list = append(list, map[string]interface{}{
					"path":     v.Path,
					"max_time": utils.Fixed(v.MaxTime/1000, 3),
					"rate":     utils.Fixed(v.Rate/1000, 3),
					"load":     utils.Fixed(v.Load, 3),
					"count":    v.Count,
				})
			}
			out[TopLabel(a.Top)] = list
		}

		req := float64(a.Requests)
		tree.Add("platform", "total", req)
		for c := Class1xx; c < classCount; c++ {
			tree.Add("codes", c.String(), float64(a.Codes[c]))
		}
		for m := MethodGet; m < methodCount; m++ {
			out[m.String()] = utils.Fixed(float64(a.Methods[m])/req*100, 1)
		}
		out["2xx"] = utils.Fixed(float64(a.Codes[Class2xx])/req*100, 1)
		out["exc"] = a.Exceptions
	}

	for name, bucket := range tree {
		out[name] = bucket
	}
	out["mon_time"] = utils.Fixed(window, 3)
	out["listen"] = "{" + a.Listen + "}"
	return out
}

// TopLabel 路径列表在报告中的键名
func TopLabel(top TopConfig) string {
	return fmt.Sprintf("sorted by '%s' (top %d)", top.SortBy, top.View)
}

// ReportLine 解析后的报告行
type ReportLine struct {
	Status  Status
	Uptime  string
	Values  map[string]float64
	Payload string
}

// ParseLine 解析 Format 的输出
func ParseLine(line string) (*ReportLine, error) {
	head, payload, ok := strings.Cut(line, " | ")
	if !ok {
		return nil, fmt.Errorf("missing payload separator")
	}

	r := &ReportLine{Values: make(map[string]float64, len(lineFields)), Payload: payload}
	for _, part := range strings.Split(head, ";") {
		key, val, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("malformed field %q", part)
		}
		switch key {
		case "status":
			r.Status = Status(val)
		case "uptime":
			r.Uptime = val
		default:
			v, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", key, err)
			}
			r.Values[key] = v
		}
	}
	if !json.Valid([]byte(payload)) {
		return nil, fmt.Errorf("invalid payload")
	}
	return r, nil
}
