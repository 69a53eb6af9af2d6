package middleware

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woodchen-ink/go-web-utils/iputil"

	"node-monitor/internal/metrics"
	"node-monitor/internal/utils"
)

// Observer 接收请求完成事件，*metrics.Registry 实现了该接口
type Observer interface {
	Observe(id metrics.ListenerID, o metrics.Observation) bool
	RecordException(id metrics.ListenerID) bool
}

// Monitor 监控中间件，每个完成的请求产生一条观测记录
//
// 网络耗时为进入处理器到请求体读完，处理耗时为请求体读完到处理器返回；
// 没有请求体时网络耗时为 0，请求体未读完时处理耗时为 0。
func Monitor(obs Observer, id metrics.ListenerID, collectAll bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			body := &bodyWatcher{}
			if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
				body.eofAt = start
			}
			if r.Body != nil {
				body.ReadCloser = r.Body
				r.Body = body
			}

			// 创建响应写入器包装器来捕获状态码
			wrapper := &responseWrapper{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			defer func() {
				rec := recover()
				// http.ErrAbortHandler 是主动中断响应，记录观测后继续向上抛出
				aborted := rec == http.ErrAbortHandler
				if rec != nil && !aborted {
					log.Error().
						Interface("panic", rec).
						Str("method", r.Method).
						Str("path", r.URL.Path).
						Msg("[Monitor] handler panicked")
					obs.RecordException(id)
					if !wrapper.wroteHeader {
						http.Error(wrapper, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					}
				}

				end := time.Now()
				bodyDone := body.doneAt(end)
				o := metrics.Observation{
					Method:       r.Method,
					TotalMs:      millis(end.Sub(start)),
					NetworkMs:    millis(bodyDone.Sub(start)),
					ProcessingMs: millis(end.Sub(bodyDone)),
					BytesRead:    body.n,
					BytesWritten: wrapper.written,
					StatusCode:   wrapper.statusCode,
					Path:         utils.NormalizePath(r.URL.Path),
					Fragment:     requestFragment(r, collectAll),
				}
				if collectAll {
					o.Sample = requestSample(r)
				}
				if !obs.Observe(id, o) {
					log.Debug().Str("listener", string(id)).Msg("[Monitor] observation for unknown listener")
				}
				if aborted {
					panic(rec)
				}
			}()

			next.ServeHTTP(wrapper, r)
		})
	}
}

func millis(d time.Duration) float64 {
	if d < 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}

// requestFragment 从请求头提取客户端平台、版本等分类计数
func requestFragment(r *http.Request, collectAll bool) metrics.Fragment {
	node := metrics.Node{}
	add := func(category, value string) {
		if value = strings.TrimSpace(value); value != "" {
			node.Child(category)[value] = metrics.Scalar(1)
		}
	}

	add("platform", r.Header.Get("mon-platform"))
	add("version", r.Header.Get("mon-version"))
	if collectAll {
		add("email", r.Header.Get("mon-email"))
		add("aname", r.Header.Get("mon-aname"))
		add("access_from", iputil.GetClientIP(r))
	}
	if len(node) == 0 {
		return nil
	}
	return node
}

// requestSample 慢请求样本中记录的客户端信息
func requestSample(r *http.Request) map[string]string {
	sample := make(map[string]string, 2)
	if ip := iputil.GetClientIP(r); ip != "" {
		sample["ip"] = ip
	}
	if r.Host != "" {
		sample["host"] = r.Host
	}
	return sample
}

// bodyWatcher 记录请求体读取完成的时间和字节数
type bodyWatcher struct {
	io.ReadCloser
	n     int64
	eofAt time.Time
}

func (b *bodyWatcher) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.n += int64(n)
	if err == io.EOF && b.eofAt.IsZero() {
		b.eofAt = time.Now()
	}
	return n, err
}

// doneAt 请求体未读完时视为在处理结束时完成
func (b *bodyWatcher) doneAt(end time.Time) time.Time {
	if b.eofAt.IsZero() {
		return end
	}
	return b.eofAt
}

// responseWrapper 响应包装器，用于捕获状态码和写出字节数
type responseWrapper struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
	written     int64
}

// WriteHeader 重写WriteHeader方法来捕获状态码
func (rw *responseWrapper) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

// Write 重写Write方法，统计写出的字节数
func (rw *responseWrapper) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Flush 透传给底层 ResponseWriter
func (rw *responseWrapper) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
