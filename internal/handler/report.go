package handler

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	ActionGetData    = "getdata"
	ActionGetAllData = "getalldata"
)

// Reporter 报告数据来源，*metrics.Registry 实现了该接口
type Reporter interface {
	Report(flush bool) string
	ReportAll(flush bool) string
}

// Archiver 归档汇总报告，可为 nil
type Archiver interface {
	Archive(ctx context.Context, line string, at time.Time) (string, error)
}

// ReportHandler 报告接口
//
//	GET /node_monitor?action=getdata&access_code=<code>
type ReportHandler struct {
	reporter   Reporter
	accessCode func() string
	archiver   Archiver
	now        func() time.Time
}

// NewReportHandler 创建报告处理器，使用固定访问码
func NewReportHandler(reporter Reporter, accessCode string, archiver Archiver) *ReportHandler {
	return NewDynamicReportHandler(reporter, func() string { return accessCode }, archiver)
}

// NewDynamicReportHandler 每次请求时读取访问码，配置重载后立即生效
func NewDynamicReportHandler(reporter Reporter, accessCode func() string, archiver Archiver) *ReportHandler {
	return &ReportHandler{
		reporter:   reporter,
		accessCode: accessCode,
		archiver:   archiver,
		now:        time.Now,
	}
}

func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	action := strings.ToLower(strings.TrimSpace(query.Get("action")))
	code := strings.ToLower(strings.TrimSpace(query.Get("access_code")))

	status := http.StatusOK
	var result string

	switch {
	case !h.checkAccess(code):
		log.Warn().Str("remote", r.RemoteAddr).Msg("[Report] wrong access code")
		status = http.StatusForbidden
		result = "Access denied."
	case action == ActionGetData:
		result = h.reporter.Report(true)
		h.archive(result)
	case action == ActionGetAllData:
		result = h.reporter.ReportAll(true)
	default:
		status = http.StatusBadRequest
		result = "wrong command received"
	}

	log.Debug().Str("action", action).Int("status", status).Msg("[Report] " + result)

	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("Connection", "close")
	w.WriteHeader(status)
	w.Write([]byte(result))
}

// checkAccess 固定访问码，或当前分钟数(前后各一分钟)的 md5
func (h *ReportHandler) checkAccess(code string) bool {
	if code == "" {
		return false
	}
	if static := strings.ToLower(strings.TrimSpace(h.accessCode())); static != "" && code == static {
		return true
	}
	minute := MinuteNumber(h.now())
	for _, m := range []int64{minute, minute - 1, minute + 1} {
		if code == MinuteCode(m) {
			return true
		}
	}
	return false
}

func (h *ReportHandler) archive(line string) {
	if h.archiver == nil {
		return
	}
	at := h.now()
	// 归档失败不影响报告
	go func() {
		if _, err := h.archiver.Archive(context.Background(), line, at); err != nil {
			log.Error().Err(err).Msg("[Report] failed to archive report")
		}
	}()
}

// MinuteNumber Unix 毫秒除以 60000 后四舍五入
func MinuteNumber(t time.Time) int64 {
	return int64(math.Round(float64(t.UnixMilli()) / 60000))
}

// MinuteCode 分钟数十进制字符串的 md5 十六进制
func MinuteCode(minute int64) string {
	sum := md5.Sum([]byte(strconv.FormatInt(minute, 10)))
	return hex.EncodeToString(sum[:])
}
