package handler

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"node-monitor/internal/metrics"
)

// SummarySource 汇总数据来源
type SummarySource interface {
	Summary(flush bool) *metrics.Summary
}

// HealthHandler 健康检查接口
type HealthHandler struct {
	source SummarySource
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(source SummarySource) *HealthHandler {
	return &HealthHandler{source: source}
}

// HealthResponse 健康状态响应
type HealthResponse struct {
	Status    metrics.Status `json:"status"`
	Listeners int            `json:"listeners"`
	Requests  int64          `json:"requests"`
}

// GetHealthStatus 获取当前状态，不清零
func (h *HealthHandler) GetHealthStatus(w http.ResponseWriter, r *http.Request) {
	s := h.source.Summary(false)
	resp := HealthResponse{
		Status:    s.Status,
		Listeners: s.Listeners,
		Requests:  s.Requests,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := jsoniter.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "Error encoding response", http.StatusInternalServerError)
	}
}
