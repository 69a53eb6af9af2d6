package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
)

type FeishuHandler struct {
	webhookURL string
	client     *http.Client
	cardPool   sync.Pool
}

func NewFeishuHandler(webhookURL string) *FeishuHandler {
	h := &FeishuHandler{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	h.cardPool = sync.Pool{
		New: func() interface{} {
			return &FeishuCard{}
		},
	}
	return h
}

type FeishuCard struct {
	MsgType string `json:"msg_type"`
	Card    struct {
		Header struct {
			Template string `json:"template,omitempty"`
			Title    struct {
				Content string `json:"content"`
				Tag     string `json:"tag"`
			} `json:"title"`
		} `json:"header"`
		Elements []interface{} `json:"elements"`
	} `json:"card"`
}

func headerTemplate(level AlertLevel) string {
	switch level {
	case AlertLevelError:
		return "red"
	case AlertLevelWarn:
		return "orange"
	default:
		return "blue"
	}
}

func (h *FeishuHandler) HandleAlert(alert Alert) {
	card := h.cardPool.Get().(*FeishuCard)
	defer h.cardPool.Put(card)

	card.MsgType = "interactive"
	card.Card.Header.Template = headerTemplate(alert.Level)
	card.Card.Header.Title.Tag = "plain_text"
	card.Card.Header.Title.Content = fmt.Sprintf("[%s] 节点监控告警", alert.Level)

	// 添加告警内容
	content := map[string]interface{}{
		"tag": "div",
		"text": map[string]interface{}{
			"content": fmt.Sprintf("**告警时间**: %s\n**告警内容**: %s",
				alert.Time.Format("2006-01-02 15:04:05"),
				alert.Message),
			"tag": "lark_md",
		},
	}
	card.Card.Elements = []interface{}{content}

	payload, err := jsoniter.Marshal(card)
	if err != nil {
		log.Error().Err(err).Msg("[Monitor] failed to encode feishu card")
		return
	}
	resp, err := h.client.Post(h.webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		log.Error().Err(err).Msg("[Monitor] failed to send feishu alert")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		log.Error().Int("status", resp.StatusCode).Msg("[Monitor] feishu webhook rejected alert")
	}
}
