package ner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// HTTPConfig 远程 NER 服务配置
type HTTPConfig struct {
	Endpoint    string
	Timeout     time.Duration
	DialTimeout time.Duration
	MaxChars    int // 发送给远程服务的最大字符数，超出部分截断
}

type recognizeRequest struct {
	Text string `json:"text"`
}

type recognizeResponse struct {
	Entities []Entity `json:"entities"`
}

// HTTPRecognizer 调用远程 NER 服务 (POST {"text": ...} -> {"entities": [...]})
type HTTPRecognizer struct {
	cfg    HTTPConfig
	client *client.Client
}

// NewHTTPRecognizer 创建远程识别器
func NewHTTPRecognizer(cfg HTTPConfig) (*HTTPRecognizer, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("NER服务地址不能为空")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = time.Second
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 3000
	}
	c, err := client.NewClient(client.WithDialTimeout(cfg.DialTimeout))
	if err != nil {
		return nil, fmt.Errorf("创建NER HTTP客户端失败: %w", err)
	}
	return &HTTPRecognizer{cfg: cfg, client: c}, nil
}

// Recognize 调用远程服务识别实体
func (h *HTTPRecognizer) Recognize(ctx context.Context, text string) ([]Entity, error) {
	body, err := json.Marshal(recognizeRequest{Text: truncateRunes(text, h.cfg.MaxChars)})
	if err != nil {
		return nil, fmt.Errorf("序列化NER请求失败: %w", err)
	}

	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer protocol.ReleaseRequest(req)
	defer protocol.ReleaseResponse(resp)

	req.SetMethod(consts.MethodPost)
	req.SetRequestURI(h.cfg.Endpoint)
	req.Header.SetContentTypeBytes([]byte("application/json"))
	req.SetBody(body)

	if err := h.client.DoTimeout(ctx, req, resp, h.cfg.Timeout); err != nil {
		return nil, fmt.Errorf("调用NER服务失败: %w", err)
	}
	if code := resp.StatusCode(); code != consts.StatusOK {
		return nil, fmt.Errorf("NER服务返回状态码 %d", code)
	}

	var out recognizeResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("解析NER响应失败: %w", err)
	}
	return out.Entities, nil
}

// truncateRunes 按字符截断，避免切断多字节字符
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
