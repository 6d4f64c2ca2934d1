package parser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/rs/zerolog"
)

// TikaPDFTextExtractor 调用 Apache Tika 服务 (PUT /tika, Accept: text/plain) 提取 PDF 文本
type TikaPDFTextExtractor struct {
	serverURL string
	timeout   time.Duration
	client    *client.Client
	logger    zerolog.Logger
}

// TikaOption Tika 提取器配置选项
type TikaOption func(*TikaPDFTextExtractor)

// WithTikaTimeout 单个文档的请求超时
func WithTikaTimeout(d time.Duration) TikaOption {
	return func(e *TikaPDFTextExtractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithTikaLogger 配置日志记录器
func WithTikaLogger(logger zerolog.Logger) TikaOption {
	return func(e *TikaPDFTextExtractor) {
		e.logger = logger
	}
}

// NewTikaPDFTextExtractor 创建 Tika 提取器，serverURL 例如 http://localhost:9998
func NewTikaPDFTextExtractor(serverURL string, options ...TikaOption) (*TikaPDFTextExtractor, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("Tika服务地址不能为空")
	}
	c, err := client.NewClient(client.WithDialTimeout(2 * time.Second))
	if err != nil {
		return nil, fmt.Errorf("创建Tika HTTP客户端失败: %w", err)
	}
	e := &TikaPDFTextExtractor{
		serverURL: strings.TrimRight(serverURL, "/"),
		timeout:   30 * time.Second,
		client:    c,
		logger:    zerolog.Nop(),
	}
	for _, option := range options {
		option(e)
	}
	return e, nil
}

// ExtractText 实现 PDFTextExtractor
func (e *TikaPDFTextExtractor) ExtractText(ctx context.Context, data []byte, uri string) (string, error) {
	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer protocol.ReleaseRequest(req)
	defer protocol.ReleaseResponse(resp)

	req.SetMethod(consts.MethodPut)
	req.SetRequestURI(e.serverURL + "/tika")
	req.Header.SetContentTypeBytes([]byte("application/pdf"))
	req.Header.Set("Accept", "text/plain; charset=UTF-8")
	req.SetBody(data)

	start := time.Now()
	if err := e.client.DoTimeout(ctx, req, resp, e.timeout); err != nil {
		e.logger.Warn().Err(err).Str("uri", uri).Msg("调用Tika服务失败")
		return "", fmt.Errorf("调用Tika服务失败 (URI %s): %w", uri, err)
	}
	if code := resp.StatusCode(); code != consts.StatusOK {
		return "", fmt.Errorf("Tika服务返回状态码 %d (URI %s)", code, uri)
	}

	text := string(resp.Body())
	e.logger.Debug().Str("uri", uri).Int("chars", len(text)).Dur("duration", time.Since(start)).Msg("Tika文本提取完成")
	return text, nil
}
