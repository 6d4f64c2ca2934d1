package router

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"parsely-go/internal/api/handler"
	"parsely-go/internal/logger"
	"parsely-go/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"github.com/hertz-contrib/keyauth"
	"go.opentelemetry.io/otel/trace"
)

// RequestIDHeader 请求 ID 头
const RequestIDHeader = "X-Request-ID"

// APIKeyHeader API Key 头
const APIKeyHeader = "X-API-Key"

// RegisterRoutes 注册 API 路由。apiKeys 为空时不启用鉴权，健康检查始终公开
func RegisterRoutes(h *server.Hertz, resumeHandler *handler.ResumeHandler, apiKeys []string) {
	h.Use(RequestID(), AccessLog())

	api := h.Group("/api/v1")
	api.GET("/health", resumeHandler.Health)

	secured := api.Group("")
	if len(apiKeys) > 0 {
		secured.Use(APIKeyAuth(apiKeys))
	}
	secured.POST("/parse", resumeHandler.Parse)
	secured.POST("/parse/text", resumeHandler.ParseText)
	secured.POST("/parse/batch", resumeHandler.ParseBatch)
	secured.POST("/jobs", resumeHandler.SubmitJob)
	secured.GET("/records", resumeHandler.ListRecords)
	secured.GET("/records/:id", resumeHandler.GetRecord)
}

// RequestID 沿用客户端传入的请求 ID，没有时生成一个，并写入日志上下文
func RequestID() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		id := string(ctx.GetHeader(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		ctx.Header(RequestIDHeader, id)
		ctx.Next(logger.WithRequestID(c, id))
	}
}

// AccessLog 请求日志
func AccessLog() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		start := time.Now()
		ctx.Next(c)
		status := ctx.Response.StatusCode()
		hlog.CtxInfof(c, "%s %s -> %d (%s)", string(ctx.Method()), string(ctx.Path()),
			status, time.Since(start))
		if status >= consts.StatusBadRequest {
			tracing.RecordHTTPError(trace.SpanFromContext(c),
				fmt.Errorf("%s %s 返回 %d", ctx.Method(), ctx.Path(), status), status)
		}
	}
}

// APIKeyAuth 校验 X-API-Key 头
func APIKeyAuth(apiKeys []string) app.HandlerFunc {
	keys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}
	return keyauth.New(
		keyauth.WithKeyLookUp("header:"+APIKeyHeader, ""),
		keyauth.WithValidator(func(_ context.Context, _ *app.RequestContext, key string) (bool, error) {
			for _, k := range keys {
				if subtle.ConstantTimeCompare(k, []byte(key)) == 1 {
					return true, nil
				}
			}
			return false, keyauth.ErrMissingOrMalformedAPIKey
		}),
		keyauth.WithErrorHandler(func(_ context.Context, ctx *app.RequestContext, err error) {
			ctx.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"error": "API Key 无效或缺失"})
		}),
	)
}
