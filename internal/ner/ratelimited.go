package ner

import (
	"context"
	"time"

	"parsely-go/pkg/ratelimit"
)

// RateLimitedRecognizer 对远程识别调用进行限流和重试的代理
type RateLimitedRecognizer struct {
	original    EntityRecognizer
	rateLimiter *ratelimit.TokenBucket
}

// NewRateLimitedRecognizer 创建限流代理，容量为 QPM 的一半
func NewRateLimitedRecognizer(original EntityRecognizer, qpm int) *RateLimitedRecognizer {
	if qpm <= 0 {
		qpm = 600
	}
	return &RateLimitedRecognizer{
		original:    original,
		rateLimiter: ratelimit.NewTokenBucket(qpm, qpm/2),
	}
}

// WithRetryPolicy 设置重试策略
func (rl *RateLimitedRecognizer) WithRetryPolicy(waitTime time.Duration, maxRetries int) *RateLimitedRecognizer {
	rl.rateLimiter.WithRetryPolicy(waitTime, maxRetries)
	return rl
}

// Recognize 代理 Recognize，增加限流和重试
func (rl *RateLimitedRecognizer) Recognize(ctx context.Context, text string) ([]Entity, error) {
	var entities []Entity
	err := rl.rateLimiter.RetryWithBackoff(ctx, func() error {
		var recErr error
		entities, recErr = rl.original.Recognize(ctx, text)
		return recErr
	})
	return entities, err
}
