package processor

import (
	"context"
	"errors"
	"runtime"
	"time"

	"parsely-go/internal/constants"
	"parsely-go/internal/types"
	"parsely-go/pkg/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// 批处理单文件状态
const (
	BatchStatusOK    = "ok"
	BatchStatusError = "error"
)

// BatchFile 批处理的单个输入文件
type BatchFile struct {
	Name     string
	MimeType string
	Data     []byte
}

// BatchItemResult 单个文件的处理结果，错误只影响该文件
type BatchItemResult struct {
	File       string                  `json:"file"`
	Hash       string                  `json:"hash"`
	Status     string                  `json:"status"`
	FromCache  bool                    `json:"from_cache"`
	Parsed     *types.ResumeSchema     `json:"parsed,omitempty"`
	Confidence *types.ConfidenceReport `json:"confidence,omitempty"`
	Error      string                  `json:"error,omitempty"`

	result *ParseResult
	err    error
}

// Result 返回底层解析结果（含章节），出错时为 nil
func (r BatchItemResult) Result() *ParseResult {
	return r.result
}

// Err 返回失败原因，成功时为 nil
func (r BatchItemResult) Err() error {
	return r.err
}

// BatchResult 一次批处理的汇总
type BatchResult struct {
	BatchID    string            `json:"batch_id"`
	Sequential bool              `json:"sequential"`
	Workers    int               `json:"workers"`
	Items      []BatchItemResult `json:"items"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
	CacheHits  int               `json:"cache_hits"`
	DurationMS int64             `json:"duration_ms"`
}

// BatchRunner 批量解析：有界并发、内容哈希去重、结果缓存。
// 同一哈希的并发请求经 singleflight 合并，只执行一次流水线
type BatchRunner struct {
	pipeline   Pipeline
	extractor  TextExtractor
	cache      ResultCache
	maxWorkers int
	logger     zerolog.Logger
	group      singleflight.Group
}

// BatchOption 批处理器选项
type BatchOption func(*BatchRunner)

// WithBatchCache 设置结果缓存，默认进程内缓存
func WithBatchCache(c ResultCache) BatchOption {
	return func(b *BatchRunner) {
		if c != nil {
			b.cache = c
		}
	}
}

// WithBatchMaxWorkers 设置并发上限
func WithBatchMaxWorkers(n int) BatchOption {
	return func(b *BatchRunner) {
		if n > 0 {
			b.maxWorkers = n
		}
	}
}

// WithBatchLogger 设置日志记录器
func WithBatchLogger(logger zerolog.Logger) BatchOption {
	return func(b *BatchRunner) {
		b.logger = logger
	}
}

// NewBatchRunner 创建批处理器
func NewBatchRunner(pipeline Pipeline, extractor TextExtractor, opts ...BatchOption) *BatchRunner {
	b := &BatchRunner{
		pipeline:   pipeline,
		extractor:  extractor,
		cache:      NewMemoryCache(),
		maxWorkers: constants.DefaultMaxWorkers,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Workers 并发度 = min(文档数, CPU 核数, 配置上限)
func (b *BatchRunner) Workers(n int) int {
	w := n
	if cpus := runtime.NumCPU(); cpus < w {
		w = cpus
	}
	if b.maxWorkers < w {
		w = b.maxWorkers
	}
	if w < 1 {
		w = 1
	}
	return w
}

// Run 处理一批文件，结果顺序与输入一致。sequential 为 true 时按顺序逐个处理，便于调试
func (b *BatchRunner) Run(ctx context.Context, files []BatchFile, opts types.ParseOptions, sequential bool) *BatchResult {
	ctx, span := tracer.Start(ctx, "BatchRunner.Run")
	defer span.End()

	start := time.Now()
	res := &BatchResult{
		BatchID:    uuid.NewString(),
		Sequential: sequential,
		Items:      make([]BatchItemResult, len(files)),
	}

	if sequential {
		res.Workers = 1
		for i, f := range files {
			res.Items[i] = b.ParseOne(ctx, f, opts)
		}
	} else {
		res.Workers = b.Workers(len(files))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(res.Workers)
		for i, f := range files {
			g.Go(func() error {
				res.Items[i] = b.ParseOne(gctx, f, opts)
				return nil
			})
		}
		_ = g.Wait()
	}

	for _, it := range res.Items {
		if it.Status == BatchStatusOK {
			res.Succeeded++
		} else {
			res.Failed++
		}
		if it.FromCache {
			res.CacheHits++
		}
	}
	res.DurationMS = time.Since(start).Milliseconds()

	span.SetAttributes(
		attribute.String("batch.id", res.BatchID),
		attribute.Int("batch.files", len(files)),
		attribute.Int("batch.workers", res.Workers),
		attribute.Int("batch.failed", res.Failed),
		attribute.Int("batch.cache_hits", res.CacheHits),
	)
	b.logger.Info().
		Str("batch_id", res.BatchID).
		Int("files", len(files)).
		Int("workers", res.Workers).
		Int("succeeded", res.Succeeded).
		Int("failed", res.Failed).
		Int("cache_hits", res.CacheHits).
		Int64("duration_ms", res.DurationMS).
		Msg("批处理完成")
	return res
}

// ParseOne 处理单个文件：先查缓存，未命中时经 singleflight 执行一次流水线并写回缓存
func (b *BatchRunner) ParseOne(ctx context.Context, f BatchFile, opts types.ParseOptions) BatchItemResult {
	item := BatchItemResult{File: f.Name, Hash: utils.CalculateMD5(f.Data), Status: BatchStatusError}
	if err := ctx.Err(); err != nil {
		item.Error = err.Error()
		item.err = err
		return item
	}
	if opts.NLPModel == "" {
		opts.NLPModel = types.NLPModelFast
	}
	key := CacheKey(item.Hash, opts.NLPModel)

	if cached, ok := b.cache.Get(ctx, key); ok {
		return b.succeed(item, cached, opts, true)
	}

	executed := false
	v, err, _ := b.group.Do(key, func() (interface{}, error) {
		// 等待期间其他调用可能已经写入缓存
		if cached, ok := b.cache.Get(ctx, key); ok {
			return cached, nil
		}
		executed = true
		doc, err := b.extractor.Extract(ctx, f.Data, f.Name, f.MimeType)
		if err != nil {
			return nil, err
		}
		// 缓存中总是保存带置信度的完整结果，按请求取视图
		full := opts
		full.IncludeConfidence = true
		result := b.pipeline.Parse(ctx, doc, full)
		b.cache.Set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		item.Error = err.Error()
		item.err = err
		level := b.logger.Warn()
		if errors.Is(err, types.ErrInput) {
			level = b.logger.Info()
		}
		level.Err(err).Str("file", f.Name).Str("hash", item.Hash).Msg("文件解析失败")
		return item
	}
	return b.succeed(item, v.(*ParseResult), opts, !executed)
}

func (b *BatchRunner) succeed(item BatchItemResult, result *ParseResult, opts types.ParseOptions, fromCache bool) BatchItemResult {
	view := result.View(opts.IncludeConfidence)
	item.Status = BatchStatusOK
	item.FromCache = fromCache
	item.Parsed = view.Schema
	item.Confidence = view.Confidence
	item.result = view
	return item
}
