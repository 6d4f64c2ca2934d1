package processor

import (
	"context"
	"time"

	"parsely-go/internal/config"
	"parsely-go/internal/dictionary"
	"parsely-go/internal/ner"
	"parsely-go/internal/normalize"
	"parsely-go/internal/parser"
	"parsely-go/internal/schemas"
	"parsely-go/internal/scoring"
	"parsely-go/internal/storage"
	"parsely-go/internal/types"

	"github.com/rs/zerolog"
)

// PipelineConfig 构建流水线所需的全部静态配置，进程启动时构建一次
type PipelineConfig struct {
	Dictionary     *dictionary.Dictionary // 为空时使用内置词典
	Segmenter      parser.SegmenterConfig
	Weights        map[types.Category]float64 // 为空时使用默认权重
	CurrentYear    int                        // 为 0 时取当前年份
	Recognizers    map[types.NLPModel]ner.EntityRecognizer
	ValidateOutput bool
	Logger         zerolog.Logger
}

// NewPipeline 按配置装配 SchemaAssembler。词典、阈值、权重错误都是启动期致命的配置错误
func NewPipeline(cfg PipelineConfig) (*SchemaAssembler, error) {
	dict := cfg.Dictionary
	if dict == nil {
		var err error
		if dict, err = dictionary.Default(); err != nil {
			return nil, err
		}
	}

	segCfg := cfg.Segmenter
	if segCfg == (parser.SegmenterConfig{}) {
		segCfg = parser.DefaultSegmenterConfig()
	}
	segmenter, err := parser.NewSectionSegmenter(parser.NewSectionClassifier(dict), segCfg)
	if err != nil {
		return nil, err
	}

	scorer, err := scoring.NewScorer(cfg.Weights)
	if err != nil {
		return nil, err
	}

	year := cfg.CurrentYear
	if year == 0 {
		year = time.Now().Year()
	}
	ranges := make(map[string]normalize.ScoreRange)
	for name, r := range dict.TestRangeMap() {
		ranges[name] = normalize.ScoreRange{Min: r.Min, Max: r.Max}
	}

	recognizers := cfg.Recognizers
	if recognizers == nil {
		recognizers = map[types.NLPModel]ner.EntityRecognizer{}
	}
	if recognizers[types.NLPModelFast] == nil {
		recognizers[types.NLPModelFast] = ner.NewRuleRecognizer(dict.Keywords(), dict.OrgSuffixes)
	}

	compOpts := []ComponentOpt{
		WithcompSegmenter(segmenter),
		WithcompNormalizer(normalize.New(year, ranges)),
		WithcompScorer(scorer),
	}
	for _, model := range []types.NLPModel{types.NLPModelFast, types.NLPModelAccurate} {
		rec, ok := recognizers[model]
		if !ok || rec == nil {
			continue
		}
		registry, err := parser.NewRegistry(dict, rec, cfg.Logger)
		if err != nil {
			return nil, err
		}
		compOpts = append(compOpts, WithcompRegistry(model, registry))
	}
	if cfg.ValidateOutput {
		v, err := schemas.NewValidator()
		if err != nil {
			return nil, err
		}
		compOpts = append(compOpts, WithcompValidator(v))
	}

	comp := &Components{}
	for _, opt := range compOpts {
		opt(comp)
	}
	return NewSchemaAssembler(comp, &Settings{}, WithsetLogger(cfg.Logger), WithsetValidateOutput(cfg.ValidateOutput))
}

// PipelineConfigFrom 由应用配置生成流水线配置：加载词典、转换权重，
// 配置了 NER 服务时注册带限流的 accurate 识别器
func PipelineConfigFrom(cfg *config.Config, logger zerolog.Logger) (PipelineConfig, error) {
	pc := PipelineConfig{
		Segmenter: parser.SegmenterConfig{
			SimilarityThreshold:  cfg.Pipeline.SimilarityThreshold,
			HeadingnessThreshold: cfg.Pipeline.HeadingnessThreshold,
			MaxHeadingWords:      cfg.Pipeline.MaxHeadingWords,
			MaxHeadingChars:      cfg.Pipeline.MaxHeadingChars,
		},
		ValidateOutput: cfg.Pipeline.ValidateOutput,
		Logger:         logger,
	}

	if cfg.Pipeline.DictionaryPath != "" {
		dict, err := dictionary.LoadFile(cfg.Pipeline.DictionaryPath)
		if err != nil {
			return pc, err
		}
		pc.Dictionary = dict
	}

	if len(cfg.Pipeline.Weights) > 0 {
		pc.Weights = make(map[types.Category]float64, len(cfg.Pipeline.Weights))
		for name, w := range cfg.Pipeline.Weights {
			pc.Weights[types.Category(name)] = w
		}
	}

	if cfg.NER.Endpoint != "" {
		remote, err := ner.NewHTTPRecognizer(ner.HTTPConfig{
			Endpoint: cfg.NER.Endpoint,
			Timeout:  time.Duration(cfg.NER.TimeoutSeconds) * time.Second,
			MaxChars: cfg.NER.MaxChars,
		})
		if err != nil {
			return pc, types.NewConfigurationError("ner", "创建远程识别器失败", err)
		}
		accurate := ner.NewRateLimitedRecognizer(remote, cfg.NER.QPM).
			WithRetryPolicy(time.Duration(cfg.NER.RetryWaitMS)*time.Millisecond, cfg.NER.MaxRetries)
		pc.Recognizers = map[types.NLPModel]ner.EntityRecognizer{types.NLPModelAccurate: accurate}
	}
	return pc, nil
}

// NewServiceFromConfig 装配流水线、文本提取、批处理与服务，按已初始化的存储组件接入持久化。
// store 可以为 nil，此时只提供无状态解析
func NewServiceFromConfig(ctx context.Context, cfg *config.Config, store *storage.Storage, logger zerolog.Logger) (*ResumeService, error) {
	pc, err := PipelineConfigFrom(cfg, logger.With().Str("component", "pipeline").Logger())
	if err != nil {
		return nil, err
	}
	pipeline, err := NewPipeline(pc)
	if err != nil {
		return nil, err
	}

	pdf, err := newPDFExtractor(ctx, cfg.PDF, logger.With().Str("component", "pdf").Logger())
	if err != nil {
		return nil, err
	}

	var cache ResultCache = NewMemoryCache()
	if store != nil && store.Redis != nil {
		ttl := config.GetDuration(cfg.Pipeline.CacheTTL, 0)
		cache = NewTieredCache(cache, NewRedisCache(store.Redis, ttl, logger.With().Str("component", "cache").Logger()))
	}
	runner := NewBatchRunner(pipeline, parser.NewDocumentExtractor(pdf),
		WithBatchCache(cache),
		WithBatchMaxWorkers(cfg.Pipeline.MaxWorkers),
		WithBatchLogger(logger.With().Str("component", "batch").Logger()),
	)

	opts := []ServiceOption{WithServiceLogger(logger.With().Str("component", "service").Logger())}
	if cfg.RabbitMQ.EventsExchange != "" {
		opts = append(opts, WithEventRoute(cfg.RabbitMQ.EventsExchange, cfg.RabbitMQ.ParsedRoutingKey))
	}
	if cfg.RabbitMQ.JobsExchange != "" {
		opts = append(opts, WithJobRoute(cfg.RabbitMQ.JobsExchange, cfg.RabbitMQ.JobsRoutingKey))
	}
	if records := store.Records(); records != nil {
		opts = append(opts, WithRecordStore(records))
	}
	if store != nil && store.MinIO != nil {
		opts = append(opts, WithObjectStore(store.MinIO))
	}
	if store != nil && store.Redis != nil {
		opts = append(opts, WithContentIndex(store.Redis))
	}
	return NewResumeService(pipeline, runner, opts...), nil
}

func newPDFExtractor(ctx context.Context, cfg config.PDFConfig, logger zerolog.Logger) (parser.PDFTextExtractor, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if cfg.Backend == "tika" {
		if cfg.TikaURL == "" {
			return nil, types.NewConfigurationError("pdf", "tika 后端需要配置 tika_url", nil)
		}
		return parser.NewTikaPDFTextExtractor(cfg.TikaURL, parser.WithTikaTimeout(timeout), parser.WithTikaLogger(logger))
	}
	return parser.NewEinoPDFTextExtractor(ctx, parser.WithEinoLogger(logger), parser.WithEinoTimeout(timeout))
}
