package processor

import (
	"context"
	"fmt"
	"strings"

	"parsely-go/internal/parser"
	"parsely-go/internal/tracing"
	"parsely-go/internal/types"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("parsely-go/processor")

// SchemaAssembler 按固定顺序串联 分段 -> 抽取 -> 规范化 -> 评分。
// 任一阶段失败都在本地恢复，调用方总能拿到完整的 schema
type SchemaAssembler struct {
	comp Components
	set  Settings
}

// NewSchemaAssembler 创建组装器，缺少必需组件时返回配置错误
func NewSchemaAssembler(comp *Components, set *Settings, opts ...SettingOpt) (*SchemaAssembler, error) {
	if comp == nil {
		return nil, types.NewConfigurationError("assembler", "组件不能为空", nil)
	}
	if set == nil {
		set = &Settings{Logger: zerolog.Nop()}
	}
	for _, opt := range opts {
		opt(set)
	}
	switch {
	case comp.Segmenter == nil:
		return nil, types.NewConfigurationError("assembler", "缺少分段器", nil)
	case comp.Registries[types.NLPModelFast] == nil:
		return nil, types.NewConfigurationError("assembler", "缺少 fast 模型的抽取分派表", nil)
	case comp.Normalizer == nil:
		return nil, types.NewConfigurationError("assembler", "缺少规范化器", nil)
	case comp.Scorer == nil:
		return nil, types.NewConfigurationError("assembler", "缺少评分器", nil)
	case set.ValidateOutput && comp.Validator == nil:
		return nil, types.NewConfigurationError("assembler", "开启输出校验但未提供校验器", nil)
	}
	return &SchemaAssembler{comp: *comp, set: *set}, nil
}

// Assemble 解析原始文本。IncludeConfidence 为 false 时不返回置信度报告
func (a *SchemaAssembler) Assemble(rawText string, opts types.ParseOptions) (*types.ResumeSchema, *types.ConfidenceReport) {
	res := a.run(rawText, opts)
	return res.Schema, res.Confidence
}

// Parse 实现 Pipeline
func (a *SchemaAssembler) Parse(ctx context.Context, doc types.RawDocument, opts types.ParseOptions) *ParseResult {
	_, span := tracer.Start(ctx, "SchemaAssembler.Parse")
	defer span.End()

	res := a.run(doc.Text, opts)
	span.SetAttributes(
		attribute.String("parse.filename", doc.Filename),
		attribute.String("parse.nlp_model", string(opts.NLPModel)),
		attribute.Int("parse.sections", len(res.Sections)),
		attribute.Int("parse.unparsed_sections", len(res.UnparsedSections)),
		attribute.Float64("parse.quality_score", res.Schema.ResumeQualityScore),
	)
	return res
}

// Sections 只运行分段阶段
func (a *SchemaAssembler) Sections(rawText string) []types.Section {
	return a.segment(rawText)
}

func (a *SchemaAssembler) run(rawText string, opts types.ParseOptions) *ParseResult {
	log := a.set.Logger
	if strings.TrimSpace(rawText) == "" {
		log.Debug().Err(types.NewInputError("assemble", "文本为空")).Msg("输入为空，返回空 schema")
		return a.finish(&types.DraftSchema{Schema: types.NewEmptySchema()}, a.segment(rawText), nil, opts)
	}

	sections := a.segment(rawText)
	registry := a.registry(opts.NLPModel)

	var fields []types.ExtractionField
	var unparsed []types.SectionRef
	for _, s := range sections {
		got := registry.Extract(s)
		if len(got) == 0 {
			log.Debug().
				Err(types.NewExtractionMiss("extract", string(s.Type), "章节未抽取到字段")).
				Int("ordinal", s.Ordinal).
				Msg("章节未解析")
			unparsed = append(unparsed, s.Ref())
			continue
		}
		fields = append(fields, got...)
	}

	draft, errs := a.comp.Normalizer.Build(fields)
	for _, err := range errs {
		log.Debug().Str("detail", tracing.MaskText(err.Error())).Msg("字段值被规范化丢弃")
	}
	return a.finish(draft, sections, unparsed, opts)
}

// segment 分段器 panic 时退化为覆盖全文的单个 Other 章节
func (a *SchemaAssembler) segment(rawText string) (sections []types.Section) {
	defer func() {
		if rec := recover(); rec != nil {
			a.set.Logger.Error().Interface("panic", rec).Msg("分段失败，整篇按 Other 处理")
			sections = []types.Section{{
				Type:    types.SectionOther,
				End:     len(rawText),
				Content: rawText,
			}}
		}
	}()
	return a.comp.Segmenter.Segment(rawText)
}

func (a *SchemaAssembler) registry(model types.NLPModel) *parser.Registry {
	if r, ok := a.comp.Registries[model]; ok && r != nil {
		return r
	}
	return a.comp.Registries[types.NLPModelFast]
}

func (a *SchemaAssembler) finish(draft *types.DraftSchema, sections []types.Section, unparsed []types.SectionRef, opts types.ParseOptions) *ParseResult {
	report := a.score(draft)
	schema := draft.Schema
	schema.ResumeQualityScore = report.QualityScore
	if opts.IncludeConfidence {
		pct := report.ConfidencePercentage
		schema.ConfidencePercentage = &pct
	}

	if a.set.ValidateOutput {
		if err := a.comp.Validator.Validate(schema); err != nil {
			a.set.Logger.Error().Err(err).Msg("输出未通过 JSON Schema 校验")
		}
	}

	res := &ParseResult{Schema: schema, Sections: sections, UnparsedSections: unparsed}
	if opts.IncludeConfidence {
		res.Confidence = report
	}
	return res
}

// score 评分器 panic 时返回全零报告
func (a *SchemaAssembler) score(draft *types.DraftSchema) (report *types.ConfidenceReport) {
	defer func() {
		if rec := recover(); rec != nil {
			a.set.Logger.Error().Interface("panic", rec).Msg("评分失败，质量分记为 0")
			report = a.comp.Scorer.Score(nil)
		}
	}()
	return a.comp.Scorer.Score(draft)
}

// String 便于日志输出
func (r *ParseResult) String() string {
	if r == nil || r.Schema == nil {
		return "<nil>"
	}
	return fmt.Sprintf("sections=%d unparsed=%d quality=%.2f", len(r.Sections), len(r.UnparsedSections), r.Schema.ResumeQualityScore)
}
