package parser

import (
	"fmt"

	"parsely-go/internal/dictionary"
	"parsely-go/internal/ner"
	"parsely-go/internal/types"

	"github.com/rs/zerolog"
)

// FieldExtractor 每种章节类型一个抽取策略。实现不得 panic，也不返回错误：找不到内容就返回空切片
type FieldExtractor interface {
	Extract(section types.Section) []types.ExtractionField
}

// ExtractorFunc 函数适配器
type ExtractorFunc func(section types.Section) []types.ExtractionField

// Extract 实现 FieldExtractor
func (f ExtractorFunc) Extract(section types.Section) []types.ExtractionField {
	return f(section)
}

// Registry 章节类型到抽取策略的固定分派表，启动时按 NLP 模型各构建一次
type Registry struct {
	table  map[types.SectionType]FieldExtractor
	logger zerolog.Logger
}

// NewRegistry 构建分派表
func NewRegistry(dict *dictionary.Dictionary, recognizer ner.EntityRecognizer, logger zerolog.Logger) (*Registry, error) {
	if dict == nil {
		return nil, types.NewConfigurationError("registry", "dictionary 不能为空", nil)
	}
	if recognizer == nil {
		return nil, types.NewConfigurationError("registry", "recognizer 不能为空", nil)
	}

	contact := newContactExtractor()
	header := newHeaderExtractor(dict, recognizer, contact, logger)
	education := newEducationExtractor(dict)
	experience := newExperienceExtractor(dict)
	skills := newSkillsExtractor(dict)
	summary := newSummaryExtractor(dict)
	credentials := newCredentialExtractor(dict)
	publications := newPublicationExtractor(dict)
	testScores := newTestScoreExtractor(dict)

	other := ExtractorFunc(func(s types.Section) []types.ExtractionField {
		var out []types.ExtractionField
		if s.Ordinal == 0 {
			out = append(out, header.Extract(s)...)
		} else {
			out = append(out, contact.Extract(s)...)
		}
		return append(out, testScores.Extract(s)...)
	})

	r := &Registry{
		table: map[types.SectionType]FieldExtractor{
			types.SectionHeader:         header,
			types.SectionEducation:      education,
			types.SectionExperience:     experience,
			types.SectionSkills:         skills,
			types.SectionSummary:        summary,
			types.SectionCertifications: credentials,
			types.SectionAchievements:   credentials,
			types.SectionPublications:   publications,
			types.SectionTestScores:     testScores,
			types.SectionOther:          other,
		},
		logger: logger,
	}
	for _, t := range types.AllSectionTypes() {
		if _, ok := r.table[t]; !ok {
			return nil, types.NewConfigurationError("registry", fmt.Sprintf("章节类型 %s 缺少抽取器", t), nil)
		}
	}
	return r, nil
}

// Extract 查表分派。抽取器 panic 时记录日志并返回空结果
func (r *Registry) Extract(section types.Section) (fields []types.ExtractionField) {
	extractor, ok := r.table[section.Type]
	if !ok {
		extractor = r.table[types.SectionOther]
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Str("section", string(section.Type)).
				Int("ordinal", section.Ordinal).
				Interface("panic", rec).
				Msg("字段抽取器发生panic，章节按未解析处理")
			fields = nil
		}
	}()
	return extractor.Extract(section)
}

func newField(name types.FieldName, value string, s types.Section, method types.ExtractionMethod, attrs map[string]string) types.ExtractionField {
	return types.ExtractionField{
		Name:       name,
		Value:      value,
		Attributes: attrs,
		Section:    s.Ref(),
		Method:     method,
	}
}
