package processor

import (
	"parsely-go/internal/normalize"
	"parsely-go/internal/parser"
	"parsely-go/internal/schemas"
	"parsely-go/internal/scoring"
	"parsely-go/internal/types"

	"github.com/rs/zerolog"
)

// Components 聚合流水线的各阶段组件，便于集中管理和测试替换
type Components struct {
	Segmenter  *parser.SectionSegmenter
	Registries map[types.NLPModel]*parser.Registry // 每个 NLP 模型一张抽取分派表
	Normalizer *normalize.Normalizer
	Scorer     *scoring.Scorer
	Validator  *schemas.Validator // 可选，输出 JSON Schema 校验
}

// Settings 纯配置项，不包含任何业务逻辑组件
type Settings struct {
	Logger         zerolog.Logger
	ValidateOutput bool // 开启后每次输出都做 JSON Schema 校验，失败只记日志
}

// ComponentOpt 组件选项类型，仅改变 Components 结构体内的字段
type ComponentOpt func(*Components)

// SettingOpt 设置选项类型，仅改变 Settings 结构体内的字段
type SettingOpt func(*Settings)

// WithcompSegmenter 设置分段器
func WithcompSegmenter(s *parser.SectionSegmenter) ComponentOpt {
	return func(c *Components) {
		c.Segmenter = s
	}
}

// WithcompRegistry 设置某个 NLP 模型对应的抽取分派表
func WithcompRegistry(model types.NLPModel, r *parser.Registry) ComponentOpt {
	return func(c *Components) {
		if c.Registries == nil {
			c.Registries = make(map[types.NLPModel]*parser.Registry)
		}
		c.Registries[model] = r
	}
}

// WithcompNormalizer 设置规范化器
func WithcompNormalizer(n *normalize.Normalizer) ComponentOpt {
	return func(c *Components) {
		c.Normalizer = n
	}
}

// WithcompScorer 设置评分器
func WithcompScorer(s *scoring.Scorer) ComponentOpt {
	return func(c *Components) {
		c.Scorer = s
	}
}

// WithcompValidator 设置输出校验器
func WithcompValidator(v *schemas.Validator) ComponentOpt {
	return func(c *Components) {
		c.Validator = v
	}
}

// WithsetLogger 设置日志记录器
func WithsetLogger(logger zerolog.Logger) SettingOpt {
	return func(s *Settings) {
		s.Logger = logger
	}
}

// WithsetValidateOutput 设置是否在运行时校验输出
func WithsetValidateOutput(validate bool) SettingOpt {
	return func(s *Settings) {
		s.ValidateOutput = validate
	}
}
