package types

import (
	"errors"
	"fmt"
)

// 解析错误分类
var (
	// ErrInput 输入为空或不可读，降级为空 schema
	ErrInput = errors.New("输入文本无效")
	// ErrExtractionMiss 抽取器未找到内容，记为缺失
	ErrExtractionMiss = errors.New("未抽取到字段")
	// ErrNormalizationReject 取值未通过合理性检查，丢弃该值
	ErrNormalizationReject = errors.New("字段值未通过规范化校验")
	// ErrConfiguration 词典/阈值/权重配置错误，启动时致命
	ErrConfiguration = errors.New("配置错误")
)

// ParseError 带上下文的解析错误
type ParseError struct {
	Kind   error
	Op     string
	Field  string
	Detail string
	Err    error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s (操作:%s", e.Kind, e.Op)
	if e.Field != "" {
		msg += ", 字段:" + e.Field
	}
	msg += ")"
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is 支持 errors.Is 按分类比较
func (e *ParseError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// NewInputError 构造输入错误
func NewInputError(op, detail string) error {
	return &ParseError{Kind: ErrInput, Op: op, Detail: detail}
}

// NewExtractionMiss 构造抽取缺失
func NewExtractionMiss(op, field, detail string) error {
	return &ParseError{Kind: ErrExtractionMiss, Op: op, Field: field, Detail: detail}
}

// NewNormalizationReject 构造规范化拒绝
func NewNormalizationReject(field, detail string) error {
	return &ParseError{Kind: ErrNormalizationReject, Op: "normalize", Field: field, Detail: detail}
}

// NewConfigurationError 构造配置错误
func NewConfigurationError(op, detail string, err error) error {
	return &ParseError{Kind: ErrConfiguration, Op: op, Detail: detail, Err: err}
}
