// Package schemas 校验输出的结构化简历是否符合 resume.schema.json
package schemas

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"parsely-go/internal/types"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed resume.schema.json
var resumeSchemaJSON []byte

const resumeSchemaURL = "resume.schema.json"

// ResumeSchemaJSON 返回内嵌的 JSON Schema 原文
func ResumeSchemaJSON() []byte {
	return append([]byte(nil), resumeSchemaJSON...)
}

// Validator 编译后的输出校验器，可并发使用
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator 编译内嵌的 schema
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource(resumeSchemaURL, bytes.NewReader(resumeSchemaJSON)); err != nil {
		return nil, types.NewConfigurationError("schemas.add", "加载 resume schema 失败", err)
	}
	schema, err := compiler.Compile(resumeSchemaURL)
	if err != nil {
		return nil, types.NewConfigurationError("schemas.compile", "编译 resume schema 失败", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate 校验结构化简历
func (v *Validator) Validate(resume *types.ResumeSchema) error {
	if resume == nil {
		return fmt.Errorf("简历为空")
	}
	data, err := json.Marshal(resume)
	if err != nil {
		return fmt.Errorf("序列化简历失败: %w", err)
	}
	return v.ValidateJSON(data)
}

// ValidateJSON 校验任意 JSON 文档
func (v *Validator) ValidateJSON(data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("解析 JSON 失败: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("输出不符合 resume schema: %w", err)
	}
	return nil
}
