package processor

import (
	"context"

	"parsely-go/internal/storage/models"
	"parsely-go/internal/types"
)

// ParseResult 单次解析的完整结果
type ParseResult struct {
	Schema           *types.ResumeSchema     `json:"parsed"`
	Confidence       *types.ConfidenceReport `json:"confidence,omitempty"`
	Sections         []types.Section         `json:"sections,omitempty"`
	UnparsedSections []types.SectionRef      `json:"unparsed_sections,omitempty"`
}

// View 按是否需要置信度返回结果视图。不需要时复制 schema 并去掉置信度，原结果不变
func (r *ParseResult) View(includeConfidence bool) *ParseResult {
	if r == nil || includeConfidence {
		return r
	}
	out := *r
	out.Confidence = nil
	if r.Schema != nil {
		schema := *r.Schema
		schema.ConfidencePercentage = nil
		out.Schema = &schema
	}
	return &out
}

//
// 流水线相关接口
//

// Pipeline 解析流水线。实现必须是纯计算：同样的输入得到同样的输出，永不失败
type Pipeline interface {
	Parse(ctx context.Context, doc types.RawDocument, opts types.ParseOptions) *ParseResult
}

// TextExtractor 把上传文件转为纯文本
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, filename, mimeType string) (types.RawDocument, error)
}

// ResultCache 解析结果缓存，键为内容哈希与 NLP 模型
type ResultCache interface {
	Get(ctx context.Context, key string) (*ParseResult, bool)
	Set(ctx context.Context, key string, result *ParseResult)
}

//
// 存储相关接口
//

// RecordStore 解析记录持久化。event 非空时与记录在同一事务内写入 outbox
type RecordStore interface {
	SaveRecord(ctx context.Context, record *models.ResumeRecord, event *models.OutboxMessage) error
	GetRecord(ctx context.Context, id string) (*models.ResumeRecord, error)
	ListRecords(ctx context.Context, limit, offset int) ([]models.ResumeRecord, int64, error)
}

// ObjectStore 原始文件与解析结果归档
type ObjectStore interface {
	UploadRaw(ctx context.Context, recordID, ext string, data []byte, contentType string) (string, error)
	UploadParsed(ctx context.Context, recordID string, data []byte) (string, error)
	GetObject(ctx context.Context, objectKey string) ([]byte, error)
	DeleteObject(ctx context.Context, objectKey string) error
}
