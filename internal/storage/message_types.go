package storage

import (
	"time"

	"parsely-go/internal/types"
)

// ParseJobMessage 异步解析任务，原始文件已上传到对象存储
type ParseJobMessage struct {
	RecordID    string    `json:"record_id"`
	ObjectKey   string    `json:"object_key"`
	Filename    string    `json:"filename"`
	MimeType    string    `json:"mime_type,omitempty"`
	ContentMD5  string    `json:"content_md5,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`

	IncludeConfidence bool           `json:"include_confidence,omitempty"`
	NLPModel          types.NLPModel `json:"nlp_model,omitempty"`
}

// ResumeParsedEvent 解析完成后经 outbox 发布的事件
type ResumeParsedEvent struct {
	RecordID        string    `json:"record_id"`
	ContentMD5      string    `json:"content_md5"`
	Source          string    `json:"source"`
	Status          string    `json:"status"`
	QualityScore    float64   `json:"resume_quality_score"`
	ParsedObjectKey string    `json:"parsed_object_key,omitempty"`
	ParsedAt        time.Time `json:"parsed_at"`
}
