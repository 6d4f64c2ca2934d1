package models

import (
	"time"

	"gorm.io/datatypes"
)

// ResumeRecord 一次解析请求的归档记录
type ResumeRecord struct {
	RecordID        string         `gorm:"type:char(36);primaryKey" json:"record_id"`
	Filename        string         `gorm:"type:varchar(255)" json:"filename"`
	MimeType        string         `gorm:"type:varchar(100)" json:"mime_type"`
	ContentMD5      string         `gorm:"type:char(32);index:idx_rr_content_md5" json:"content_md5"`
	Source          string         `gorm:"type:varchar(20);index:idx_rr_source" json:"source"`
	NLPModel        string         `gorm:"type:varchar(20)" json:"nlp_model"`
	Status          string         `gorm:"type:varchar(20);default:'parsed';index:idx_rr_status" json:"status"`
	ErrorMessage    string         `gorm:"type:text" json:"error,omitempty"`
	ParsedJSON      datatypes.JSON `gorm:"type:json" json:"parsed,omitempty"`
	QualityScore    float64        `gorm:"type:decimal(5,2)" json:"resume_quality_score"`
	RawObjectKey    string         `gorm:"type:varchar(1024)" json:"raw_object_key,omitempty"`
	ParsedObjectKey string         `gorm:"type:varchar(1024)" json:"parsed_object_key,omitempty"`
	ParserVersion   string         `gorm:"type:varchar(50)" json:"parser_version"`
	CreatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_rr_created_at" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (ResumeRecord) TableName() string {
	return "resume_records"
}
