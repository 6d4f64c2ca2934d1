package processor

import (
	"errors"
	"fmt"
)

// 服务层基础错误
var (
	ErrRecordNotFound    = errors.New("解析记录不存在")
	ErrStoreNotInit      = errors.New("记录库未配置")
	ErrObjectStoreInit   = errors.New("对象存储未配置")
	ErrArchiveFailed     = errors.New("归档解析结果失败")
	ErrFetchObjectFailed = errors.New("下载原始文件失败")
	ErrInvalidJob        = errors.New("解析任务消息无效")
)

// ResumeProcessError 包含记录 ID 与操作名的服务层错误
type ResumeProcessError struct {
	RecordID string
	Op       string
	BaseErr  error
	Detail   string
}

func (e *ResumeProcessError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, 记录:%s): %s", e.BaseErr, e.Op, e.RecordID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, 记录:%s)", e.BaseErr, e.Op, e.RecordID)
}

func (e *ResumeProcessError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *ResumeProcessError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// NewArchiveError 归档（对象存储或记录库）失败
func NewArchiveError(recordID string, err error) error {
	return &ResumeProcessError{
		RecordID: recordID,
		Op:       "archive",
		BaseErr:  fmt.Errorf("%w: %w", ErrArchiveFailed, err),
	}
}

// NewFetchError 任务消费时下载原始文件失败
func NewFetchError(recordID string, err error) error {
	return &ResumeProcessError{
		RecordID: recordID,
		Op:       "fetch",
		BaseErr:  fmt.Errorf("%w: %w", ErrFetchObjectFailed, err),
	}
}

// NewJobError 任务消息无法处理，不应重试
func NewJobError(recordID, detail string) error {
	return &ResumeProcessError{
		RecordID: recordID,
		Op:       "job",
		BaseErr:  ErrInvalidJob,
		Detail:   detail,
	}
}
