package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"parsely-go/internal/storage/models"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS resume_records (
	record_id         TEXT PRIMARY KEY,
	filename          TEXT NOT NULL DEFAULT '',
	mime_type         TEXT NOT NULL DEFAULT '',
	content_md5       TEXT NOT NULL DEFAULT '',
	source            TEXT NOT NULL DEFAULT '',
	nlp_model         TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'parsed',
	error_message     TEXT NOT NULL DEFAULT '',
	parsed_json       TEXT,
	quality_score     REAL NOT NULL DEFAULT 0,
	raw_object_key    TEXT NOT NULL DEFAULT '',
	parsed_object_key TEXT NOT NULL DEFAULT '',
	parser_version    TEXT NOT NULL DEFAULT '',
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rr_content_md5 ON resume_records(content_md5);
CREATE INDEX IF NOT EXISTS idx_rr_created_at ON resume_records(created_at);

CREATE TABLE IF NOT EXISTS outbox_messages (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	aggregate_id       TEXT NOT NULL,
	event_type         TEXT NOT NULL,
	payload            TEXT NOT NULL,
	target_exchange    TEXT NOT NULL,
	target_routing_key TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'PENDING',
	retry_count        INTEGER NOT NULL DEFAULT 0,
	created_at         TEXT NOT NULL,
	processed_at       TEXT,
	error_message      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_outbox_status_created_at ON outbox_messages(status, created_at);
`

// SQLite 单机模式的记录库，表结构与 MySQL 版本一致
type SQLite struct {
	db     *sql.DB
	path   string
	logger zerolog.Logger
}

// NewSQLite 打开（必要时创建）SQLite 数据库并建表
func NewSQLite(path string, logger zerolog.Logger) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("SQLite路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建SQLite目录失败: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("打开SQLite失败: %w", err)
	}
	// 单写者，避免 SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化SQLite表结构失败: %w", err)
	}

	logger.Info().Str("path", path).Msg("SQLite记录库已就绪")
	return &SQLite{db: db, path: path, logger: logger}, nil
}

// Close 关闭数据库
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Path 数据库文件路径
func (s *SQLite) Path() string {
	return s.path
}

// 定长格式，字符串序即时间序
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SaveRecord 在同一事务中写入记录和 outbox 事件，event 可为 nil
func (s *SQLite) SaveRecord(ctx context.Context, record *models.ResumeRecord, event *models.OutboxMessage) error {
	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	var parsed interface{}
	if len(record.ParsedJSON) > 0 {
		parsed = string(record.ParsedJSON)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO resume_records (
			record_id, filename, mime_type, content_md5, source, nlp_model, status, error_message,
			parsed_json, quality_score, raw_object_key, parsed_object_key, parser_version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.RecordID, record.Filename, record.MimeType, record.ContentMD5, record.Source, record.NLPModel,
		record.Status, record.ErrorMessage, parsed, record.QualityScore, record.RawObjectKey,
		record.ParsedObjectKey, record.ParserVersion, formatTime(record.CreatedAt), formatTime(record.UpdatedAt))
	if err != nil {
		return fmt.Errorf("保存解析记录失败: %w", err)
	}

	if event != nil {
		if event.Status == "" {
			event.Status = models.OutboxStatusPending
		}
		if event.CreatedAt.IsZero() {
			event.CreatedAt = now
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO outbox_messages (
				aggregate_id, event_type, payload, target_exchange, target_routing_key, status, retry_count, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			event.AggregateID, event.EventType, event.Payload, event.TargetExchange, event.TargetRoutingKey,
			event.Status, event.RetryCount, formatTime(event.CreatedAt))
		if err != nil {
			return fmt.Errorf("写入outbox消息失败: %w", err)
		}
		if id, err := res.LastInsertId(); err == nil {
			event.ID = uint64(id)
		}
	}
	return tx.Commit()
}

const recordColumns = `record_id, filename, mime_type, content_md5, source, nlp_model, status, error_message,
	parsed_json, quality_score, raw_object_key, parsed_object_key, parser_version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*models.ResumeRecord, error) {
	var (
		rec                  models.ResumeRecord
		parsed               sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&rec.RecordID, &rec.Filename, &rec.MimeType, &rec.ContentMD5, &rec.Source, &rec.NLPModel,
		&rec.Status, &rec.ErrorMessage, &parsed, &rec.QualityScore, &rec.RawObjectKey, &rec.ParsedObjectKey,
		&rec.ParserVersion, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if parsed.Valid {
		rec.ParsedJSON = datatypes.JSON(parsed.String)
	}
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	return &rec, nil
}

// GetRecord 按 ID 查询记录
func (s *SQLite) GetRecord(ctx context.Context, id string) (*models.ResumeRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM resume_records WHERE record_id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询解析记录失败: %w", err)
	}
	return rec, nil
}

// ListRecords 按创建时间倒序分页，列表中不带解析结果
func (s *SQLite) ListRecords(ctx context.Context, limit, offset int) ([]models.ResumeRecord, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM resume_records`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("统计解析记录失败: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM resume_records ORDER BY created_at DESC, record_id LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("分页查询解析记录失败: %w", err)
	}
	defer rows.Close()

	records := make([]models.ResumeRecord, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("读取解析记录失败: %w", err)
		}
		rec.ParsedJSON = nil
		records = append(records, *rec)
	}
	return records, total, rows.Err()
}

// WithPendingOutbox 取一批 PENDING 消息交给 fn 处理，fn 返回后在同一事务内保存新状态
func (s *SQLite) WithPendingOutbox(ctx context.Context, limit int, fn func(msgs []models.OutboxMessage)) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload, target_exchange, target_routing_key, status, retry_count, created_at, error_message
		FROM outbox_messages WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT ?`,
		models.OutboxStatusPending, limit)
	if err != nil {
		return 0, fmt.Errorf("获取待发送outbox消息失败: %w", err)
	}
	var messages []models.OutboxMessage
	for rows.Next() {
		var m models.OutboxMessage
		var createdAt string
		if err := rows.Scan(&m.ID, &m.AggregateID, &m.EventType, &m.Payload, &m.TargetExchange,
			&m.TargetRoutingKey, &m.Status, &m.RetryCount, &createdAt, &m.ErrorMessage); err != nil {
			rows.Close()
			return 0, fmt.Errorf("读取outbox消息失败: %w", err)
		}
		m.CreatedAt = parseTime(createdAt)
		messages = append(messages, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(messages) == 0 {
		return 0, tx.Commit()
	}

	fn(messages)
	for _, m := range messages {
		var processed interface{}
		if m.ProcessedAt != nil {
			processed = formatTime(*m.ProcessedAt)
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE outbox_messages SET status = ?, retry_count = ?, processed_at = ?, error_message = ? WHERE id = ?`,
			m.Status, m.RetryCount, processed, m.ErrorMessage, m.ID)
		if err != nil {
			return 0, fmt.Errorf("更新outbox消息 %d 失败: %w", m.ID, err)
		}
	}
	return len(messages), tx.Commit()
}
