package storage

import (
	"context"
	"fmt"
	"strings"

	"parsely-go/internal/config"
	"parsely-go/internal/storage/models"

	"github.com/rs/zerolog"
)

// RecordRepository 解析记录与 outbox 的持久化，MySQL 与 SQLite 均实现
type RecordRepository interface {
	SaveRecord(ctx context.Context, record *models.ResumeRecord, event *models.OutboxMessage) error
	GetRecord(ctx context.Context, id string) (*models.ResumeRecord, error)
	ListRecords(ctx context.Context, limit, offset int) ([]models.ResumeRecord, int64, error)
	WithPendingOutbox(ctx context.Context, limit int, fn func(msgs []models.OutboxMessage)) (int, error)
	Close() error
}

var (
	_ RecordRepository = (*MySQL)(nil)
	_ RecordRepository = (*SQLite)(nil)
)

// Storage 存储管理器，聚合所有存储相关依赖。未配置的组件为 nil
type Storage struct {
	// 对象存储
	MinIO *MinIO

	// 消息队列
	RabbitMQ *RabbitMQ

	// 关系型数据库，二选一
	MySQL  *MySQL
	SQLite *SQLite

	// 键值存储
	Redis *Redis

	logger zerolog.Logger
}

// NewStorage 按配置初始化各存储组件。单个组件失败只记录警告，
// 配置了组件却全部失败时返回错误
func NewStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	s := &Storage{logger: logger}
	var err error
	var initErrors []string
	configured := 0

	if cfg.MinIO.Endpoint != "" {
		configured++
		s.MinIO, err = NewMinIO(&cfg.MinIO, logger.With().Str("component", "minio").Logger())
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("MinIO: %v", err))
		}
	}

	if cfg.RabbitMQ.URL != "" {
		configured++
		s.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ, logger.With().Str("component", "rabbitmq").Logger())
		if err == nil {
			err = s.RabbitMQ.SetupTopology()
		}
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
		}
	}

	if cfg.MySQL.Host != "" {
		configured++
		s.MySQL, err = NewMySQL(&cfg.MySQL, logger.With().Str("component", "mysql").Logger())
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("MySQL: %v", err))
		}
	} else if cfg.SQLite.Path != "" {
		configured++
		s.SQLite, err = NewSQLite(cfg.SQLite.Path, logger.With().Str("component", "sqlite").Logger())
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("SQLite: %v", err))
		}
	}

	if cfg.Redis.Address != "" {
		configured++
		s.Redis, err = NewRedisAdapter(&cfg.Redis)
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		}
	}

	if configured > 0 && len(initErrors) == configured {
		return nil, fmt.Errorf("所有存储组件初始化失败: %s", strings.Join(initErrors, "; "))
	}
	if len(initErrors) > 0 {
		logger.Warn().Str("errors", strings.Join(initErrors, "; ")).Msg("部分存储组件初始化失败")
	}
	return s, nil
}

// Records 返回已初始化的记录库，MySQL 优先；都没有时返回 nil
func (s *Storage) Records() RecordRepository {
	if s == nil {
		return nil
	}
	if s.MySQL != nil {
		return s.MySQL
	}
	if s.SQLite != nil {
		return s.SQLite
	}
	return nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			s.logger.Error().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			s.logger.Error().Err(err).Msg("关闭MySQL连接失败")
		}
	}
	if s.SQLite != nil {
		if err := s.SQLite.Close(); err != nil {
			s.logger.Error().Err(err).Msg("关闭SQLite失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			s.logger.Error().Err(err).Msg("关闭Redis连接失败")
		}
	}
}
