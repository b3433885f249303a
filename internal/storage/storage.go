package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"recruit-pipeline/internal/config"
)

// Storage 存储管理器，聚合所有存储相关依赖
type Storage struct {
	// 关系型数据库，流水线状态的唯一来源
	MySQL *MySQL

	// 分布式锁
	Redis *Redis

	// 头像
	MinIO *MinIO

	// 领域事件
	RabbitMQ *RabbitMQ

	logger zerolog.Logger
}

// NewStorage 创建存储管理器。MySQL 是必需的，其余组件初始化失败只记录警告。
func NewStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	logger = logger.With().Str("component", "storage").Logger()
	s := &Storage{logger: logger}
	var err error
	var initErrors []string

	s.MySQL, err = NewMySQL(&cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("初始化MySQL失败: %w", err)
	}

	if cfg.Redis.Address != "" {
		s.Redis, err = NewRedisAdapter(&cfg.Redis)
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		}
	} else {
		logger.Warn().Msg("Redis未配置，晋级操作将不加分布式锁")
	}

	if cfg.MinIO.Endpoint != "" {
		s.MinIO, err = NewMinIO(&cfg.MinIO, logger)
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("MinIO: %v", err))
		}
	}

	if cfg.RabbitMQ.URL != "" {
		s.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ, logger)
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
		} else if err := s.RabbitMQ.SetupPipelineTopology(); err != nil {
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ topology: %v", err))
		}
	}

	if len(initErrors) > 0 {
		logger.Warn().Str("errors", strings.Join(initErrors, "; ")).Msg("以下存储组件初始化失败")
	}
	return s, nil
}

// Pipeline 返回基于 MySQL 的流水线仓储
func (s *Storage) Pipeline(exchange string) *PipelineStore {
	return NewPipelineStore(s.MySQL.DB(), exchange)
}

// Ping 检查 MySQL 与 Redis 的连通性，用于健康检查
func (s *Storage) Ping(ctx context.Context) error {
	sqlDB, err := s.MySQL.DB().DB()
	if err != nil {
		return fmt.Errorf("获取MySQL连接失败: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("MySQL不可用: %w", err)
	}
	if s.Redis != nil {
		if err := s.Redis.Ping(ctx); err != nil {
			return fmt.Errorf("Redis不可用: %w", err)
		}
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
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			s.logger.Error().Err(err).Msg("关闭Redis连接失败")
		}
	}
}
