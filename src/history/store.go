package history

import (
	"context"
	"fmt"

	"ocr-server-go/src/configs/database"
	"ocr-server-go/src/core/utils"
	"ocr-server-go/src/models"

	"gorm.io/gorm"
)

// Store 提取审计记录存储
type Store interface {
	Save(ctx context.Context, record *models.ExtractionRecord) error
	Close() error
}

// NopStore 未配置数据库时使用，丢弃所有记录
type NopStore struct{}

func (NopStore) Save(context.Context, *models.ExtractionRecord) error { return nil }
func (NopStore) Close() error                                         { return nil }

// GormStore 基于 gorm 的记录存储
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建存储并迁移表结构
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&models.ExtractionRecord{}); err != nil {
		return nil, fmt.Errorf("迁移提取记录表失败: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Open 根据 DSN 打开存储，DSN 为空时返回 NopStore
func Open(dsn string, logger *utils.Logger) (Store, error) {
	if dsn == "" {
		logger.Info("未配置数据库，提取记录不会持久化")
		return NopStore{}, nil
	}

	db, dbType, err := database.InitDB(dsn)
	if err != nil {
		return nil, err
	}
	store, err := NewGormStore(db)
	if err != nil {
		return nil, err
	}
	logger.Info("提取记录存储已连接: %s", dbType)
	return store, nil
}

// Save 写入一条记录
func (s *GormStore) Save(ctx context.Context, record *models.ExtractionRecord) error {
	return s.db.WithContext(ctx).Create(record).Error
}

// Recent 按时间倒序返回最近的记录
func (s *GormStore) Recent(ctx context.Context, limit int) ([]models.ExtractionRecord, error) {
	var records []models.ExtractionRecord
	err := s.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&records).Error
	return records, err
}

// Close 关闭数据库连接
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
