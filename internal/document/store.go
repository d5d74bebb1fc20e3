package document

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrDocumentNotFound 文档不存在
var ErrDocumentNotFound = errors.New("document not found")

// Store 文档元数据访问层
type Store struct {
	db *gorm.DB
}

// NewStore 创建文档存储
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate 迁移文档相关表结构
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&Document{}, &Settings{})
}

// Create 写入文档记录
func (s *Store) Create(ctx context.Context, doc *Document) error {
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("创建文档记录失败: %w", err)
	}
	return nil
}

// GetByID 按主键加载文档
func (s *Store) GetByID(ctx context.Context, id int64) (*Document, error) {
	var doc Document
	err := s.db.WithContext(ctx).Where("deleted_at IS NULL").First(&doc, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("查询文档失败: %w", err)
	}
	return &doc, nil
}

// GetSettings 读取文档的分块配置, 未配置时返回 nil
func (s *Store) GetSettings(ctx context.Context, documentID int64) (*Settings, error) {
	var settings Settings
	err := s.db.WithContext(ctx).Where("document_id = ?", documentID).First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询分块配置失败: %w", err)
	}
	return &settings, nil
}

// SaveSettings 写入或更新文档分块配置
func (s *Store) SaveSettings(ctx context.Context, settings *Settings) error {
	var existing Settings
	err := s.db.WithContext(ctx).Where("document_id = ?", settings.DocumentID).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := s.db.WithContext(ctx).Create(settings).Error; err != nil {
				return fmt.Errorf("创建分块配置失败: %w", err)
			}
			return nil
		}
		return fmt.Errorf("查询分块配置失败: %w", err)
	}
	settings.ID = existing.ID
	if err := s.db.WithContext(ctx).Save(settings).Error; err != nil {
		return fmt.Errorf("更新分块配置失败: %w", err)
	}
	return nil
}

// UpdateStatus 更新文档处理状态, errMsg 只在失败时有意义
func (s *Store) UpdateStatus(ctx context.Context, id int64, status, errMsg string) error {
	updates := map[string]interface{}{
		"status":        status,
		"error_message": errMsg,
	}
	result := s.db.WithContext(ctx).Model(&Document{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("更新文档状态失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}
