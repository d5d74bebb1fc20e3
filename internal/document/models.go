package document

import (
	"fmt"
	"time"
)

// Document 生命周期状态
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

// Document 文档元数据。
// 记录本身由外部管理服务拥有, 摄取链路只读取路径/归属,
// 并在结束时写回终态。
type Document struct {
	ID         int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	Name       string `json:"name" gorm:"size:500;not null"`
	CategoryID *int64 `json:"categoryId" gorm:"index"` // 为空表示个人空间文档
	UserID     int64  `json:"userId" gorm:"not null;index"`

	FilePath string `json:"filePath" gorm:"type:text;not null"`
	FileSize int64  `json:"fileSize"`
	FileType string `json:"fileType" gorm:"size:50"`

	Status       string `json:"status" gorm:"size:50;not null;default:pending"`
	ErrorMessage string `json:"errorMessage" gorm:"type:text"`

	CreatedAt time.Time  `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time  `json:"updatedAt" gorm:"not null;autoUpdateTime"`
	DeletedAt *time.Time `json:"deletedAt,omitempty" gorm:"index"`
}

// Settings 文档的分块配置
type Settings struct {
	ID         int64 `json:"id" gorm:"primaryKey;autoIncrement"`
	DocumentID int64 `json:"documentId" gorm:"not null;uniqueIndex"`

	Mode         string  `json:"mode" gorm:"size:50;not null;default:auto"`
	MaxSize      int     `json:"maxSize" gorm:"not null;default:1000"`
	OverlapRatio float64 `json:"overlapRatio" gorm:"not null;default:0.2"`
	Separators   string  `json:"separators" gorm:"type:text"` // JSON 数组, 为空用默认级联

	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// Collection 返回文档所属的向量存储命名空间:
// 有归属分类时按分类隔离, 否则落到个人空间
func (d *Document) Collection() string {
	if d.CategoryID != nil {
		return fmt.Sprintf("category_%d", *d.CategoryID)
	}
	return fmt.Sprintf("user_%d", d.UserID)
}
