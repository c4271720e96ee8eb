package models

import (
	"time"

	"gorm.io/datatypes"
)

// 提取状态
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusFailed   = "failed"
)

// ExtractionRecord 每次 /extract-text 请求的审计记录
type ExtractionRecord struct {
	ID         uint   `gorm:"primaryKey"`
	RequestID  string `gorm:"uniqueIndex;size:36;not null"`
	Filename   string
	Size       int64
	Format     string `gorm:"size:16"`
	Model      string
	Status     string `gorm:"index;size:16"`
	Attempts   int
	DurationMs int64
	Error      string         `gorm:"type:text"`
	Result     datatypes.JSON // 成功时保存解析出的JSON对象
	CreatedAt  time.Time
}
