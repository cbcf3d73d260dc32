package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/fundflow/backoffice/internal/document/domain"
)

// applicationRow 申请目录查询只需要的两列
type applicationRow struct {
	SiloID       string `gorm:"column:silo_id"`
	CurrentStage string `gorm:"column:current_stage"`
}

// applicationDirectory 基于共享的 applications 表实现申请目录
type applicationDirectory struct {
	db *gorm.DB
}

// NewApplicationDirectory 创建并返回一个新的 applicationDirectory 实例。
func NewApplicationDirectory(db *gorm.DB) domain.ApplicationDirectory {
	return &applicationDirectory{db: db}
}

// Lookup 返回申请的归属 silo 与当前阶段
func (d *applicationDirectory) Lookup(ctx context.Context, appID string) (string, string, error) {
	var row applicationRow
	err := d.db.WithContext(ctx).
		Table("applications").
		Select("silo_id", "current_stage").
		Where("app_id = ?", appID).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", domain.ErrApplicationNotFound
		}
		return "", "", err
	}
	return row.SiloID, row.CurrentStage, nil
}
