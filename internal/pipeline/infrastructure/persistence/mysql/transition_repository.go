package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/fundflow/backoffice/internal/pipeline/domain"
	"github.com/fundflow/backoffice/pkg/db"
)

// transitionRepository 阶段流转审计记录仓储，只插入不更新
type transitionRepository struct {
	db *gorm.DB
}

// NewTransitionRepository 创建并返回一个新的 transitionRepository 实例。
func NewTransitionRepository(db *gorm.DB) domain.TransitionRecorder {
	return &transitionRepository{db: db}
}

// Record 写入一条审计记录
func (r *transitionRepository) Record(ctx context.Context, record *domain.TransitionRecord) error {
	model := toTransitionRecordModel(record)
	if err := r.getDB(ctx).WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	record.ID = model.ID
	record.CreatedAt = model.CreatedAt
	return nil
}

// ListByApplication 按申请列出审计记录，按发生时间倒序
func (r *transitionRepository) ListByApplication(ctx context.Context, appID string, limit, offset int) ([]*domain.TransitionRecord, error) {
	var models []*TransitionRecordModel
	if err := r.getDB(ctx).WithContext(ctx).
		Where("app_id = ?", appID).
		Order("recorded_at DESC").
		Limit(limit).Offset(offset).
		Find(&models).Error; err != nil {
		return nil, err
	}

	records := make([]*domain.TransitionRecord, len(models))
	for i, m := range models {
		records[i] = toTransitionRecord(m)
	}
	return records, nil
}

func (r *transitionRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := db.TxFromContext(ctx); ok {
		return tx
	}
	return r.db
}
