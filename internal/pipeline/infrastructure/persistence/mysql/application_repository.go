package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/fundflow/backoffice/internal/pipeline/domain"
	"github.com/fundflow/backoffice/pkg/db"
)

// applicationRepository 申请仓储实现
type applicationRepository struct {
	db *gorm.DB
}

// NewApplicationRepository 创建并返回一个新的 applicationRepository 实例。
func NewApplicationRepository(db *gorm.DB) domain.ApplicationRepository {
	return &applicationRepository{db: db}
}

// WithTx 在事务中执行 fn，事务通过 ctx 向下传递
func (r *applicationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		txCtx := db.WithTxContext(ctx, tx)
		return fn(txCtx)
	})
}

// Save 保存申请，ID 为零值时新建
func (r *applicationRepository) Save(ctx context.Context, app *domain.Application) error {
	db := r.getDB(ctx)

	if app.ID == 0 {
		model := toApplicationModel(app)
		if err := db.WithContext(ctx).Create(model).Error; err != nil {
			return err
		}
		app.ID = model.ID
		app.CreatedAt = model.CreatedAt
		app.UpdatedAt = model.UpdatedAt
		return nil
	}

	model := toApplicationModel(app)
	if err := db.WithContext(ctx).Save(model).Error; err != nil {
		return err
	}
	app.UpdatedAt = time.Now()
	return nil
}

// Get 按业务主键查找申请，未找到时返回 (nil, nil)
func (r *applicationRepository) Get(ctx context.Context, appID string) (*domain.Application, error) {
	var model ApplicationModel
	if err := r.getDB(ctx).WithContext(ctx).Where("app_id = ?", appID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toApplication(&model), nil
}

// ListBySilo 按 silo 分页列出申请，按创建时间倒序
func (r *applicationRepository) ListBySilo(ctx context.Context, siloID string, limit, offset int) ([]*domain.Application, int64, error) {
	db := r.getDB(ctx).WithContext(ctx)

	var total int64
	if err := db.Model(&ApplicationModel{}).Where("silo_id = ?", siloID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []*ApplicationModel
	if err := db.Where("silo_id = ?", siloID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}

	apps := make([]*domain.Application, len(models))
	for i, m := range models {
		apps[i] = toApplication(m)
	}
	return apps, total, nil
}

// CompareAndSetStage 以 current_stage 为条件列做比较交换更新。
// 条件不命中说明阶段已被并发修改，返回 domain.ErrStaleStage 由上层重读重试。
func (r *applicationRepository) CompareAndSetStage(ctx context.Context, appID string, expected, next domain.Stage) (*domain.Application, error) {
	db := r.getDB(ctx)

	result := db.WithContext(ctx).Model(&ApplicationModel{}).
		Where("app_id = ? AND current_stage = ?", appID, expected).
		Updates(map[string]any{
			"current_stage": string(next),
			"updated_at":    time.Now(),
		})

	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, domain.ErrStaleStage
	}

	return r.Get(ctx, appID)
}

func (r *applicationRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := db.TxFromContext(ctx); ok {
		return tx
	}
	return r.db
}
