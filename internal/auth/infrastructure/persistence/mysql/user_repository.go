// Package mysql 提供认证服务的 GORM 持久化实现
package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/fundflow/backoffice/internal/auth/domain"
	"github.com/fundflow/backoffice/pkg/authn"
	"github.com/fundflow/backoffice/pkg/db"
)

// UserModel 用户数据库模型，对应 users 表
type UserModel struct {
	gorm.Model
	Email        string `gorm:"column:email;type:varchar(128);uniqueIndex;not null"`
	PasswordHash string `gorm:"column:password_hash;type:varchar(128);not null"`
	Role         string `gorm:"column:role;type:varchar(32);not null"`
	// silo 分配集合，JSON 数组
	Silos string `gorm:"column:silos;type:text"`
}

// TableName 指定表名
func (UserModel) TableName() string {
	return "users"
}

func toUserModel(user *domain.User) (*UserModel, error) {
	silos, err := json.Marshal(user.Silos)
	if err != nil {
		return nil, err
	}
	return &UserModel{
		Model: gorm.Model{
			ID:        user.ID,
			CreatedAt: user.CreatedAt,
			UpdatedAt: user.UpdatedAt,
		},
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Role:         string(user.Role),
		Silos:        string(silos),
	}, nil
}

func toUser(m *UserModel) (*domain.User, error) {
	silos := []string{}
	if m.Silos != "" {
		if err := json.Unmarshal([]byte(m.Silos), &silos); err != nil {
			return nil, err
		}
	}
	return &domain.User{
		ID:           m.ID,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         authn.Role(m.Role),
		Silos:        silos,
	}, nil
}

// userRepository 用户仓储实现
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建并返回一个新的 userRepository 实例。
func NewUserRepository(db *gorm.DB) domain.UserRepository {
	return &userRepository{db: db}
}

// WithTx 在事务中执行 fn
func (r *userRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		txCtx := db.WithTxContext(ctx, tx)
		return fn(txCtx)
	})
}

// Save 保存用户，ID 为零值时新建
func (r *userRepository) Save(ctx context.Context, user *domain.User) error {
	model, err := toUserModel(user)
	if err != nil {
		return err
	}
	db := r.getDB(ctx)

	if user.ID == 0 {
		if err := db.WithContext(ctx).Create(model).Error; err != nil {
			return err
		}
		user.ID = model.ID
		user.CreatedAt = model.CreatedAt
		user.UpdatedAt = model.UpdatedAt
		return nil
	}

	if err := db.WithContext(ctx).Save(model).Error; err != nil {
		return err
	}
	user.UpdatedAt = time.Now()
	return nil
}

// GetByEmail 按邮箱查找用户，不存在时返回 (nil, nil)
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var model UserModel
	if err := r.getDB(ctx).WithContext(ctx).Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toUser(&model)
}

// GetByID 按 ID 查找用户，不存在时返回 (nil, nil)
func (r *userRepository) GetByID(ctx context.Context, id uint) (*domain.User, error) {
	var model UserModel
	if err := r.getDB(ctx).WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toUser(&model)
}

func (r *userRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := db.TxFromContext(ctx); ok {
		return tx
	}
	return r.db
}
