// Package mysql 提供通知服务的 GORM 持久化实现
package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/fundflow/backoffice/internal/notification/domain"
)

// NotificationModel 通知数据库模型，对应 notifications 表
type NotificationModel struct {
	gorm.Model
	NotificationID string     `gorm:"column:notification_id;type:varchar(32);uniqueIndex;not null"`
	SiloID         string     `gorm:"column:silo_id;type:varchar(64);index;not null"`
	AppID          string     `gorm:"column:app_id;type:varchar(32);index"`
	Channel        string     `gorm:"column:channel;type:varchar(16);not null"`
	Target         string     `gorm:"column:target;type:varchar(128);not null"`
	Subject        string     `gorm:"column:subject;type:varchar(128)"`
	Content        string     `gorm:"column:content;type:text"`
	Status         string     `gorm:"column:status;type:varchar(16);index;not null;default:'pending'"`
	ErrorMessage   string     `gorm:"column:error_message;type:text"`
	SentAt         *time.Time `gorm:"column:sent_at"`
	Read           bool       `gorm:"column:read;not null;default:false"`
}

// TableName 指定表名
func (NotificationModel) TableName() string {
	return "notifications"
}

func toModel(n *domain.Notification) *NotificationModel {
	return &NotificationModel{
		Model:          gorm.Model{ID: n.ID, CreatedAt: n.CreatedAt, UpdatedAt: n.UpdatedAt},
		NotificationID: n.NotificationID,
		SiloID:         n.SiloID,
		AppID:          n.AppID,
		Channel:        string(n.Channel),
		Target:         n.Target,
		Subject:        n.Subject,
		Content:        n.Content,
		Status:         string(n.Status),
		ErrorMessage:   n.ErrorMessage,
		SentAt:         n.SentAt,
		Read:           n.Read,
	}
}

func toNotification(m *NotificationModel) *domain.Notification {
	return &domain.Notification{
		ID:             m.ID,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		NotificationID: m.NotificationID,
		SiloID:         m.SiloID,
		AppID:          m.AppID,
		Channel:        domain.Channel(m.Channel),
		Target:         m.Target,
		Subject:        m.Subject,
		Content:        m.Content,
		Status:         domain.Status(m.Status),
		ErrorMessage:   m.ErrorMessage,
		SentAt:         m.SentAt,
		Read:           m.Read,
	}
}

// notificationRepository 通知仓储实现
type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository 创建并返回一个新的 notificationRepository 实例。
func NewNotificationRepository(db *gorm.DB) domain.NotificationRepository {
	return &notificationRepository{db: db}
}

// Save 保存通知，ID 为零值时新建
func (r *notificationRepository) Save(ctx context.Context, n *domain.Notification) error {
	model := toModel(n)

	if n.ID == 0 {
		if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
			return err
		}
		n.ID = model.ID
		n.CreatedAt = model.CreatedAt
		n.UpdatedAt = model.UpdatedAt
		return nil
	}
	return r.db.WithContext(ctx).Save(model).Error
}

// Get 按业务主键查找通知，不存在时返回 (nil, nil)
func (r *notificationRepository) Get(ctx context.Context, notificationID string) (*domain.Notification, error) {
	var model NotificationModel
	if err := r.db.WithContext(ctx).Where("notification_id = ?", notificationID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toNotification(&model), nil
}

// ListBySilo 按 silo 分页列出通知，按创建时间倒序
func (r *notificationRepository) ListBySilo(ctx context.Context, siloID string, limit, offset int) ([]*domain.Notification, error) {
	var models []*NotificationModel
	if err := r.db.WithContext(ctx).
		Where("silo_id = ?", siloID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]*domain.Notification, len(models))
	for i, m := range models {
		out[i] = toNotification(m)
	}
	return out, nil
}

// ListByApplication 按申请列出通知
func (r *notificationRepository) ListByApplication(ctx context.Context, appID string) ([]*domain.Notification, error) {
	var models []*NotificationModel
	if err := r.db.WithContext(ctx).
		Where("app_id = ?", appID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]*domain.Notification, len(models))
	for i, m := range models {
		out[i] = toNotification(m)
	}
	return out, nil
}
