// Package domain 通知服务的领域模型
package domain

import (
	"context"
	"errors"
	"time"
)

// 通知领域错误
var (
	// ErrNotificationNotFound 通知不存在
	ErrNotificationNotFound = errors.New("notification not found")
)

// Channel 通知渠道
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// Status 通知状态
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Notification 通知实体
type Notification struct {
	ID        uint      `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// 业务主键
	NotificationID string `json:"notification_id"`
	// 归属 silo，与触发事件的申请一致
	SiloID string `json:"silo_id"`
	// 关联申请业务主键
	AppID   string  `json:"app_id"`
	Channel Channel `json:"channel"`
	// 接收方（邮箱、手机号或设备令牌）
	Target  string `json:"target"`
	Subject string `json:"subject"`
	Content string `json:"content"`
	Status  Status `json:"status"`
	// 发送失败原因
	ErrorMessage string `json:"error_message,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	// 是否已被后台用户查看
	Read bool `json:"read"`
}

// NotificationRepository 通知仓储接口
type NotificationRepository interface {
	Save(ctx context.Context, n *Notification) error
	// 按业务主键查找，不存在时返回 (nil, nil)
	Get(ctx context.Context, notificationID string) (*Notification, error)
	// 按 silo 分页列出通知，按创建时间倒序
	ListBySilo(ctx context.Context, siloID string, limit, offset int) ([]*Notification, error)
	// 按申请列出通知
	ListByApplication(ctx context.Context, appID string) ([]*Notification, error)
}

// Sender 通知发送端口
type Sender interface {
	Send(ctx context.Context, target, subject, content string) error
}
