// Package application 编排通知用例：落库、分发与查询
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/pkg/idgen"

	"github.com/fundflow/backoffice/internal/notification/domain"
	"github.com/fundflow/backoffice/pkg/authn"
	"github.com/fundflow/backoffice/pkg/logger"
	"github.com/fundflow/backoffice/pkg/metrics"
)

// SendCommand 发送通知命令
type SendCommand struct {
	SiloID  string
	AppID   string
	Channel domain.Channel
	Target  string
	Subject string
	Content string
}

// NotificationManager 处理通知的写入与分发。
// 先落一条 pending 记录再发送，发送结果回写状态，保证轨迹可查。
type NotificationManager struct {
	repo    domain.NotificationRepository
	senders map[domain.Channel]domain.Sender
	policy  authn.SiloPolicy
	metrics *metrics.Metrics
}

// NewNotificationManager 构造函数，senders 按渠道注册
func NewNotificationManager(repo domain.NotificationRepository, senders map[domain.Channel]domain.Sender, policy authn.SiloPolicy, m *metrics.Metrics) *NotificationManager {
	if m == nil {
		m = metrics.New("notification")
	}
	return &NotificationManager{
		repo:    repo,
		senders: senders,
		policy:  policy,
		metrics: m,
	}
}

// Send 创建并分发一条通知，返回通知业务主键。
// 发送失败不是错误：通知记录为 failed 状态留档，由运维侧补发。
func (m *NotificationManager) Send(ctx context.Context, cmd SendCommand) (string, error) {
	n := &domain.Notification{
		NotificationID: fmt.Sprintf("NTF%d", idgen.GenID()),
		SiloID:         cmd.SiloID,
		AppID:          cmd.AppID,
		Channel:        cmd.Channel,
		Target:         cmd.Target,
		Subject:        cmd.Subject,
		Content:        cmd.Content,
		Status:         domain.StatusPending,
	}
	if err := m.repo.Save(ctx, n); err != nil {
		return "", err
	}

	sender, ok := m.senders[cmd.Channel]
	if !ok {
		n.Status = domain.StatusFailed
		n.ErrorMessage = fmt.Sprintf("unsupported channel: %s", cmd.Channel)
	} else if err := sender.Send(ctx, cmd.Target, cmd.Subject, cmd.Content); err != nil {
		n.Status = domain.StatusFailed
		n.ErrorMessage = err.Error()
		logger.Warn(ctx, "Notification dispatch failed",
			"notification_id", n.NotificationID,
			"channel", n.Channel,
			"error", err,
		)
	} else {
		n.Status = domain.StatusSent
		now := time.Now()
		n.SentAt = &now
		m.metrics.NotificationsSent.Inc()
	}

	if err := m.repo.Save(ctx, n); err != nil {
		logger.Error(ctx, "Failed to update notification status", "notification_id", n.NotificationID, "error", err)
	}
	return n.NotificationID, nil
}

// MarkRead 标记通知为已读，调用者必须可访问通知的归属 silo
func (m *NotificationManager) MarkRead(ctx context.Context, caller authn.Identity, notificationID string) (*domain.Notification, error) {
	n, err := m.repo.Get(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, domain.ErrNotificationNotFound
	}
	if err := m.policy.CheckAccess(caller, n.SiloID); err != nil {
		return nil, err
	}
	if n.Read {
		return n, nil
	}

	n.Read = true
	if err := m.repo.Save(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}
