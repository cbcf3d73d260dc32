package application

import (
	"context"

	"github.com/fundflow/backoffice/internal/notification/domain"
	"github.com/fundflow/backoffice/pkg/authn"
)

// NotificationQueryService 通知查询服务
type NotificationQueryService struct {
	repo   domain.NotificationRepository
	policy authn.SiloPolicy
}

// NewNotificationQueryService 创建通知查询服务实例
func NewNotificationQueryService(repo domain.NotificationRepository, policy authn.SiloPolicy) *NotificationQueryService {
	return &NotificationQueryService{repo: repo, policy: policy}
}

// ListBySilo 按 silo 分页列出通知
func (s *NotificationQueryService) ListBySilo(ctx context.Context, caller authn.Identity, siloID string, limit, offset int) ([]*domain.Notification, error) {
	if err := s.policy.CheckAccess(caller, siloID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListBySilo(ctx, siloID, limit, offset)
}

// ListByApplication 按申请列出通知
func (s *NotificationQueryService) ListByApplication(ctx context.Context, caller authn.Identity, appID string) ([]*domain.Notification, error) {
	notifications, err := s.repo.ListByApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	// 通知携带归属 silo，逐条校验后过滤
	out := notifications[:0]
	for _, n := range notifications {
		if s.policy.CheckAccess(caller, n.SiloID) == nil {
			out = append(out, n)
		}
	}
	return out, nil
}
