package application

import (
	"context"

	"github.com/fundflow/backoffice/internal/pipeline/domain"
	"github.com/fundflow/backoffice/pkg/authn"
	"github.com/fundflow/backoffice/pkg/logger"
)

// PipelineQueryService 处理管线相关的查询操作
type PipelineQueryService struct {
	repo       domain.ApplicationRepository
	recorder   domain.TransitionRecorder
	boardCache BoardCache
	siloPolicy authn.SiloPolicy
}

// NewPipelineQueryService 创建查询服务，boardCache 可为 nil
func NewPipelineQueryService(
	repo domain.ApplicationRepository,
	recorder domain.TransitionRecorder,
	boardCache BoardCache,
	siloPolicy authn.SiloPolicy,
) *PipelineQueryService {
	return &PipelineQueryService{
		repo:       repo,
		recorder:   recorder,
		boardCache: boardCache,
		siloPolicy: siloPolicy,
	}
}

// ListBySilo 返回 silo 看板：该 silo 下的申请列表及当前阶段。
// silo 校验先于任何数据读取。
func (s *PipelineQueryService) ListBySilo(ctx context.Context, caller authn.Identity, siloID string, limit, offset int) ([]*domain.Application, int64, error) {
	if err := s.siloPolicy.CheckAccess(caller, siloID); err != nil {
		return nil, 0, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	// 首页走缓存
	if s.boardCache != nil && offset == 0 {
		if apps, ok, err := s.boardCache.GetBoard(ctx, siloID); err == nil && ok {
			return apps, int64(len(apps)), nil
		}
	}

	apps, total, err := s.repo.ListBySilo(ctx, siloID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	if s.boardCache != nil && offset == 0 {
		if err := s.boardCache.SetBoard(ctx, siloID, apps); err != nil {
			logger.Warn(ctx, "Failed to cache silo board", "silo_id", siloID, "error", err)
		}
	}
	return apps, total, nil
}

// GetApplication 获取单个申请，silo 校验基于申请的归属 silo
func (s *PipelineQueryService) GetApplication(ctx context.Context, caller authn.Identity, appID string) (*domain.Application, error) {
	app, err := s.repo.Get(ctx, appID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, domain.ErrApplicationNotFound
	}
	if err := s.siloPolicy.CheckAccess(caller, app.SiloID); err != nil {
		return nil, err
	}
	return app, nil
}

// ListTransitions 返回申请的审计轨迹
func (s *PipelineQueryService) ListTransitions(ctx context.Context, caller authn.Identity, appID string, limit, offset int) ([]*domain.TransitionRecord, error) {
	// 先确认申请存在且调用者可访问其 silo
	if _, err := s.GetApplication(ctx, caller, appID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.recorder.ListByApplication(ctx, appID, limit, offset)
}
