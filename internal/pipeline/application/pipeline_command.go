// Package application 编排管线用例：创建申请、阶段流转、看板查询
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/idgen"

	"github.com/fundflow/backoffice/internal/pipeline/domain"
	"github.com/fundflow/backoffice/pkg/authn"
	"github.com/fundflow/backoffice/pkg/logger"
	"github.com/fundflow/backoffice/pkg/metrics"
)

// CreateApplicationCommand 创建申请命令
type CreateApplicationCommand struct {
	SiloID          string
	ProductCategory string
	ApplicantName   string
	ApplicantEmail  string
	LoanAmount      decimal.Decimal
}

// TransitionResult 阶段流转结果
type TransitionResult struct {
	Application *domain.Application
	// Changed 为 false 表示请求阶段与当前阶段相同，幂等空操作
	Changed bool
	// AuditPending 为 true 表示阶段已变更但审计写入未成功，
	// 运维需要知道审计轨迹可能不完整
	AuditPending bool
}

// Config 编排参数
type Config struct {
	// CAS 冲突最大重试次数
	CASMaxRetries int
	// silo 访问策略
	SiloPolicy authn.SiloPolicy
	// 存储与审计调用的超时上限，<=0 时使用默认值
	StoreTimeout time.Duration
}

// PipelineCommandService 处理管线相关的命令操作。
// 无跨请求共享可变状态，可在任意数量的并发请求上运行；
// 申请阶段的并发安全完全由仓储的 CAS 语义保证。
type PipelineCommandService struct {
	repo       domain.ApplicationRepository
	recorder   domain.TransitionRecorder
	publisher  domain.EventPublisher
	policy     *domain.StagePolicy
	boardCache BoardCache
	cfg        Config
	metrics    *metrics.Metrics
}

// NewPipelineCommandService 创建命令服务，boardCache 可为 nil
func NewPipelineCommandService(
	repo domain.ApplicationRepository,
	recorder domain.TransitionRecorder,
	publisher domain.EventPublisher,
	policy *domain.StagePolicy,
	boardCache BoardCache,
	cfg Config,
	m *metrics.Metrics,
) *PipelineCommandService {
	if cfg.CASMaxRetries <= 0 {
		cfg.CASMaxRetries = 5
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 3 * time.Second
	}
	if m == nil {
		m = metrics.New("pipeline")
	}
	return &PipelineCommandService{
		repo:       repo,
		recorder:   recorder,
		publisher:  publisher,
		policy:     policy,
		boardCache: boardCache,
		cfg:        cfg,
		metrics:    m,
	}
}

// CreateApplication 创建申请，入口阶段由状态机按产品类别决定
func (s *PipelineCommandService) CreateApplication(ctx context.Context, caller authn.Identity, cmd CreateApplicationCommand) (*domain.Application, error) {
	if err := s.cfg.SiloPolicy.CheckAccess(caller, cmd.SiloID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	category := domain.ProductCategory(cmd.ProductCategory)
	appID := fmt.Sprintf("APP%d", idgen.GenID())
	app := domain.NewApplication(
		appID,
		cmd.SiloID,
		category,
		cmd.ApplicantName,
		cmd.ApplicantEmail,
		cmd.LoanAmount,
		s.policy.InitialStage(category),
	)

	if err := s.repo.Save(ctx, app); err != nil {
		return nil, fmt.Errorf("failed to save application: %w", err)
	}

	event := domain.ApplicationCreatedEvent{
		AppID:           app.AppID,
		SiloID:          app.SiloID,
		ProductCategory: app.ProductCategory,
		InitialStage:    app.CurrentStage,
		ApplicantName:   app.ApplicantName,
		ApplicantEmail:  app.ApplicantEmail,
		LoanAmount:      app.LoanAmount,
		OccurredOn:      app.CreatedAt,
	}
	if err := s.publisher.PublishApplicationCreated(ctx, event); err != nil {
		// 事件发布失败不回滚创建
		logger.Warn(ctx, "Failed to publish application created event", "app_id", app.AppID, "error", err)
	}

	logger.Info(ctx, "Application created",
		"app_id", app.AppID,
		"silo_id", app.SiloID,
		"initial_stage", app.CurrentStage,
	)
	return app, nil
}

// RequestStageTransition 请求把申请流转到目标阶段。
// 流程：鉴权 → 读取 → silo 校验 → 状态机判定 → CAS 更新（冲突重读重试）→ 审计 → 发布事件。
// 拒绝的流转同样产生审计记录并显式报错，绝不静默保留旧阶段。
func (s *PipelineCommandService) RequestStageTransition(ctx context.Context, caller authn.Identity, appID string, requested domain.Stage) (*TransitionResult, error) {
	// 存储与审计都在配置的超时内完成，挂死的连接以 504 暴露而不是拖满请求
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	for attempt := 0; attempt < s.cfg.CASMaxRetries; attempt++ {
		app, err := s.repo.Get(ctx, appID)
		if err != nil {
			return nil, s.mapStoreError(err)
		}
		if app == nil {
			return nil, domain.ErrApplicationNotFound
		}

		if err := s.cfg.SiloPolicy.CheckAccess(caller, app.SiloID); err != nil {
			return nil, err
		}

		current := app.CurrentStage

		// 状态机判定先行：终态阶段连自流转也拒绝，与 StagePolicy 保持一致
		if !s.policy.CanTransition(current, requested, app.ProductCategory) {
			ite := &IllegalAttempt{Current: current, Requested: requested}
			s.recordTransition(ctx, app, current, requested, false, ite.reason(), caller.UserID)
			s.metrics.TransitionsRejected.Inc()
			return nil, &domain.IllegalTransitionError{Current: current, Requested: requested}
		}

		// 幂等空操作：允许但不产生审计记录
		if requested == current {
			return &TransitionResult{Application: app, Changed: false}, nil
		}

		updated, err := s.repo.CompareAndSetStage(ctx, appID, current, requested)
		if errors.Is(err, domain.ErrStaleStage) {
			// 并发写入者抢先，重读后按新的当前阶段重新判定
			s.metrics.CASConflictsTotal.Inc()
			logger.Debug(ctx, "Stage CAS conflict, retrying",
				"app_id", appID,
				"expected_stage", current,
				"attempt", attempt+1,
			)
			continue
		}
		if err != nil {
			return nil, s.mapStoreError(err)
		}

		result := &TransitionResult{Application: updated, Changed: true}
		if !s.recordTransition(ctx, app, current, requested, true, "", caller.UserID) {
			result.AuditPending = true
		}
		s.metrics.TransitionsAccepted.Inc()

		if s.boardCache != nil {
			if err := s.boardCache.Invalidate(ctx, updated.SiloID); err != nil {
				logger.Warn(ctx, "Failed to invalidate board cache", "silo_id", updated.SiloID, "error", err)
			}
		}

		event := domain.StageChangedEvent{
			AppID:          updated.AppID,
			SiloID:         updated.SiloID,
			FromStage:      current,
			ToStage:        requested,
			ApplicantName:  updated.ApplicantName,
			ApplicantEmail: updated.ApplicantEmail,
			ActorID:        caller.UserID,
			OccurredOn:     updated.UpdatedAt,
		}
		if err := s.publisher.PublishStageChanged(ctx, event); err != nil {
			logger.Warn(ctx, "Failed to publish stage changed event", "app_id", appID, "error", err)
		}

		logger.Info(ctx, "Stage transition applied",
			"app_id", appID,
			"from_stage", current,
			"to_stage", requested,
			"actor_id", caller.UserID,
		)
		return result, nil
	}

	return nil, domain.ErrTransitionConflict
}

// recordTransition 写入审计记录，返回是否成功。
// 审计失败不回滚已生效的阶段变更，只把结果降级为带告警的成功。
func (s *PipelineCommandService) recordTransition(ctx context.Context, app *domain.Application, from, to domain.Stage, accepted bool, reason string, actorID uint) bool {
	record := domain.NewTransitionRecord(
		uuid.New().String(),
		app.AppID,
		from, to,
		accepted,
		reason,
		actorID,
	)
	if err := s.recorder.Record(ctx, record); err != nil {
		s.metrics.AuditWriteFailures.Inc()
		logger.Error(ctx, "Transition audit write failed",
			"app_id", app.AppID,
			"from_stage", from,
			"to_stage", to,
			"accepted", accepted,
			"error", err,
		)
		return false
	}
	return true
}

// mapStoreError 把存储层的超时归一为领域错误
func (s *PipelineCommandService) mapStoreError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrStoreTimeout, err)
	}
	return err
}

// IllegalAttempt 非法流转的审计描述
type IllegalAttempt struct {
	Current   domain.Stage
	Requested domain.Stage
}

func (a *IllegalAttempt) reason() string {
	if a.Current.IsTerminal() {
		return fmt.Sprintf("stage %q is terminal", a.Current)
	}
	return fmt.Sprintf("stage %q is not reachable from %q", a.Requested, a.Current)
}
