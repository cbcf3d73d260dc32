package application

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundflow/backoffice/internal/pipeline/domain"
	"github.com/fundflow/backoffice/pkg/authn"
	"github.com/fundflow/backoffice/pkg/metrics"
)

// fakeRepo 内存仓储，可注入 CAS 冲突与错误
type fakeRepo struct {
	apps map[string]*domain.Application
	// casFailures 前 N 次 CompareAndSetStage 返回 ErrStaleStage
	casFailures int
	casCalls    int
	getErr      error
	// sawDeadline 记录最近一次 Get 的 ctx 是否带截止时间
	sawDeadline bool
}

func newFakeRepo(apps ...*domain.Application) *fakeRepo {
	m := make(map[string]*domain.Application)
	for _, a := range apps {
		m[a.AppID] = a
	}
	return &fakeRepo{apps: m}
}

func (r *fakeRepo) Save(ctx context.Context, app *domain.Application) error {
	if app.ID == 0 {
		app.ID = uint(len(r.apps) + 1)
	}
	r.apps[app.AppID] = app
	return nil
}

func (r *fakeRepo) Get(ctx context.Context, appID string) (*domain.Application, error) {
	_, r.sawDeadline = ctx.Deadline()
	if r.getErr != nil {
		return nil, r.getErr
	}
	app, ok := r.apps[appID]
	if !ok {
		return nil, nil
	}
	clone := *app
	return &clone, nil
}

func (r *fakeRepo) ListBySilo(ctx context.Context, siloID string, limit, offset int) ([]*domain.Application, int64, error) {
	var out []*domain.Application
	for _, a := range r.apps {
		if a.SiloID == siloID {
			clone := *a
			out = append(out, &clone)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeRepo) CompareAndSetStage(ctx context.Context, appID string, expected, next domain.Stage) (*domain.Application, error) {
	r.casCalls++
	if r.casCalls <= r.casFailures {
		return nil, domain.ErrStaleStage
	}
	app, ok := r.apps[appID]
	if !ok {
		return nil, domain.ErrStaleStage
	}
	if app.CurrentStage != expected {
		return nil, domain.ErrStaleStage
	}
	app.CurrentStage = next
	clone := *app
	return &clone, nil
}

// fakeRecorder 记录审计写入，可注入失败
type fakeRecorder struct {
	records   []*domain.TransitionRecord
	recordErr error
}

func (f *fakeRecorder) Record(ctx context.Context, record *domain.TransitionRecord) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.records = append(f.records, record)
	return nil
}

func (f *fakeRecorder) ListByApplication(ctx context.Context, appID string, limit, offset int) ([]*domain.TransitionRecord, error) {
	var out []*domain.TransitionRecord
	for _, r := range f.records {
		if r.AppID == appID {
			out = append(out, r)
		}
	}
	return out, nil
}

// fakePublisher 收集发布的事件
type fakePublisher struct {
	created      []domain.ApplicationCreatedEvent
	stageChanged []domain.StageChangedEvent
	publishErr   error
}

func (f *fakePublisher) PublishApplicationCreated(ctx context.Context, event domain.ApplicationCreatedEvent) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.created = append(f.created, event)
	return nil
}

func (f *fakePublisher) PublishStageChanged(ctx context.Context, event domain.StageChangedEvent) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.stageChanged = append(f.stageChanged, event)
	return nil
}

// fakeBoardCache 记录失效调用
type fakeBoardCache struct {
	invalidated []string
}

func (f *fakeBoardCache) GetBoard(ctx context.Context, siloID string) ([]*domain.Application, bool, error) {
	return nil, false, nil
}

func (f *fakeBoardCache) SetBoard(ctx context.Context, siloID string, apps []*domain.Application) error {
	return nil
}

func (f *fakeBoardCache) Invalidate(ctx context.Context, siloID string) error {
	f.invalidated = append(f.invalidated, siloID)
	return nil
}

func staffCaller(silos ...string) authn.Identity {
	return authn.Identity{UserID: 7, Role: authn.RoleStaff, Silos: silos}
}

func adminCaller() authn.Identity {
	return authn.Identity{UserID: 1, Role: authn.RoleAdmin}
}

func testApp(appID, silo string, stage domain.Stage) *domain.Application {
	return &domain.Application{
		ID:              1,
		AppID:           appID,
		SiloID:          silo,
		ProductCategory: domain.CategoryStandard,
		CurrentStage:    stage,
		ApplicantName:   "Acme Pty Ltd",
		ApplicantEmail:  "finance@acme.example",
		LoanAmount:      decimal.NewFromInt(250000),
	}
}

func newTestService(repo *fakeRepo, recorder *fakeRecorder, publisher *fakePublisher, cache BoardCache, bypass bool) *PipelineCommandService {
	return NewPipelineCommandService(
		repo,
		recorder,
		publisher,
		domain.NewDefaultStagePolicy(domain.CategoryStandard),
		cache,
		Config{SiloPolicy: authn.SiloPolicy{AdminBypass: bypass}},
		metrics.New("test_pipeline"),
	)
}

func TestRequestStageTransitionSuccess(t *testing.T) {
	repo := newFakeRepo(testApp("APP1", "silo-a", domain.StageRequiresDocs))
	recorder := &fakeRecorder{}
	publisher := &fakePublisher{}
	cache := &fakeBoardCache{}
	svc := newTestService(repo, recorder, publisher, cache, true)

	result, err := svc.RequestStageTransition(context.Background(), staffCaller("silo-a"), "APP1", domain.StageInReview)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.False(t, result.AuditPending)
	assert.Equal(t, domain.StageInReview, result.Application.CurrentStage)

	// 恰好一条接受的审计记录
	require.Len(t, recorder.records, 1)
	assert.True(t, recorder.records[0].Accepted)
	assert.Equal(t, domain.StageRequiresDocs, recorder.records[0].FromStage)
	assert.Equal(t, domain.StageInReview, recorder.records[0].ToStage)
	assert.Equal(t, uint(7), recorder.records[0].ActorID)

	// 事件发布与看板失效
	require.Len(t, publisher.stageChanged, 1)
	assert.Equal(t, "APP1", publisher.stageChanged[0].AppID)
	assert.Equal(t, []string{"silo-a"}, cache.invalidated)
}

func TestRequestStageTransitionIdempotentNoOp(t *testing.T) {
	repo := newFakeRepo(testApp("APP1", "silo-a", domain.StageInReview))
	recorder := &fakeRecorder{}
	publisher := &fakePublisher{}
	svc := newTestService(repo, recorder, publisher, nil, true)

	result, err := svc.RequestStageTransition(context.Background(), staffCaller("silo-a"), "APP1", domain.StageInReview)
	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Equal(t, domain.StageInReview, result.Application.CurrentStage)

	// 空操作不产生审计记录也不发布事件
	assert.Empty(t, recorder.records)
	assert.Empty(t, publisher.stageChanged)
	assert.Zero(t, repo.casCalls)
}

func TestRequestStageTransitionFromTerminalRejected(t *testing.T) {
	repo := newFakeRepo(testApp("APP1", "silo-a", domain.StageDeclined))
	recorder := &fakeRecorder{}
	svc := newTestService(repo, recorder, &fakePublisher{}, nil, true)

	_, err := svc.RequestStageTransition(context.Background(), staffCaller("silo-a"), "APP1", domain.StageInReview)
	require.Error(t, err)

	ite, ok := domain.AsIllegalTransition(err)
	require.True(t, ok)
	assert.Equal(t, domain.StageDeclined, ite.Current)
	assert.Equal(t, domain.StageInReview, ite.Requested)

	// 被拒绝的尝试同样留痕
	require.Len(t, recorder.records, 1)
	assert.False(t, recorder.records[0].Accepted)
	assert.NotEmpty(t, recorder.records[0].Reason)

	// 阶段保持不变
	app, _ := repo.Get(context.Background(), "APP1")
	assert.Equal(t, domain.StageDeclined, app.CurrentStage)
}

func TestRequestStageTransitionIllegalTargetRejected(t *testing.T) {
	repo := newFakeRepo(testApp("APP1", "silo-a", domain.StageInReview))
	recorder := &fakeRecorder{}
	svc := newTestService(repo, recorder, &fakePublisher{}, nil, true)

	_, err := svc.RequestStageTransition(context.Background(), staffCaller("silo-a"), "APP1", domain.Stage("bogus"))
	require.Error(t, err)
	_, ok := domain.AsIllegalTransition(err)
	assert.True(t, ok)
	require.Len(t, recorder.records, 1)
	assert.False(t, recorder.records[0].Accepted)
}

func TestRequestStageTransitionSiloIsolation(t *testing.T) {
	repo := newFakeRepo(testApp("APP1", "silo-a", domain.StageInReview))
	recorder := &fakeRecorder{}
	svc := newTestService(repo, recorder, &fakePublisher{}, nil, true)

	// 调用者只持有 silo-b
	_, err := svc.RequestStageTransition(context.Background(), staffCaller("silo-b"), "APP1", domain.StageOffer)
	assert.ErrorIs(t, err, authn.ErrForbidden)

	// 越权尝试不留审计记录，阶段不变
	assert.Empty(t, recorder.records)
	app, _ := repo.Get(context.Background(), "APP1")
	assert.Equal(t, domain.StageInReview, app.CurrentStage)
}

func TestRequestStageTransitionAdminBypass(t *testing.T) {
	ctx := context.Background()

	// 放行开关打开时管理员可跨 silo 操作
	repo := newFakeRepo(testApp("APP1", "silo-a", domain.StageInReview))
	svc := newTestService(repo, &fakeRecorder{}, &fakePublisher{}, nil, true)
	result, err := svc.RequestStageTransition(ctx, adminCaller(), "APP1", domain.StageOffer)
	require.NoError(t, err)
	assert.True(t, result.Changed)

	// 关闭后管理员与普通角色同样受限
	repo2 := newFakeRepo(testApp("APP2", "silo-a", domain.StageInReview))
	svc2 := newTestService(repo2, &fakeRecorder{}, &fakePublisher{}, nil, false)
	_, err = svc2.RequestStageTransition(ctx, adminCaller(), "APP2", domain.StageOffer)
	assert.ErrorIs(t, err, authn.ErrForbidden)
}

func TestRequestStageTransitionNotFound(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeRecorder{}, &fakePublisher{}, nil, true)

	_, err := svc.RequestStageTransition(context.Background(), staffCaller("silo-a"), "NOPE", domain.StageInReview)
	assert.ErrorIs(t, err, domain.ErrApplicationNotFound)
}

func TestRequestStageTransitionCASConflictRetries(t *testing.T) {
	repo := newFakeRepo(testApp("APP1", "silo-a", domain.StageInReview))
	repo.casFailures = 2
	svc := newTestService(repo, &fakeRecorder{}, &fakePublisher{}, nil, true)

	result, err := svc.RequestStageTransition(context.Background(), staffCaller("silo-a"), "APP1", domain.StageOffer)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, domain.StageOffer, result.Application.CurrentStage)
	// 两次冲突加一次成功
	assert.Equal(t, 3, repo.casCalls)
}

func TestRequestStageTransitionCASExhaustion(t *testing.T) {
	repo := newFakeRepo(testApp("APP1", "silo-a", domain.StageInReview))
	repo.casFailures = 100
	recorder := &fakeRecorder{}
	svc := newTestService(repo, recorder, &fakePublisher{}, nil, true)

	_, err := svc.RequestStageTransition(context.Background(), staffCaller("silo-a"), "APP1", domain.StageOffer)
	assert.ErrorIs(t, err, domain.ErrTransitionConflict)
	assert.Equal(t, 5, repo.casCalls)
	assert.Empty(t, recorder.records)
}

func TestRequestStageTransitionAuditFailureDoesNotRollback(t *testing.T) {
	repo := newFakeRepo(testApp("APP1", "silo-a", domain.StageInReview))
	recorder := &fakeRecorder{recordErr: errors.New("audit store down")}
	svc := newTestService(repo, recorder, &fakePublisher{}, nil, true)

	result, err := svc.RequestStageTransition(context.Background(), staffCaller("silo-a"), "APP1", domain.StageOffer)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	// 审计失败只降级为告警，阶段变更已生效
	assert.True(t, result.AuditPending)
	app, _ := repo.Get(context.Background(), "APP1")
	assert.Equal(t, domain.StageOffer, app.CurrentStage)
}

func TestRequestStageTransitionTerminalSelfRejected(t *testing.T) {
	repo := newFakeRepo(testApp("APP1", "silo-a", domain.StageDeclined))
	recorder := &fakeRecorder{}
	svc := newTestService(repo, recorder, &fakePublisher{}, nil, true)

	_, err := svc.RequestStageTransition(context.Background(), staffCaller("silo-a"), "APP1", domain.StageDeclined)

	// 终态的自流转不是幂等空操作，与状态机判定一致地拒绝
	var ite *domain.IllegalTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, domain.StageDeclined, ite.Current)
	assert.Equal(t, domain.StageDeclined, ite.Requested)
	assert.Equal(t, 0, repo.casCalls)
	require.Len(t, recorder.records, 1)
	assert.False(t, recorder.records[0].Accepted)
}

func TestRequestStageTransitionStorePathDeadline(t *testing.T) {
	repo := newFakeRepo(testApp("APP1", "silo-a", domain.StageRequiresDocs))
	svc := newTestService(repo, &fakeRecorder{}, &fakePublisher{}, nil, true)

	// 调用方的 ctx 没有截止时间，仓储看到的必须已被编排层加上超时
	_, ok := context.Background().Deadline()
	require.False(t, ok)

	_, err := svc.RequestStageTransition(context.Background(), staffCaller("silo-a"), "APP1", domain.StageInReview)
	require.NoError(t, err)
	assert.True(t, repo.sawDeadline)
}

func TestRequestStageTransitionStoreTimeout(t *testing.T) {
	repo := newFakeRepo()
	repo.getErr = context.DeadlineExceeded
	svc := newTestService(repo, &fakeRecorder{}, &fakePublisher{}, nil, true)

	_, err := svc.RequestStageTransition(context.Background(), staffCaller("silo-a"), "APP1", domain.StageInReview)
	assert.ErrorIs(t, err, domain.ErrStoreTimeout)
}

func TestCreateApplication(t *testing.T) {
	repo := newFakeRepo()
	publisher := &fakePublisher{}
	svc := newTestService(repo, &fakeRecorder{}, publisher, nil, true)

	app, err := svc.CreateApplication(context.Background(), staffCaller("silo-a"), CreateApplicationCommand{
		SiloID:          "silo-a",
		ProductCategory: string(domain.CategoryStartup),
		ApplicantName:   "Seed Ventures",
		LoanAmount:      decimal.NewFromInt(50000),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, app.AppID)
	// 初创产品从专属入口阶段开始
	assert.Equal(t, domain.StageStartupPipeline, app.CurrentStage)
	require.Len(t, publisher.created, 1)
	assert.Equal(t, app.AppID, publisher.created[0].AppID)
}

func TestCreateApplicationSiloDenied(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeRecorder{}, &fakePublisher{}, nil, true)

	_, err := svc.CreateApplication(context.Background(), staffCaller("silo-b"), CreateApplicationCommand{
		SiloID:        "silo-a",
		ApplicantName: "Acme Pty Ltd",
		LoanAmount:    decimal.NewFromInt(1000),
	})
	assert.ErrorIs(t, err, authn.ErrForbidden)
}
