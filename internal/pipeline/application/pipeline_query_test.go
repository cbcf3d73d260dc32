package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundflow/backoffice/internal/pipeline/domain"
	"github.com/fundflow/backoffice/pkg/authn"
)

// cachedBoard 固定返回缓存命中的 BoardCache
type cachedBoard struct {
	apps []*domain.Application
}

func (c *cachedBoard) GetBoard(ctx context.Context, siloID string) ([]*domain.Application, bool, error) {
	return c.apps, true, nil
}

func (c *cachedBoard) SetBoard(ctx context.Context, siloID string, apps []*domain.Application) error {
	return nil
}

func (c *cachedBoard) Invalidate(ctx context.Context, siloID string) error {
	return nil
}

func newQueryService(repo *fakeRepo, recorder *fakeRecorder, cache BoardCache) *PipelineQueryService {
	return NewPipelineQueryService(repo, recorder, cache, authn.SiloPolicy{AdminBypass: true})
}

func TestListBySiloScopesToSilo(t *testing.T) {
	repo := newFakeRepo(
		testApp("APP1", "silo-a", domain.StageInReview),
		testApp("APP2", "silo-b", domain.StageOffer),
	)
	svc := newQueryService(repo, &fakeRecorder{}, nil)

	apps, total, err := svc.ListBySilo(context.Background(), staffCaller("silo-a"), "silo-a", 50, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, apps, 1)
	assert.Equal(t, "APP1", apps[0].AppID)
}

func TestListBySiloDeniedBeforeRead(t *testing.T) {
	repo := newFakeRepo(testApp("APP1", "silo-a", domain.StageInReview))
	svc := newQueryService(repo, &fakeRecorder{}, nil)

	_, _, err := svc.ListBySilo(context.Background(), staffCaller("silo-b"), "silo-a", 50, 0)
	assert.ErrorIs(t, err, authn.ErrForbidden)
}

func TestListBySiloUsesCacheOnFirstPage(t *testing.T) {
	repo := newFakeRepo()
	cached := &cachedBoard{apps: []*domain.Application{testApp("APP9", "silo-a", domain.StageOffer)}}
	svc := newQueryService(repo, &fakeRecorder{}, cached)

	apps, total, err := svc.ListBySilo(context.Background(), staffCaller("silo-a"), "silo-a", 50, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "APP9", apps[0].AppID)
}

func TestGetApplicationChecksOwningSilo(t *testing.T) {
	repo := newFakeRepo(testApp("APP1", "silo-a", domain.StageInReview))
	svc := newQueryService(repo, &fakeRecorder{}, nil)

	app, err := svc.GetApplication(context.Background(), staffCaller("silo-a"), "APP1")
	require.NoError(t, err)
	assert.Equal(t, "APP1", app.AppID)

	_, err = svc.GetApplication(context.Background(), staffCaller("silo-b"), "APP1")
	assert.ErrorIs(t, err, authn.ErrForbidden)

	_, err = svc.GetApplication(context.Background(), staffCaller("silo-a"), "NOPE")
	assert.ErrorIs(t, err, domain.ErrApplicationNotFound)
}

func TestListTransitions(t *testing.T) {
	repo := newFakeRepo(testApp("APP1", "silo-a", domain.StageInReview))
	recorder := &fakeRecorder{}
	recorder.records = append(recorder.records,
		domain.NewTransitionRecord("r1", "APP1", domain.StageRequiresDocs, domain.StageInReview, true, "", 7),
		domain.NewTransitionRecord("r2", "APP2", domain.StageInReview, domain.StageOffer, true, "", 7),
	)
	svc := newQueryService(repo, recorder, nil)

	records, err := svc.ListTransitions(context.Background(), staffCaller("silo-a"), "APP1", 50, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "r1", records[0].RecordID)
}
