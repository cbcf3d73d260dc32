package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageIsTerminal(t *testing.T) {
	assert.True(t, StageAccepted.IsTerminal())
	assert.True(t, StageDeclined.IsTerminal())
	assert.False(t, StageRequiresDocs.IsTerminal())
	assert.False(t, StageOffer.IsTerminal())
	assert.False(t, StageStartupPipeline.IsTerminal())
}

func TestInitialStageByCategory(t *testing.T) {
	policy := NewDefaultStagePolicy(CategoryStandard)

	assert.Equal(t, StageRequiresDocs, policy.InitialStage(CategoryStandard))
	assert.Equal(t, StageStartupPipeline, policy.InitialStage(CategoryStartup))
	// 未知类别回落到默认类别
	assert.Equal(t, StageRequiresDocs, policy.InitialStage(ProductCategory("unknown")))
}

func TestLegalStageMembership(t *testing.T) {
	policy := NewDefaultStagePolicy(CategoryStandard)

	// startup_pipeline 只属于初创类产品
	assert.False(t, policy.IsLegalStage(StageStartupPipeline, CategoryStandard))
	assert.True(t, policy.IsLegalStage(StageStartupPipeline, CategoryStartup))

	assert.True(t, policy.IsLegalStage(StageInReview, CategoryStandard))
	assert.False(t, policy.IsLegalStage(Stage("bogus"), CategoryStandard))
}

func TestCanTransitionPermissive(t *testing.T) {
	policy := NewDefaultStagePolicy(CategoryStandard)

	// 宽松策略下非终态阶段之间可以任意流转，包括回退
	assert.True(t, policy.CanTransition(StageRequiresDocs, StageOffer, CategoryStandard))
	assert.True(t, policy.CanTransition(StageOffer, StageRequiresDocs, CategoryStandard))
	assert.True(t, policy.CanTransition(StageInReview, StageDeclined, CategoryStandard))

	// 自流转是合法的幂等空操作
	assert.True(t, policy.CanTransition(StageInReview, StageInReview, CategoryStandard))
}

func TestCanTransitionRejectsTerminalSource(t *testing.T) {
	policy := NewDefaultStagePolicy(CategoryStandard)

	assert.False(t, policy.CanTransition(StageAccepted, StageInReview, CategoryStandard))
	assert.False(t, policy.CanTransition(StageDeclined, StageRequiresDocs, CategoryStandard))
	// 终态的自流转同样被拒绝
	assert.False(t, policy.CanTransition(StageAccepted, StageAccepted, CategoryStandard))
}

func TestCanTransitionRejectsIllegalTarget(t *testing.T) {
	policy := NewDefaultStagePolicy(CategoryStandard)

	assert.False(t, policy.CanTransition(StageInReview, Stage("bogus"), CategoryStandard))
	// 标准产品不能进入初创专属入口阶段
	assert.False(t, policy.CanTransition(StageInReview, StageStartupPipeline, CategoryStandard))
	// 初创产品可以
	assert.True(t, policy.CanTransition(StageInReview, StageStartupPipeline, CategoryStartup))
}

func TestCanTransitionWithAdjacency(t *testing.T) {
	// 配置严格邻接表的部署
	policy := NewStagePolicy(CategoryStandard, map[ProductCategory]CategoryStages{
		CategoryStandard: {
			Initial: StageRequiresDocs,
			Legal:   []Stage{StageRequiresDocs, StageInReview, StageAccepted, StageDeclined},
			Adjacency: map[Stage][]Stage{
				StageRequiresDocs: {StageInReview},
				StageInReview:     {StageAccepted, StageDeclined},
			},
		},
	})

	assert.True(t, policy.CanTransition(StageRequiresDocs, StageInReview, CategoryStandard))
	assert.False(t, policy.CanTransition(StageRequiresDocs, StageAccepted, CategoryStandard))
	// 自流转不受邻接表限制
	assert.True(t, policy.CanTransition(StageRequiresDocs, StageRequiresDocs, CategoryStandard))
}

func TestNormalizeStage(t *testing.T) {
	policy := NewDefaultStagePolicy(CategoryStandard)

	// 合法流转返回请求阶段
	assert.Equal(t, StageOffer, policy.NormalizeStage(StageInReview, StageOffer, CategoryStandard))
	// 非法流转保持当前阶段
	assert.Equal(t, StageAccepted, policy.NormalizeStage(StageAccepted, StageInReview, CategoryStandard))
	assert.Equal(t, StageInReview, policy.NormalizeStage(StageInReview, Stage("bogus"), CategoryStandard))
}
