// Package domain 包含贷款申请管线的领域模型：申请、阶段状态机与流转审计
package domain

// Stage 申请在管线中的符号化阶段
type Stage string

const (
	StageRequiresDocs    Stage = "requires_docs"
	StageInReview        Stage = "in_review"
	StageReadyForSigning Stage = "ready_for_signing"
	StageOffToLender     Stage = "off_to_lender"
	StageOffer           Stage = "offer"
	StageAccepted        Stage = "accepted"
	StageDeclined        Stage = "declined"
	// StageStartupPipeline 初创企业产品的专属入口阶段
	StageStartupPipeline Stage = "startup_pipeline"
)

// IsTerminal 终态阶段没有任何出边
func (s Stage) IsTerminal() bool {
	return s == StageAccepted || s == StageDeclined
}

// ProductCategory 产品类别，决定合法阶段集合与入口阶段
type ProductCategory string

const (
	CategoryStandard ProductCategory = "standard"
	CategoryStartup  ProductCategory = "startup"
)

// CategoryStages 某一产品类别的阶段配置
type CategoryStages struct {
	// 入口阶段
	Initial Stage
	// 合法阶段集合
	Legal []Stage
	// 严格邻接表；为空表示宽松策略（任意非终态阶段可流转到任意合法阶段）
	Adjacency map[Stage][]Stage
}

// StagePolicy 阶段状态机。
// 流转规则刻意保持宽松：除终态外不限制出边，需要线性流程的部署
// 可以通过 Adjacency 配置收紧，而不是改代码。
type StagePolicy struct {
	defaultCategory ProductCategory
	categories      map[ProductCategory]CategoryStages
}

// NewStagePolicy 使用给定类别配置创建状态机。
// 未知类别一律回落到 defaultCategory 的配置。
func NewStagePolicy(defaultCategory ProductCategory, categories map[ProductCategory]CategoryStages) *StagePolicy {
	return &StagePolicy{
		defaultCategory: defaultCategory,
		categories:      categories,
	}
}

// NewDefaultStagePolicy 创建内置的标准/初创两类产品的状态机
func NewDefaultStagePolicy(defaultCategory ProductCategory) *StagePolicy {
	standard := []Stage{
		StageRequiresDocs,
		StageInReview,
		StageReadyForSigning,
		StageOffToLender,
		StageOffer,
		StageAccepted,
		StageDeclined,
	}
	startup := append([]Stage{StageStartupPipeline}, standard...)

	return NewStagePolicy(defaultCategory, map[ProductCategory]CategoryStages{
		CategoryStandard: {
			Initial: StageRequiresDocs,
			Legal:   standard,
		},
		CategoryStartup: {
			Initial: StageStartupPipeline,
			Legal:   startup,
		},
	})
}

func (p *StagePolicy) categoryStages(category ProductCategory) CategoryStages {
	if cs, ok := p.categories[category]; ok {
		return cs
	}
	return p.categories[p.defaultCategory]
}

// LegalStages 返回类别的合法阶段集合
func (p *StagePolicy) LegalStages(category ProductCategory) []Stage {
	return p.categoryStages(category).Legal
}

// InitialStage 返回类别的入口阶段
func (p *StagePolicy) InitialStage(category ProductCategory) Stage {
	return p.categoryStages(category).Initial
}

// IsLegalStage 判断阶段是否属于类别的合法集合
func (p *StagePolicy) IsLegalStage(stage Stage, category ProductCategory) bool {
	for _, s := range p.categoryStages(category).Legal {
		if s == stage {
			return true
		}
	}
	return false
}

// CanTransition 判定 current → requested 的流转是否合法：
//   - current 为终态时恒为 false
//   - requested 不在类别合法集合时为 false
//   - requested == current 视为合法的幂等空操作
//   - 配置了邻接表时还需 requested 在 current 的出边中
func (p *StagePolicy) CanTransition(current, requested Stage, category ProductCategory) bool {
	if current.IsTerminal() {
		return false
	}
	if !p.IsLegalStage(requested, category) {
		return false
	}
	if requested == current {
		return true
	}

	adjacency := p.categoryStages(category).Adjacency
	if len(adjacency) == 0 {
		return true
	}
	for _, next := range adjacency[current] {
		if next == requested {
			return true
		}
	}
	return false
}

// NormalizeStage 合法时返回 requested，否则保持 current。
// 仅用于内部对账等非关键路径；面向调用者的流转失败必须显式报错，
// 不允许静默回落（见 PipelineCommandService.RequestStageTransition）。
func (p *StagePolicy) NormalizeStage(current, requested Stage, category ProductCategory) Stage {
	if p.CanTransition(current, requested, category) {
		return requested
	}
	return current
}
