package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Application 贷款申请聚合根。
// 归属于唯一的 silo；CurrentStage 是唯一会变更的业务字段，
// 且只能通过仓储的 CompareAndSetStage 变更，禁止直接写。
type Application struct {
	ID        uint      `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// 业务主键
	AppID string `json:"app_id"`
	// 所属 silo
	SiloID string `json:"silo_id"`
	// 产品类别
	ProductCategory ProductCategory `json:"product_category"`
	// 当前阶段
	CurrentStage Stage `json:"current_stage"`
	// 申请人
	ApplicantName string `json:"applicant_name"`
	// 申请人联系邮箱，阶段通知的接收方
	ApplicantEmail string `json:"applicant_email"`
	// 申请金额
	LoanAmount decimal.Decimal `json:"loan_amount"`
}

// NewApplication 创建申请，入口阶段由状态机决定
func NewApplication(appID, siloID string, category ProductCategory, applicantName, applicantEmail string, loanAmount decimal.Decimal, initial Stage) *Application {
	return &Application{
		AppID:           appID,
		SiloID:          siloID,
		ProductCategory: category,
		CurrentStage:    initial,
		ApplicantName:   applicantName,
		ApplicantEmail:  applicantEmail,
		LoanAmount:      loanAmount,
	}
}

// IsClosed 申请是否已进入终态
func (a *Application) IsClosed() bool {
	return a.CurrentStage.IsTerminal()
}

// ApplicationRepository 申请仓储接口
type ApplicationRepository interface {
	// 保存申请
	Save(ctx context.Context, app *Application) error
	// 按业务主键获取申请，不存在时返回 (nil, nil)
	Get(ctx context.Context, appID string) (*Application, error)
	// 获取 silo 下的申请列表（按创建时间排序）
	ListBySilo(ctx context.Context, siloID string, limit, offset int) ([]*Application, int64, error)
	// CompareAndSetStage 仅当持久化的当前阶段仍等于 expected 时原子更新为 next，
	// 否则返回 ErrStaleStage，调用方应重读后重试
	CompareAndSetStage(ctx context.Context, appID string, expected, next Stage) (*Application, error)
}
