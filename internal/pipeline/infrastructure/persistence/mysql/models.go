// Package mysql 提供管线服务的 GORM 持久化实现
package mysql

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fundflow/backoffice/internal/pipeline/domain"
)

// ApplicationModel 申请数据库模型，对应 applications 表
type ApplicationModel struct {
	gorm.Model
	// 业务主键，唯一索引
	AppID string `gorm:"column:app_id;type:varchar(32);uniqueIndex;not null"`
	// 所属 silo，普通索引
	SiloID string `gorm:"column:silo_id;type:varchar(64);index;not null"`
	// 产品类别
	ProductCategory string `gorm:"column:product_category;type:varchar(32);not null"`
	// 当前阶段，CAS 更新的判断列
	CurrentStage string `gorm:"column:current_stage;type:varchar(32);index;not null"`
	// 申请人
	ApplicantName string `gorm:"column:applicant_name;type:varchar(128);not null"`
	// 申请人联系邮箱
	ApplicantEmail string `gorm:"column:applicant_email;type:varchar(128)"`
	// 申请金额
	LoanAmount decimal.Decimal `gorm:"column:loan_amount;type:decimal(20,2);not null"`
}

// TableName 指定表名
func (ApplicationModel) TableName() string {
	return "applications"
}

func toApplicationModel(app *domain.Application) *ApplicationModel {
	return &ApplicationModel{
		Model: gorm.Model{
			ID:        app.ID,
			CreatedAt: app.CreatedAt,
			UpdatedAt: app.UpdatedAt,
		},
		AppID:           app.AppID,
		SiloID:          app.SiloID,
		ProductCategory: string(app.ProductCategory),
		CurrentStage:    string(app.CurrentStage),
		ApplicantName:   app.ApplicantName,
		ApplicantEmail:  app.ApplicantEmail,
		LoanAmount:      app.LoanAmount,
	}
}

func toApplication(m *ApplicationModel) *domain.Application {
	return &domain.Application{
		ID:              m.ID,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		AppID:           m.AppID,
		SiloID:          m.SiloID,
		ProductCategory: domain.ProductCategory(m.ProductCategory),
		CurrentStage:    domain.Stage(m.CurrentStage),
		ApplicantName:   m.ApplicantName,
		ApplicantEmail:  m.ApplicantEmail,
		LoanAmount:      m.LoanAmount,
	}
}

// TransitionRecordModel 审计记录数据库模型，对应 transition_records 表，只插入不更新
type TransitionRecordModel struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time `gorm:"index"`
	// 记录 ID，唯一索引
	RecordID string `gorm:"column:record_id;type:varchar(36);uniqueIndex;not null"`
	// 申请业务主键，普通索引
	AppID string `gorm:"column:app_id;type:varchar(32);index;not null"`
	// 流转前阶段
	FromStage string `gorm:"column:from_stage;type:varchar(32);not null"`
	// 请求的目标阶段
	ToStage string `gorm:"column:to_stage;type:varchar(32);not null"`
	// 是否被接受
	Accepted bool `gorm:"column:accepted;not null"`
	// 拒绝原因
	Reason string `gorm:"column:reason;type:varchar(255)"`
	// 发起人用户 ID
	ActorID uint `gorm:"column:actor_id;index;not null"`
	// 发生时间
	RecordedAt time.Time `gorm:"column:recorded_at;index;not null"`
}

// TableName 指定表名
func (TransitionRecordModel) TableName() string {
	return "transition_records"
}

func toTransitionRecordModel(r *domain.TransitionRecord) *TransitionRecordModel {
	return &TransitionRecordModel{
		RecordID:   r.RecordID,
		AppID:      r.AppID,
		FromStage:  string(r.FromStage),
		ToStage:    string(r.ToStage),
		Accepted:   r.Accepted,
		Reason:     r.Reason,
		ActorID:    r.ActorID,
		RecordedAt: r.RecordedAt,
	}
}

func toTransitionRecord(m *TransitionRecordModel) *domain.TransitionRecord {
	return &domain.TransitionRecord{
		ID:         m.ID,
		CreatedAt:  m.CreatedAt,
		RecordID:   m.RecordID,
		AppID:      m.AppID,
		FromStage:  domain.Stage(m.FromStage),
		ToStage:    domain.Stage(m.ToStage),
		Accepted:   m.Accepted,
		Reason:     m.Reason,
		ActorID:    m.ActorID,
		RecordedAt: m.RecordedAt,
	}
}
