package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ApplicationCreatedEvent 申请创建事件
type ApplicationCreatedEvent struct {
	AppID           string          `json:"app_id"`
	SiloID          string          `json:"silo_id"`
	ProductCategory ProductCategory `json:"product_category"`
	InitialStage    Stage           `json:"initial_stage"`
	ApplicantName   string          `json:"applicant_name"`
	ApplicantEmail  string          `json:"applicant_email"`
	LoanAmount      decimal.Decimal `json:"loan_amount"`
	OccurredOn      time.Time       `json:"occurred_on"`
}

// StageChangedEvent 阶段变更事件，只有被接受的流转才会发布
type StageChangedEvent struct {
	AppID          string    `json:"app_id"`
	SiloID         string    `json:"silo_id"`
	FromStage      Stage     `json:"from_stage"`
	ToStage        Stage     `json:"to_stage"`
	ApplicantName  string    `json:"applicant_name"`
	ApplicantEmail string    `json:"applicant_email"`
	ActorID        uint      `json:"actor_id"`
	OccurredOn     time.Time `json:"occurred_on"`
}

// EventPublisher 领域事件发布接口
type EventPublisher interface {
	PublishApplicationCreated(ctx context.Context, event ApplicationCreatedEvent) error
	PublishStageChanged(ctx context.Context, event StageChangedEvent) error
}
