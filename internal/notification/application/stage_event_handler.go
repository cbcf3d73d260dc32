package application

import (
	"context"
	"fmt"
	"time"

	"github.com/fundflow/backoffice/internal/notification/domain"
	"github.com/fundflow/backoffice/pkg/logger"
)

// StageChangedEvent 管线侧发布的阶段变更事件载荷
type StageChangedEvent struct {
	AppID          string    `json:"app_id"`
	SiloID         string    `json:"silo_id"`
	FromStage      string    `json:"from_stage"`
	ToStage        string    `json:"to_stage"`
	ApplicantName  string    `json:"applicant_name"`
	ApplicantEmail string    `json:"applicant_email"`
	ActorID        uint      `json:"actor_id"`
	OccurredOn     time.Time `json:"occurred_on"`
}

// 触发申请人通知的阶段及其文案
var stageTemplates = map[string]struct {
	subject string
	content string
}{
	"offer": {
		subject: "Your loan offer is ready",
		content: "An offer has been prepared for application %s. Please review and respond.",
	},
	"accepted": {
		subject: "Your loan application was accepted",
		content: "Congratulations, application %s has been accepted.",
	},
	"declined": {
		subject: "Update on your loan application",
		content: "Application %s was declined. Contact your broker for details.",
	},
}

// StageEventHandler 把阶段变更事件翻译成申请人通知
type StageEventHandler struct {
	manager *NotificationManager
}

// NewStageEventHandler 构造函数
func NewStageEventHandler(manager *NotificationManager) *StageEventHandler {
	return &StageEventHandler{manager: manager}
}

// Handle 处理一条阶段变更事件。
// 只有进入 offer / accepted / declined 的变更产生通知，其余静默忽略。
func (h *StageEventHandler) Handle(ctx context.Context, event StageChangedEvent) error {
	tmpl, ok := stageTemplates[event.ToStage]
	if !ok {
		return nil
	}
	if event.ApplicantEmail == "" {
		logger.Debug(ctx, "Stage change event without applicant email, skipping", "app_id", event.AppID)
		return nil
	}

	notificationID, err := h.manager.Send(ctx, SendCommand{
		SiloID:  event.SiloID,
		AppID:   event.AppID,
		Channel: domain.ChannelEmail,
		Target:  event.ApplicantEmail,
		Subject: tmpl.subject,
		Content: fmt.Sprintf(tmpl.content, event.AppID),
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "Stage change notification created",
		"notification_id", notificationID,
		"app_id", event.AppID,
		"to_stage", event.ToStage,
	)
	return nil
}
