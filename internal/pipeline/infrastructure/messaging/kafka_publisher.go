// Package messaging 提供管线服务的 Kafka 事件发布实现
package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fundflow/backoffice/internal/pipeline/domain"
	"github.com/fundflow/backoffice/pkg/mq"
)

// 事件类型常量
const (
	ApplicationCreatedEventType = "ApplicationCreatedEvent"
	StageChangedEventType       = "StageChangedEvent"
)

// EventEnvelope 事件信封，携带事件元信息
type EventEnvelope struct {
	EventID    string      `json:"event_id"`
	EventType  string      `json:"event_type"`
	Payload    interface{} `json:"payload"`
	OccurredAt int64       `json:"occurred_at"`
}

// KafkaEventPublisher 实现 EventPublisher 接口，直接写 Kafka
type KafkaEventPublisher struct {
	producer          *mq.KafkaProducer
	createdTopic      string
	stageChangedTopic string
}

// NewKafkaEventPublisher 创建新的 KafkaEventPublisher 实例
func NewKafkaEventPublisher(producer *mq.KafkaProducer, createdTopic, stageChangedTopic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		producer:          producer,
		createdTopic:      createdTopic,
		stageChangedTopic: stageChangedTopic,
	}
}

// PublishApplicationCreated 发布申请创建事件
func (p *KafkaEventPublisher) PublishApplicationCreated(ctx context.Context, event domain.ApplicationCreatedEvent) error {
	return p.publish(ctx, p.createdTopic, ApplicationCreatedEventType, event.AppID, event)
}

// PublishStageChanged 发布阶段变更事件，以 app_id 为分区键保证单申请内有序
func (p *KafkaEventPublisher) PublishStageChanged(ctx context.Context, event domain.StageChangedEvent) error {
	return p.publish(ctx, p.stageChangedTopic, StageChangedEventType, event.AppID, event)
}

func (p *KafkaEventPublisher) publish(ctx context.Context, topic, eventType, key string, payload interface{}) error {
	envelope := EventEnvelope{
		EventID:    uuid.New().String(),
		EventType:  eventType,
		Payload:    payload,
		OccurredAt: time.Now().Unix(),
	}
	return p.producer.SendMessage(ctx, topic, key, envelope)
}
