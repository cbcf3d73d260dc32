// Package messaging 提供文档服务的 Kafka 事件发布实现
package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fundflow/backoffice/internal/document/domain"
	"github.com/fundflow/backoffice/pkg/mq"
)

// DocumentReceivedEventType 文档接收事件类型
const DocumentReceivedEventType = "DocumentReceivedEvent"

// eventEnvelope 事件信封
type eventEnvelope struct {
	EventID    string      `json:"event_id"`
	EventType  string      `json:"event_type"`
	Payload    interface{} `json:"payload"`
	OccurredAt int64       `json:"occurred_at"`
}

// KafkaEventPublisher 实现 EventPublisher 接口
type KafkaEventPublisher struct {
	producer *mq.KafkaProducer
	topic    string
}

// NewKafkaEventPublisher 创建新的 KafkaEventPublisher 实例
func NewKafkaEventPublisher(producer *mq.KafkaProducer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

// PublishDocumentReceived 发布文档接收事件，以 app_id 为分区键
func (p *KafkaEventPublisher) PublishDocumentReceived(ctx context.Context, event domain.DocumentReceivedEvent) error {
	envelope := eventEnvelope{
		EventID:    uuid.New().String(),
		EventType:  DocumentReceivedEventType,
		Payload:    event,
		OccurredAt: time.Now().Unix(),
	}
	return p.producer.SendMessage(ctx, p.topic, event.AppID, envelope)
}
