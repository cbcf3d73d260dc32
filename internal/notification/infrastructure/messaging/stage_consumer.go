// Package messaging 提供阶段变更事件的 Kafka 消费循环
package messaging

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/fundflow/backoffice/internal/notification/application"
	"github.com/fundflow/backoffice/pkg/logger"
	"github.com/fundflow/backoffice/pkg/mq"
)

// eventEnvelope 管线侧约定的事件信封
type eventEnvelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt int64           `json:"occurred_at"`
}

// StageChangedConsumer 消费 pipeline.stage.changed 主题并驱动通知创建。
// 无法解析的消息进入死信队列，处理失败的消息同样进入死信队列而不阻塞消费。
type StageChangedConsumer struct {
	consumer *mq.KafkaConsumer
	handler  *application.StageEventHandler
	dlq      *mq.DeadLetterQueue
}

// NewStageChangedConsumer 创建消费者，dlq 可为 nil
func NewStageChangedConsumer(consumer *mq.KafkaConsumer, handler *application.StageEventHandler, dlq *mq.DeadLetterQueue) *StageChangedConsumer {
	return &StageChangedConsumer{
		consumer: consumer,
		handler:  handler,
		dlq:      dlq,
	}
}

// Run 阻塞消费直到 ctx 取消
func (c *StageChangedConsumer) Run(ctx context.Context) error {
	logger.Info(ctx, "Stage changed consumer started")
	for {
		msg, err := c.consumer.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
				logger.Info(ctx, "Stage changed consumer stopped")
				return nil
			}
			logger.Error(ctx, "Failed to read stage changed message", "error", err)
			continue
		}

		c.process(ctx, msg)
	}
}

func (c *StageChangedConsumer) process(ctx context.Context, msg *mq.Message) {
	var envelope eventEnvelope
	if err := msg.UnmarshalPayload(&envelope); err != nil {
		logger.Error(ctx, "Malformed stage changed envelope", "error", err)
		c.toDeadLetter(ctx, msg, "malformed envelope")
		return
	}

	var event application.StageChangedEvent
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		logger.Error(ctx, "Malformed stage changed payload", "event_id", envelope.EventID, "error", err)
		c.toDeadLetter(ctx, msg, "malformed payload")
		return
	}

	if err := c.handler.Handle(ctx, event); err != nil {
		logger.Error(ctx, "Failed to handle stage changed event",
			"event_id", envelope.EventID,
			"app_id", event.AppID,
			"error", err,
		)
		c.toDeadLetter(ctx, msg, err.Error())
	}
}

func (c *StageChangedConsumer) toDeadLetter(ctx context.Context, msg *mq.Message, reason string) {
	if c.dlq == nil {
		return
	}
	if err := c.dlq.Send(ctx, msg, reason); err != nil {
		logger.Error(ctx, "Failed to send message to dead letter queue", "error", err)
	}
}
