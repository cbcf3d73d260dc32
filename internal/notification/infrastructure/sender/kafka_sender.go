// Package sender 提供通知分发端口的各种实现
package sender

import (
	"context"

	"github.com/fundflow/backoffice/internal/notification/domain"
	"github.com/fundflow/backoffice/pkg/mq"
)

// KafkaNotificationSender 将通知指令发送到 Kafka，
// 由下游网关服务（SMS / 邮件供应商适配器）消费执行。
type KafkaNotificationSender struct {
	producer *mq.KafkaProducer
	topic    string
}

// NotificationCommand 发送到 Kafka 的统一指令格式
type NotificationCommand struct {
	Target  string `json:"target"`
	Subject string `json:"subject"`
	Content string `json:"content"`
}

// NewKafkaNotificationSender 创建 Kafka 发送器
func NewKafkaNotificationSender(producer *mq.KafkaProducer, topic string) domain.Sender {
	return &KafkaNotificationSender{
		producer: producer,
		topic:    topic,
	}
}

// Send 将通知指令推送到消息队列。
// 以 target 做分区键保证同一接收者的时序性。
func (s *KafkaNotificationSender) Send(ctx context.Context, target, subject, content string) error {
	cmd := NotificationCommand{
		Target:  target,
		Subject: subject,
		Content: content,
	}
	return s.producer.SendMessage(ctx, s.topic, target, cmd)
}
